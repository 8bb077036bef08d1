package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

type Repo interface {
	CreateUser(ctx context.Context, user User) (User, error)
	// FindUserByUid reports found=false, with a nil error, when no user has the given uid.
	FindUserByUid(ctx context.Context, uid string) (User, bool, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	UpdateUsername(ctx context.Context, uid string, username string) (User, error)
	TouchLastActive(ctx context.Context, uid string) (User, error)
	// IsUsernameAvailable compares case-insensitively and ignores the user with exceptUid.
	IsUsernameAvailable(ctx context.Context, username string, exceptUid string) (bool, error)
}

type UserRepoImpl struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepoImpl {
	return &UserRepoImpl{db: db}
}

const userColumns = `id, uid, username, created_at, last_active`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.Id, &u.Uid, &u.Username, &u.CreatedAt, &u.LastActive)
	return u, err
}

func (u *UserRepoImpl) CreateUser(ctx context.Context, user User) (User, error) {
	query := `INSERT INTO users (uid, username) VALUES ($1, $2) RETURNING ` + userColumns
	created, err := scanUser(u.db.QueryRow(ctx, query, user.Uid, user.Username))
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		log.Errorf("failed to create user: %v", err)
		return User{}, err
	}
	return created, nil
}

func (u *UserRepoImpl) FindUserByUid(ctx context.Context, uid string) (User, bool, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	found, err := scanUser(u.db.QueryRow(ctx, query, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debugf("user with uid %s not found", uid)
		return User{}, false, nil
	} else if err != nil {
		log.Errorf("failed to get user: %v", err)
		return User{}, false, err
	}
	return found, true, nil
}

func (u *UserRepoImpl) GetAllUsers(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := u.db.Query(ctx, query)
	if err != nil {
		log.Errorf("failed to get users: %v", err)
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0, 2)
	for rows.Next() {
		found, err := scanUser(rows)
		if err != nil {
			log.Errorf("failed to scan user: %v", err)
			return nil, err
		}
		users = append(users, found)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over rows: %v", err)
		return nil, err
	}
	return users, nil
}

func (u *UserRepoImpl) UpdateUsername(ctx context.Context, uid string, username string) (User, error) {
	query := `UPDATE users SET username = $1, updated_at = now() WHERE uid = $2 RETURNING ` + userColumns
	updated, err := scanUser(u.db.QueryRow(ctx, query, username, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	} else if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		log.Errorf("failed to update username: %v", err)
		return User{}, err
	}
	return updated, nil
}

func (u *UserRepoImpl) TouchLastActive(ctx context.Context, uid string) (User, error) {
	query := `UPDATE users SET last_active = now() WHERE uid = $1 RETURNING ` + userColumns
	updated, err := scanUser(u.db.QueryRow(ctx, query, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	} else if err != nil {
		log.Errorf("failed to update user last active: %v", err)
		return User{}, fmt.Errorf("failed to update last active: %w", err)
	}
	return updated, nil
}

func (u *UserRepoImpl) IsUsernameAvailable(ctx context.Context, username string, exceptUid string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE lower(username) = lower($1) AND uid <> $2`
	var count int
	err := u.db.QueryRow(ctx, query, username, exceptUid).Scan(&count)
	if err != nil {
		log.Errorf("failed to check username availability: %v", err)
		return false, err
	}
	return count == 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
