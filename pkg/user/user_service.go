package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agendazk/agendazk/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidUsername = errors.New("username must not be empty")
	ErrInvalidUid      = errors.New("device id must not be empty")
	ErrUsernameTaken   = errors.New("username is already taken")
)

type Service interface {
	// Register creates the user for a device, or renames it when the device is already known.
	Register(ctx context.Context, uid string, username string) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
	GetCurrentUser(ctx context.Context) (User, error)
	GetAllUsers(ctx context.Context) ([]User, error)
	UpdateUsername(ctx context.Context, username string) (User, error)
	TouchLastActive(ctx context.Context) (User, error)
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
}

type UserServiceImpl struct {
	repo     Repo
	eventBus *event_bus.EventBus
}

func NewUserService(repo Repo, eventBus *event_bus.EventBus) *UserServiceImpl {
	return &UserServiceImpl{repo: repo, eventBus: eventBus}
}

func (u *UserServiceImpl) Register(ctx context.Context, uid string, username string) (User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return User{}, ErrInvalidUid
	}
	username, err := u.checkUsername(ctx, username, uid)
	if err != nil {
		return User{}, err
	}

	existing, found, err := u.repo.FindUserByUid(ctx, uid)
	if err != nil {
		return User{}, fmt.Errorf("failed to look up user: %w", err)
	}
	if found {
		log.Debugf("device %s already registered as %s, renaming to %s", uid, existing.Username, username)
		return u.repo.UpdateUsername(ctx, uid, username)
	}

	created, err := u.repo.CreateUser(ctx, User{Uid: uid, Username: username})
	if err != nil {
		return User{}, err
	}
	log.Infof("registered user %s for device %s", created.Username, created.Uid)

	if u.eventBus != nil {
		err := u.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.UserCreatedType, event_bus.UserCreated{
			Uid:      created.Uid,
			Username: created.Username,
		}))
		if err != nil {
			log.Errorf("failed to publish user created event: %v", err)
		}
	}
	return created, nil
}

func (u *UserServiceImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	found, ok, err := u.repo.FindUserByUid(ctx, uid)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, ErrUserNotFound
	}
	return found, nil
}

func (u *UserServiceImpl) GetCurrentUser(ctx context.Context) (User, error) {
	uid, err := CurrentUid(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return u.GetUserByUid(ctx, uid)
}

func (u *UserServiceImpl) GetAllUsers(ctx context.Context) ([]User, error) {
	return u.repo.GetAllUsers(ctx)
}

func (u *UserServiceImpl) UpdateUsername(ctx context.Context, username string) (User, error) {
	uid, err := CurrentUid(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	username, err = u.checkUsername(ctx, username, uid)
	if err != nil {
		return User{}, err
	}
	return u.repo.UpdateUsername(ctx, uid, username)
}

func (u *UserServiceImpl) TouchLastActive(ctx context.Context) (User, error) {
	uid, err := CurrentUid(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return u.repo.TouchLastActive(ctx, uid)
}

func (u *UserServiceImpl) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, ErrInvalidUsername
	}
	// The caller's own name counts as available to the caller.
	uid, _ := CurrentUid(ctx)
	return u.repo.IsUsernameAvailable(ctx, username, uid)
}

func (u *UserServiceImpl) checkUsername(ctx context.Context, username string, uid string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidUsername
	}
	available, err := u.repo.IsUsernameAvailable(ctx, username, uid)
	if err != nil {
		return "", fmt.Errorf("failed to check username availability: %w", err)
	}
	if !available {
		return "", ErrUsernameTaken
	}
	return username, nil
}
