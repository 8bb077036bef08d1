package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrEventNotFound = errors.New("event not found")

type Repository interface {
	// StoreEvent inserts a new event and returns it with its generated UID and timestamps.
	StoreEvent(ctx context.Context, event Event) (Event, error)
	// FindEvent reports found=false, with a nil error, when no event has the given uid.
	FindEvent(ctx context.Context, uid string) (Event, bool, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, uid string) error
	ListEvents(ctx context.Context, q Query) ([]Event, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const eventColumns = `uid::text, title, type, start_date, end_date, start_time, end_time, is_all_day, visibility,
				owner_uid, notifications, created_at, updated_at`

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	var notifications []byte
	err := row.Scan(
		&e.UID,
		&e.Title,
		&e.Type,
		&e.StartDate,
		&e.EndDate,
		&e.StartTime,
		&e.EndTime,
		&e.IsAllDay,
		&e.Visibility,
		&e.OwnerUid,
		&notifications,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return Event{}, err
	}
	if err := json.Unmarshal(notifications, &e.Notifications); err != nil {
		return Event{}, fmt.Errorf("could not decode notifications of event %s: %w", e.UID, err)
	}
	return e, nil
}

func encodeNotifications(notifications []Notification) ([]byte, error) {
	if notifications == nil {
		notifications = []Notification{}
	}
	return json.Marshal(notifications)
}

func (r *RepositoryImpl) StoreEvent(ctx context.Context, event Event) (Event, error) {
	notifications, err := encodeNotifications(event.Notifications)
	if err != nil {
		return Event{}, err
	}
	query := `INSERT INTO calendar_event (
                            uid,
                            title,
                            type,
                            start_date,
                            end_date,
                            start_time,
                            end_time,
                            is_all_day,
                            visibility,
                            owner_uid,
                            notifications
						) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
						RETURNING created_at, updated_at`

	event.UID = uuid.NewString()
	err = r.db.QueryRow(ctx, query,
		event.UID,
		event.Title,
		event.Type,
		event.StartDate,
		event.EndDate,
		event.StartTime,
		event.EndTime,
		event.IsAllDay,
		event.Visibility,
		event.OwnerUid,
		notifications,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		err := fmt.Errorf("could not insert calendar event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

func (r *RepositoryImpl) FindEvent(ctx context.Context, uid string) (Event, bool, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return Event{}, false, nil
	}
	query := `SELECT ` + eventColumns + ` FROM calendar_event WHERE uid = $1::uuid`
	event, err := scanEvent(r.db.QueryRow(ctx, query, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, false, nil
	} else if err != nil {
		err := fmt.Errorf("could not query calendar event: %w", err)
		log.Error(err)
		return Event{}, false, err
	}
	return event, true, nil
}

func (r *RepositoryImpl) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	notifications, err := encodeNotifications(event.Notifications)
	if err != nil {
		return Event{}, err
	}
	query := `UPDATE calendar_event SET
                          title = $1,
                          type = $2,
                          start_date = $3,
                          end_date = $4,
                          start_time = $5,
                          end_time = $6,
                          is_all_day = $7,
                          visibility = $8,
                          notifications = $9,
                          updated_at = now()
			  WHERE uid = $10::uuid
			  RETURNING created_at, updated_at`
	err = r.db.QueryRow(ctx, query,
		event.Title,
		event.Type,
		event.StartDate,
		event.EndDate,
		event.StartTime,
		event.EndTime,
		event.IsAllDay,
		event.Visibility,
		notifications,
		event.UID,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrEventNotFound
	} else if err != nil {
		err := fmt.Errorf("could not update calendar event: %w", err)
		log.Error(err)
		return Event{}, err
	}
	return event, nil
}

func (r *RepositoryImpl) DeleteEvent(ctx context.Context, uid string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM calendar_event WHERE uid = $1::uuid`, uid)
	if err != nil {
		err := fmt.Errorf("could not delete calendar event: %w", err)
		log.Error(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *RepositoryImpl) ListEvents(ctx context.Context, q Query) ([]Event, error) {
	var rows pgx.Rows
	var err error
	if q.OwnerUid != "" {
		rows, err = r.db.Query(ctx, `SELECT `+eventColumns+` FROM calendar_event WHERE owner_uid = $1 ORDER BY start_date, uid`, q.OwnerUid)
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+eventColumns+` FROM calendar_event WHERE visibility = $1 ORDER BY start_date, uid`, q.Visibility)
	}
	if err != nil {
		err := fmt.Errorf("could not query calendar events: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0, 10)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read calendar events: %w", err)
	}
	return events, nil
}
