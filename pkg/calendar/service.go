package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agendazk/agendazk/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrNotEventOwner = errors.New("event belongs to another user")

type Service interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, eventUid string) error
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{
		repo: repo,
	}
}

func (s *ServiceImpl) CreateEvent(ctx context.Context, event Event) (Event, error) {
	ownerUid, err := user.CurrentUid(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("failed to get current user: %w", err)
	}

	event = normalize(event)
	event.OwnerUid = ownerUid
	if err := ValidateEvent(event); err != nil {
		return Event{}, err
	}

	stored, err := s.repo.StoreEvent(ctx, event)
	if err != nil {
		log.Errorf("failed to create event for %s: %v", ownerUid, err)
		return Event{}, fmt.Errorf("failed to store event: %w", err)
	}
	return stored, nil
}

func (s *ServiceImpl) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	existing, err := s.ownedEvent(ctx, event.UID)
	if err != nil {
		return Event{}, err
	}

	event = normalize(event)
	event.OwnerUid = existing.OwnerUid
	event.CreatedAt = existing.CreatedAt
	if err := ValidateEvent(event); err != nil {
		return Event{}, err
	}

	updated, err := s.repo.UpdateEvent(ctx, event)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return Event{}, err
		}
		log.Errorf("failed to update event %s: %v", event.UID, err)
		return Event{}, fmt.Errorf("failed to update event: %w", err)
	}
	return updated, nil
}

func (s *ServiceImpl) DeleteEvent(ctx context.Context, eventUid string) error {
	if _, err := s.ownedEvent(ctx, eventUid); err != nil {
		return err
	}
	if err := s.repo.DeleteEvent(ctx, eventUid); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return err
		}
		log.Errorf("failed to delete event %s: %v", eventUid, err)
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// ownedEvent loads an event that the current user is allowed to modify.
func (s *ServiceImpl) ownedEvent(ctx context.Context, eventUid string) (Event, error) {
	currentUid, err := user.CurrentUid(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("failed to get current user: %w", err)
	}

	event, found, err := s.repo.FindEvent(ctx, eventUid)
	if err != nil {
		log.Errorf("failed to read event %s: %v", eventUid, err)
		return Event{}, fmt.Errorf("failed to read event: %w", err)
	}
	if !found {
		return Event{}, ErrEventNotFound
	}
	if event.OwnerUid != currentUid {
		return Event{}, ErrNotEventOwner
	}
	return event, nil
}

// normalize trims text fields and fills in the default type and visibility.
func normalize(event Event) Event {
	event.Title = strings.TrimSpace(event.Title)
	event.StartDate = strings.TrimSpace(event.StartDate)
	event.EndDate = strings.TrimSpace(event.EndDate)
	event.StartTime = strings.TrimSpace(event.StartTime)
	event.EndTime = strings.TrimSpace(event.EndTime)
	if event.Type == "" {
		event.Type = SingleDay
	}
	if event.Visibility == "" {
		event.Visibility = Public
	}
	if event.Notifications == nil {
		event.Notifications = []Notification{}
	}
	return event
}
