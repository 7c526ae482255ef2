package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"event-signup-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateEvent(ctx context.Context, params CreateEventParams) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	Register(ctx context.Context, eventID, studentEmail string) (*RegisterOutcome, error)
	Cancel(ctx context.Context, registrationID int64, studentEmail string) (*CancelOutcome, error)
	CountsByStatus(ctx context.Context, eventID string) ([]StatusCount, error)
	ListActive(ctx context.Context, studentEmail string) ([]model.Registration, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db       *gorm.DB
	locks    *eventLocks
	lockWait time.Duration
}

// NewGormStore creates a new GORM-backed store. lockWait bounds how long a
// register/cancel call may queue behind concurrent work on the same event
// before failing with ErrLockTimeout.
func NewGormStore(db *gorm.DB, lockWait time.Duration) Store {
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &gormStore{
		db:       db,
		locks:    newEventLocks(),
		lockWait: lockWait,
	}
}

// DB exposes the underlying connection for handlers that only need plain
// reads or writes outside the registration engine.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// lockedEvent re-reads the event row under an exclusive row lock so that the
// read-decide-write sequence of Register/Cancel cannot interleave with a
// concurrent transaction in another process.
func (s *gormStore) lockedEvent(tx *gorm.DB, eventID string) (*model.Event, error) {
	q := tx
	// SQLite has no FOR UPDATE; its single-writer model already serializes
	// concurrent write transactions.
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var event model.Event
	if err := q.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return &event, nil
}

// CreateEvent inserts a new event with a generated UUID.
func (s *gormStore) CreateEvent(ctx context.Context, params CreateEventParams) (*model.Event, error) {
	event := model.Event{
		ID:          uuid.New().String(),
		Title:       params.Title,
		Description: params.Description,
		Location:    params.Location,
		StartsAt:    params.StartsAt,
		Capacity:    params.Capacity,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &event, nil
}

// ListEvents returns all events, newest first.
func (s *gormStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event or ErrNotFound.
func (s *gormStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}
