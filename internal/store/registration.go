package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"event-signup-backend/internal/model"
)

// Register signs a student up for an event inside a single per-event
// serialized transaction.
//
// ─────────────────────────────────────────────────────────────────────────────
// RACE CONDITION EXPLAINED
// ─────────────────────────────────────────────────────────────────────────────
//
// Naive read-then-write approach (BROKEN):
//
//	goroutine A: reads confirmed_count → 9 (capacity 10)
//	goroutine B: reads confirmed_count → 9
//	goroutine A: 9 < 10 → confirm, write confirmed_count = 10
//	goroutine B: 9 < 10 → confirm, write confirmed_count = 10
//	Result: 11 confirmed registrations for a 10-seat event. OVERBOOKED.
//
// The same interleaving corrupts waitlist promotion: two concurrent
// cancellations can both pick the same oldest waiter.
//
// SOLUTION: pessimistic per-event serialization. A bounded-wait in-process
// lock queues all register/cancel calls for one event, and inside the
// transaction the event row is re-read under SELECT ... FOR UPDATE so
// transactions from other processes block on the row lock too. Only one
// read-decide-write sequence per event runs at a time; events do not contend
// with each other.
// ─────────────────────────────────────────────────────────────────────────────
func (s *gormStore) Register(ctx context.Context, eventID, studentEmail string) (*RegisterOutcome, error) {
	release, err := s.locks.Acquire(ctx, eventID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var out RegisterOutcome
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.lockedEvent(tx, eventID)
		if err != nil {
			return err
		}

		// A (event, student) pair keeps a single historical row: an active
		// record rejects the attempt, a cancelled one is reactivated in place.
		var reg model.Registration
		err = tx.Where("event_id = ? AND student_email = ?", eventID, studentEmail).
			First(&reg).Error
		switch {
		case err == nil:
			if reg.Status != model.StatusCancelled {
				return ErrAlreadyRegistered
			}
			out.Reactivated = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			reg = model.Registration{EventID: eventID, StudentEmail: studentEmail}
		default:
			return fmt.Errorf("look up registration: %w", err)
		}

		reg.Status = model.StatusWaitlisted
		if event.ConfirmedCount < event.Capacity {
			reg.Status = model.StatusConfirmed
			event.ConfirmedCount++
			if err := tx.Model(&model.Event{}).Where("id = ?", eventID).
				Update("confirmed_count", event.ConfirmedCount).Error; err != nil {
				return fmt.Errorf("update confirmed count: %w", err)
			}
		}

		// The enqueue timestamp defines waitlist order; a reactivated record
		// rejoins at the back of the queue.
		reg.CreatedAt = time.Now().UTC()
		if out.Reactivated {
			err = tx.Save(&reg).Error
		} else {
			err = tx.Create(&reg).Error
		}
		if err != nil {
			return fmt.Errorf("persist registration: %w", err)
		}

		out.Registration = reg
		out.Event = *event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel cancels a student's registration. Cancelling an already-cancelled
// record succeeds without effect so that retried requests stay harmless.
// When a confirmed seat is freed, the oldest waitlisted record for the event
// is promoted in the same transaction; the confirmed count only drops when no
// waiter exists, because a promotion reoccupies the seat immediately.
func (s *gormStore) Cancel(ctx context.Context, registrationID int64, studentEmail string) (*CancelOutcome, error) {
	// The lock is keyed by event, so resolve the registration's event before
	// acquiring it. Ownership is checked again on the locked re-read.
	var probe model.Registration
	if err := s.db.WithContext(ctx).First(&probe, registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if probe.StudentEmail != studentEmail {
		return nil, ErrForbidden
	}

	release, err := s.locks.Acquire(ctx, probe.EventID, s.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var out CancelOutcome
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.lockedEvent(tx, probe.EventID)
		if err != nil {
			return err
		}
		out.Event = *event

		var reg model.Registration
		if err := tx.First(&reg, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("re-read registration: %w", err)
		}
		if reg.StudentEmail != studentEmail {
			return ErrForbidden
		}

		if reg.Status == model.StatusCancelled {
			out.Registration = reg
			out.AlreadyCancelled = true
			return nil
		}

		wasConfirmed := reg.Status == model.StatusConfirmed
		if err := tx.Model(&reg).Update("status", model.StatusCancelled).Error; err != nil {
			return fmt.Errorf("cancel registration: %w", err)
		}
		reg.Status = model.StatusCancelled
		out.Registration = reg

		if !wasConfirmed {
			// A waitlist departure never frees a confirmed seat.
			return nil
		}

		var next model.Registration
		err = tx.Where("event_id = ? AND status = ?", event.ID, model.StatusWaitlisted).
			Order("created_at ASC, id ASC").
			First(&next).Error
		switch {
		case err == nil:
			if err := tx.Model(&next).Update("status", model.StatusConfirmed).Error; err != nil {
				return fmt.Errorf("promote waitlisted registration: %w", err)
			}
			next.Status = model.StatusConfirmed
			out.Promoted = &next
		case errors.Is(err, gorm.ErrRecordNotFound):
			event.ConfirmedCount--
			if err := tx.Model(&model.Event{}).Where("id = ?", event.ID).
				Update("confirmed_count", event.ConfirmedCount).Error; err != nil {
				return fmt.Errorf("update confirmed count: %w", err)
			}
			out.Event = *event
		default:
			return fmt.Errorf("find oldest waitlisted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CountsByStatus returns the number of registrations per status for one
// event. A single grouped query keeps the numbers snapshot-consistent.
func (s *gormStore) CountsByStatus(ctx context.Context, eventID string) ([]StatusCount, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var counts []StatusCount
	if err := s.db.WithContext(ctx).Model(&model.Registration{}).
		Select("status, COUNT(*) as count").
		Where("event_id = ?", eventID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return counts, nil
}

// ListActive returns a student's confirmed and waitlisted registrations,
// newest first, with their events.
func (s *gormStore) ListActive(ctx context.Context, studentEmail string) ([]model.Registration, error) {
	active := []model.RegistrationStatus{model.StatusConfirmed, model.StatusWaitlisted}

	var regs []model.Registration
	if err := s.db.WithContext(ctx).Preload("Event").
		Where("student_email = ? AND status IN ?", studentEmail, active).
		Order("created_at DESC").
		Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list active registrations: %w", err)
	}
	return regs, nil
}
