package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"event-signup-backend/internal/db"
	"event-signup-backend/internal/model"
)

// newTestStore opens a private in-memory SQLite database. The pool is capped
// at one connection so every goroutine in the concurrency tests talks to the
// same database instead of getting a fresh :memory: instance.
func newTestStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))

	return NewGormStore(gdb, 5*time.Second), gdb
}

func createTestEvent(t *testing.T, s Store, capacity int) *model.Event {
	t.Helper()
	event, err := s.CreateEvent(context.Background(), CreateEventParams{
		Title:    "Intro to Rock Climbing",
		Capacity: capacity,
	})
	require.NoError(t, err)
	return event
}

// assertLedgerConsistent checks the central invariant: the confirmed count on
// the event row equals the number of confirmed registration rows and never
// exceeds capacity.
func assertLedgerConsistent(t *testing.T, gdb *gorm.DB, eventID string) {
	t.Helper()

	var event model.Event
	require.NoError(t, gdb.First(&event, "id = ?", eventID).Error)

	var confirmed int64
	require.NoError(t, gdb.Model(&model.Registration{}).
		Where("event_id = ? AND status = ?", eventID, model.StatusConfirmed).
		Count(&confirmed).Error)

	assert.EqualValues(t, event.ConfirmedCount, confirmed)
	assert.GreaterOrEqual(t, event.ConfirmedCount, 0)
	assert.LessOrEqual(t, event.ConfirmedCount, event.Capacity)
}

func TestRegister_ConfirmsUntilCapacityThenWaitlists(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	outA, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, outA.Registration.Status)
	assert.Equal(t, 1, outA.Event.ConfirmedCount)

	outB, err := s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitlisted, outB.Registration.Status)
	assert.Equal(t, 1, outB.Event.ConfirmedCount)

	assertLedgerConsistent(t, gdb, event.ID)
}

func TestRegister_UnknownEvent(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Register(context.Background(), "no-such-event", "alice@campus.edu")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegister_RejectsSecondActiveRegistration(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	_, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)

	// Rejected while confirmed.
	_, err = s.Register(ctx, event.ID, "alice@campus.edu")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	// Rejected while waitlisted too.
	_, err = s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "bob@campus.edu")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegister_ReactivatesCancelledRecord(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	first, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)

	_, err = s.Cancel(ctx, first.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)

	second, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	assert.True(t, second.Reactivated)
	assert.Equal(t, first.Registration.ID, second.Registration.ID)
	assert.Equal(t, model.StatusConfirmed, second.Registration.Status)

	// The pair keeps a single historical row.
	var rows int64
	require.NoError(t, gdb.Model(&model.Registration{}).
		Where("event_id = ? AND student_email = ?", event.ID, "alice@campus.edu").
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	assertLedgerConsistent(t, gdb, event.ID)
}

func TestCancel_PromotesOldestWaiter(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	outA, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	outB, err := s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)
	outC, err := s.Register(ctx, event.ID, "carol@campus.edu")
	require.NoError(t, err)
	require.Equal(t, model.StatusWaitlisted, outB.Registration.Status)
	require.Equal(t, model.StatusWaitlisted, outC.Registration.Status)

	cancel, err := s.Cancel(ctx, outA.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)
	require.NotNil(t, cancel.Promoted)
	assert.Equal(t, outB.Registration.ID, cancel.Promoted.ID)
	assert.Equal(t, model.StatusConfirmed, cancel.Promoted.Status)

	// One seat vacated and immediately reoccupied: the count is unchanged.
	assert.Equal(t, 1, cancel.Event.ConfirmedCount)
	assertLedgerConsistent(t, gdb, event.ID)

	// The next cancellation promotes the next-oldest waiter.
	cancel2, err := s.Cancel(ctx, outB.Registration.ID, "bob@campus.edu")
	require.NoError(t, err)
	require.NotNil(t, cancel2.Promoted)
	assert.Equal(t, outC.Registration.ID, cancel2.Promoted.ID)
	assertLedgerConsistent(t, gdb, event.ID)
}

func TestCancel_NoWaiterFreesSeat(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 2)

	outA, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)

	cancel, err := s.Cancel(ctx, outA.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)
	assert.Nil(t, cancel.Promoted)
	assert.Equal(t, 1, cancel.Event.ConfirmedCount)
	assertLedgerConsistent(t, gdb, event.ID)
}

func TestCancel_WaitlistDepartureLeavesCountAlone(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	_, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	outB, err := s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)
	require.Equal(t, model.StatusWaitlisted, outB.Registration.Status)

	cancel, err := s.Cancel(ctx, outB.Registration.ID, "bob@campus.edu")
	require.NoError(t, err)
	assert.Nil(t, cancel.Promoted)
	assert.Equal(t, 1, cancel.Event.ConfirmedCount)
	assertLedgerConsistent(t, gdb, event.ID)
}

func TestCancel_Idempotent(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	out, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)

	first, err := s.Cancel(ctx, out.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)
	assert.False(t, first.AlreadyCancelled)

	second, err := s.Cancel(ctx, out.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)
	assert.True(t, second.AlreadyCancelled)
	assert.Equal(t, model.StatusCancelled, second.Registration.Status)
	assert.Equal(t, first.Event.ConfirmedCount, second.Event.ConfirmedCount)
	assertLedgerConsistent(t, gdb, event.ID)
}

func TestCancel_OwnershipAndExistence(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	out, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)

	_, err = s.Cancel(ctx, out.Registration.ID, "mallory@campus.edu")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Cancel(ctx, out.Registration.ID+1000, "alice@campus.edu")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegister_ReactivationRejoinsBackOfQueue(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	outA, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	outB, err := s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "carol@campus.edu")
	require.NoError(t, err)

	// Bob leaves the waitlist and rejoins; Carol must now be ahead of him.
	_, err = s.Cancel(ctx, outB.Registration.ID, "bob@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)

	cancel, err := s.Cancel(ctx, outA.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)
	require.NotNil(t, cancel.Promoted)
	assert.Equal(t, "carol@campus.edu", cancel.Promoted.StudentEmail)
}

func TestRegister_ConcurrentOnFullEvent(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	_, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)

	const attempts = 50
	outcomes := make(chan model.RegistrationStatus, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := s.Register(ctx, event.ID, fmt.Sprintf("student%02d@campus.edu", n))
			if assert.NoError(t, err) {
				outcomes <- out.Registration.Status
			}
		}(i)
	}
	wg.Wait()
	close(outcomes)

	// The event was already full: every racer lands on the waitlist.
	var waitlisted int
	for status := range outcomes {
		require.Equal(t, model.StatusWaitlisted, status)
		waitlisted++
	}
	assert.Equal(t, attempts, waitlisted)
	assertLedgerConsistent(t, gdb, event.ID)
}

func TestRegister_ConcurrentExactCapacity(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 5)

	const attempts = 5
	outcomes := make(chan model.RegistrationStatus, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out, err := s.Register(ctx, event.ID, fmt.Sprintf("student%02d@campus.edu", n))
			if assert.NoError(t, err) {
				outcomes <- out.Registration.Status
			}
		}(i)
	}
	wg.Wait()
	close(outcomes)

	for status := range outcomes {
		assert.Equal(t, model.StatusConfirmed, status)
	}

	var event2 model.Event
	require.NoError(t, gdb.First(&event2, "id = ?", event.ID).Error)
	assert.Equal(t, 5, event2.ConfirmedCount)
	assertLedgerConsistent(t, gdb, event.ID)
}

func TestRegister_ConcurrentCancellationsPromoteEachWaiterOnce(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 2)

	outA, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	outB, err := s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "carol@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "dave@campus.edu")
	require.NoError(t, err)

	// Both confirmed seats free up at once; each waiter must be promoted
	// exactly once.
	var wg sync.WaitGroup
	for _, c := range []struct {
		id    int64
		email string
	}{
		{outA.Registration.ID, "alice@campus.edu"},
		{outB.Registration.ID, "bob@campus.edu"},
	} {
		wg.Add(1)
		go func(id int64, email string) {
			defer wg.Done()
			_, err := s.Cancel(ctx, id, email)
			assert.NoError(t, err)
		}(c.id, c.email)
	}
	wg.Wait()

	var confirmed []model.Registration
	require.NoError(t, gdb.
		Where("event_id = ? AND status = ?", event.ID, model.StatusConfirmed).
		Order("student_email").
		Find(&confirmed).Error)
	require.Len(t, confirmed, 2)
	assert.Equal(t, "carol@campus.edu", confirmed[0].StudentEmail)
	assert.Equal(t, "dave@campus.edu", confirmed[1].StudentEmail)
	assertLedgerConsistent(t, gdb, event.ID)
}

func TestCountsByStatus(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	event := createTestEvent(t, s, 1)

	outA, err := s.Register(ctx, event.ID, "alice@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "bob@campus.edu")
	require.NoError(t, err)
	_, err = s.Register(ctx, event.ID, "carol@campus.edu")
	require.NoError(t, err)
	_, err = s.Cancel(ctx, outA.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)

	counts, err := s.CountsByStatus(ctx, event.ID)
	require.NoError(t, err)

	byStatus := make(map[model.RegistrationStatus]int64, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	// Alice cancelled, Bob was promoted into her seat, Carol still waits.
	assert.EqualValues(t, 1, byStatus[model.StatusConfirmed])
	assert.EqualValues(t, 1, byStatus[model.StatusWaitlisted])
	assert.EqualValues(t, 1, byStatus[model.StatusCancelled])

	_, err = s.CountsByStatus(ctx, "no-such-event")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first := createTestEvent(t, s, 1)
	second := createTestEvent(t, s, 1)

	outFirst, err := s.Register(ctx, first.ID, "alice@campus.edu")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // keep created_at ordering observable
	_, err = s.Register(ctx, second.ID, "alice@campus.edu")
	require.NoError(t, err)

	// Cancelled records drop out of the active view.
	_, err = s.Cancel(ctx, outFirst.Registration.ID, "alice@campus.edu")
	require.NoError(t, err)

	regs, err := s.ListActive(ctx, "alice@campus.edu")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, second.ID, regs[0].EventID)
	assert.Equal(t, second.Title, regs[0].Event.Title)

	regs, err = s.ListActive(ctx, "nobody@campus.edu")
	require.NoError(t, err)
	assert.Empty(t, regs)
}
