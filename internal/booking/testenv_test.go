package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/slotboard/booking-service/internal/clock"
	"github.com/slotboard/booking-service/internal/config"
)

// testBase is 08:00 UTC on an arbitrary Monday; tests place slots
// relative to it.
var testBase = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	repo     *memRepo
	waitlist *memWaitlist
	locker   *localLocker
	notifier *recordNotifier
	clk      *clock.MockClock
	cfg      config.Config

	slots        *SlotService
	appointments *AppointmentService
	queue        *QueueService
	reconciler   *Reconciler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:     newMemRepo(),
		waitlist: newMemWaitlist(),
		locker:   newLocalLocker(),
		notifier: newRecordNotifier(),
		clk:      clock.NewMockClock(testBase),
		cfg: config.Config{
			MinSlotDuration:   30 * time.Minute,
			MaxSlotDuration:   120 * time.Minute,
			MaxBookingsPerDay: 3,
			ReconcileInterval: time.Minute,
			ReminderLookahead: 5 * time.Minute,
		},
	}

	env.queue = NewQueueService(env.repo, env.waitlist, env.locker, env.notifier, env.clk)
	env.slots = NewSlotService(env.repo, env.waitlist, env.locker, env.notifier, env.clk, env.cfg)
	env.appointments = NewAppointmentService(env.repo, env.queue, env.locker, env.notifier, env.clk, env.cfg)
	env.reconciler = NewReconciler(env.repo, env.queue, env.notifier, env.clk, env.cfg)

	return env
}

// at returns a clock time on the base day.
func at(hour, min int) time.Time {
	return time.Date(testBase.Year(), testBase.Month(), testBase.Day(), hour, min, 0, 0, time.UTC)
}

// addSlot seeds a slot directly in the store, bypassing validation.
func (e *testEnv) addSlot(t *testing.T, providerID uuid.UUID, start, end time.Time, status SlotStatus) *Slot {
	t.Helper()

	s, err := e.repo.CreateSlot(context.Background(), &Slot{
		ID:         uuid.New(),
		ProviderID: providerID,
		StartTime:  start,
		EndTime:    end,
		Status:     status,
	})
	require.NoError(t, err)
	return s
}

// addBooking seeds a booked slot plus its appointment directly.
func (e *testEnv) addBooking(t *testing.T, providerID, consumerID uuid.UUID, start, end time.Time) (*Slot, *Appointment) {
	t.Helper()

	s := e.addSlot(t, providerID, start, end, SlotBooked)
	a, err := e.repo.CreateAppointment(context.Background(), &Appointment{
		ID:         uuid.New(),
		SlotID:     s.ID,
		ConsumerID: consumerID,
		Status:     AppointmentBooked,
	})
	require.NoError(t, err)
	return s, a
}

func (e *testEnv) slotStatus(t *testing.T, id uuid.UUID) SlotStatus {
	t.Helper()

	s, err := e.repo.GetSlotByID(context.Background(), id)
	require.NoError(t, err)
	return s.Status
}

func (e *testEnv) waitlistOf(t *testing.T, slotID uuid.UUID) []uuid.UUID {
	t.Helper()

	members, err := e.waitlist.Range(context.Background(), slotID)
	require.NoError(t, err)
	return members
}

func consumerActor(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleConsumer} }
func providerActor(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleProvider} }
func adminActor() Actor                { return Actor{ID: uuid.New(), Role: RoleAdmin} }
