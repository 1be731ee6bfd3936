package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	consumer := uuid.New()

	slot := env.addSlot(t, uuid.New(), at(10, 0), at(10, 30), SlotAvailable)

	appt, err := env.appointments.Create(ctx, slot.ID, consumer)
	require.NoError(t, err)
	assert.Equal(t, AppointmentBooked, appt.Status)
	assert.Equal(t, consumer, appt.ConsumerID)
	assert.Equal(t, slot.ID, appt.SlotID)
	assert.Equal(t, SlotBooked, env.slotStatus(t, slot.ID))
}

func TestCreateAppointmentSlotNotAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booked := env.addSlot(t, uuid.New(), at(10, 0), at(11, 0), SlotBooked)
	expired := env.addSlot(t, uuid.New(), at(12, 0), at(13, 0), SlotExpired)

	_, err := env.appointments.Create(ctx, booked.ID, uuid.New())
	require.ErrorIs(t, err, ErrSlotNotAvailable)

	_, err = env.appointments.Create(ctx, expired.ID, uuid.New())
	require.ErrorIs(t, err, ErrSlotNotAvailable)

	_, err = env.appointments.Create(ctx, uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestCreateAppointmentSingleWinnerUnderContention(t *testing.T) {
	env := newTestEnv(t)
	slot := env.addSlot(t, uuid.New(), at(10, 0), at(11, 0), SlotAvailable)

	const callers = 16
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.appointments.Create(context.Background(), slot.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, KindInvalidState, KindOf(err))
	}
	assert.Equal(t, 1, wins, "exactly one concurrent booking must win")
	assert.Equal(t, SlotBooked, env.slotStatus(t, slot.ID))
}

func TestCreateAppointmentDailyCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	consumer := uuid.New()

	for hour := 9; hour < 12; hour++ {
		s := env.addSlot(t, uuid.New(), at(hour, 0), at(hour, 30), SlotAvailable)
		_, err := env.appointments.Create(ctx, s.ID, consumer)
		require.NoError(t, err)
	}

	fourth := env.addSlot(t, uuid.New(), at(14, 0), at(14, 30), SlotAvailable)
	_, err := env.appointments.Create(ctx, fourth.ID, consumer)
	require.ErrorIs(t, err, ErrDailyLimitReached)

	// The cap is per calendar day of the slot's start.
	nextDay := env.addSlot(t, uuid.New(), at(10, 0).AddDate(0, 0, 1), at(10, 30).AddDate(0, 0, 1), SlotAvailable)
	_, err = env.appointments.Create(ctx, nextDay.ID, consumer)
	require.NoError(t, err)
}

func TestCreateAppointmentOverlapClash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	consumer := uuid.New()

	first := env.addSlot(t, uuid.New(), at(10, 0), at(11, 0), SlotAvailable)
	_, err := env.appointments.Create(ctx, first.ID, consumer)
	require.NoError(t, err)

	overlapping := env.addSlot(t, uuid.New(), at(10, 30), at(11, 30), SlotAvailable)
	_, err = env.appointments.Create(ctx, overlapping.ID, consumer)
	require.ErrorIs(t, err, ErrBookingClash)

	adjacent := env.addSlot(t, uuid.New(), at(11, 0), at(11, 30), SlotAvailable)
	_, err = env.appointments.Create(ctx, adjacent.ID, consumer)
	require.NoError(t, err)
}

func TestCreateAppointmentConcurrentOverlapSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	consumer := uuid.New()

	// Overlapping slots from different providers: distinct slot locks,
	// so only the consumer lock stands between the racing bookings.
	slots := []*Slot{
		env.addSlot(t, uuid.New(), at(10, 0), at(11, 0), SlotAvailable),
		env.addSlot(t, uuid.New(), at(10, 15), at(11, 15), SlotAvailable),
		env.addSlot(t, uuid.New(), at(10, 30), at(11, 30), SlotAvailable),
	}

	errs := make([]error, len(slots))
	var wg sync.WaitGroup
	for i, slot := range slots {
		wg.Add(1)
		go func(i int, slotID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.appointments.Create(context.Background(), slotID, consumer)
		}(i, slot.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, KindInvalidState, KindOf(err))
	}
	assert.Equal(t, 1, wins, "overlapping bookings must have a single winner")

	mine, err := env.repo.ListAppointmentsByConsumer(context.Background(), consumer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestCreateAppointmentConcurrentDailyCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	consumer := uuid.New()

	// Two of the three allowed bookings are already taken.
	for hour := 8; hour < 10; hour++ {
		s := env.addSlot(t, uuid.New(), at(hour, 0), at(hour, 30), SlotAvailable)
		_, err := env.appointments.Create(ctx, s.ID, consumer)
		require.NoError(t, err)
	}

	// Four disjoint candidates race for the last place under the cap.
	slots := []*Slot{
		env.addSlot(t, uuid.New(), at(11, 0), at(11, 30), SlotAvailable),
		env.addSlot(t, uuid.New(), at(12, 0), at(12, 30), SlotAvailable),
		env.addSlot(t, uuid.New(), at(13, 0), at(13, 30), SlotAvailable),
		env.addSlot(t, uuid.New(), at(14, 0), at(14, 30), SlotAvailable),
	}

	errs := make([]error, len(slots))
	var wg sync.WaitGroup
	for i, slot := range slots {
		wg.Add(1)
		go func(i int, slotID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.appointments.Create(context.Background(), slotID, consumer)
		}(i, slot.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, KindInvalidState, KindOf(err))
	}
	assert.Equal(t, 1, wins)

	mine, err := env.repo.ListAppointmentsByConsumer(ctx, consumer)
	require.NoError(t, err)
	assert.Len(t, mine, 3, "the daily cap holds under concurrent bookings")
}

func TestConsumerBookingsStayPairwiseDisjoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	consumer := uuid.New()

	// Overlapping candidate slots from different providers; the
	// consumer hammers all of them.
	for min := 0; min < 120; min += 20 {
		s := env.addSlot(t, uuid.New(), at(9, min), at(9, min).Add(40*time.Minute), SlotAvailable)
		_, _ = env.appointments.Create(ctx, s.ID, consumer)
	}

	mine, err := env.repo.ListAppointmentsByConsumer(ctx, consumer)
	require.NoError(t, err)
	for i := range mine {
		for j := i + 1; j < len(mine); j++ {
			a, b := &mine[i], &mine[j]
			assert.False(t, a.Slot.Overlaps(b.Slot.StartTime, b.Slot.EndTime),
				"booked appointments %s and %s overlap", a.ID, b.ID)
		}
	}
}

func TestCancelPromotesHeadOfQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := uuid.New()
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	slot := env.addSlot(t, provider, at(10, 0), at(10, 30), SlotAvailable)
	a1, err := env.appointments.Create(ctx, slot.ID, u1)
	require.NoError(t, err)

	_, err = env.appointments.Create(ctx, slot.ID, u2)
	require.ErrorIs(t, err, ErrSlotNotAvailable)

	require.NoError(t, env.queue.Join(ctx, slot.ID, u2))
	require.NoError(t, env.queue.Join(ctx, slot.ID, u3))

	require.NoError(t, env.appointments.Cancel(ctx, a1.ID, consumerActor(u1)))

	// The cancelled appointment is gone, replaced by an audit record.
	_, err = env.repo.GetAppointmentByID(ctx, a1.ID)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.Len(t, env.repo.cancellations, 1)
	assert.Equal(t, a1.ID, env.repo.cancellations[0].AppointmentID)
	assert.Equal(t, u1, env.repo.cancellations[0].ConsumerID)

	// u2 was promoted, u3 is now the head of the queue.
	promoted, err := env.repo.GetBookedAppointmentForSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, u2, promoted.ConsumerID)
	assert.Equal(t, AppointmentBooked, promoted.Status)
	assert.Equal(t, SlotBooked, env.slotStatus(t, slot.ID))
	assert.Equal(t, []uuid.UUID{u3}, env.waitlistOf(t, slot.ID))
}

func TestCancelWithEmptyQueueLeavesSlotAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1 := uuid.New()

	slot := env.addSlot(t, uuid.New(), at(10, 0), at(10, 30), SlotAvailable)
	a1, err := env.appointments.Create(ctx, slot.ID, u1)
	require.NoError(t, err)

	require.NoError(t, env.appointments.Cancel(ctx, a1.ID, consumerActor(u1)))
	assert.Equal(t, SlotAvailable, env.slotStatus(t, slot.ID))
}

func TestCancelAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := uuid.New()
	consumer := uuid.New()

	_, a := env.addBooking(t, provider, consumer, at(10, 0), at(11, 0))

	err := env.appointments.Cancel(ctx, a.ID, consumerActor(uuid.New()))
	require.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, env.appointments.Cancel(ctx, a.ID, providerActor(provider)))
}

func TestCancelFinishedAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	consumer := uuid.New()

	slot := env.addSlot(t, uuid.New(), at(10, 0), at(11, 0), SlotExpired)
	a, err := env.repo.CreateAppointment(ctx, &Appointment{
		ID:         uuid.New(),
		SlotID:     slot.ID,
		ConsumerID: consumer,
		Status:     AppointmentCompleted,
	})
	require.NoError(t, err)

	err = env.appointments.Cancel(ctx, a.ID, consumerActor(consumer))
	require.ErrorIs(t, err, ErrAppointmentFinished)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestCompleteAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := uuid.New()

	slot, appt := env.addBooking(t, provider, uuid.New(), at(10, 0), at(11, 0))

	// Before the slot starts.
	env.clk.Set(at(9, 0))
	err := env.appointments.Complete(ctx, appt.ID, providerActor(provider))
	require.ErrorIs(t, err, ErrOutsideSlotWindow)

	env.clk.Set(at(10, 15))

	err = env.appointments.Complete(ctx, appt.ID, consumerActor(appt.ConsumerID))
	require.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, env.appointments.Complete(ctx, appt.ID, providerActor(provider)))

	done, err := env.repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, AppointmentCompleted, done.Status)
	assert.Equal(t, SlotExpired, env.slotStatus(t, slot.ID))

	// Completing twice is rejected.
	err = env.appointments.Complete(ctx, appt.ID, providerActor(provider))
	require.ErrorIs(t, err, ErrAppointmentFinished)
}

func TestCompleteAfterSlotEnd(t *testing.T) {
	env := newTestEnv(t)
	provider := uuid.New()

	_, appt := env.addBooking(t, provider, uuid.New(), at(10, 0), at(11, 0))

	env.clk.Set(at(11, 30))
	err := env.appointments.Complete(context.Background(), appt.ID, providerActor(provider))
	require.ErrorIs(t, err, ErrOutsideSlotWindow)
}

func TestGetByIDVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := uuid.New()
	consumer := uuid.New()

	_, appt := env.addBooking(t, provider, consumer, at(10, 0), at(11, 0))

	got, err := env.appointments.GetByID(ctx, appt.ID, consumerActor(consumer))
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
	require.NotNil(t, got.Slot)

	_, err = env.appointments.GetByID(ctx, appt.ID, providerActor(provider))
	require.NoError(t, err)

	// A stranger gets not-found, not forbidden.
	_, err = env.appointments.GetByID(ctx, appt.ID, consumerActor(uuid.New()))
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListForConsumerAndProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := uuid.New()
	consumer := uuid.New()

	env.addBooking(t, provider, consumer, at(10, 0), at(11, 0))
	env.addBooking(t, provider, uuid.New(), at(12, 0), at(13, 0))
	env.addBooking(t, uuid.New(), consumer, at(14, 0), at(15, 0))

	mine, err := env.appointments.ListForConsumer(ctx, consumerActor(consumer))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := env.appointments.ListForProvider(ctx, providerActor(provider))
	require.NoError(t, err)
	assert.Len(t, theirs, 2)
}
