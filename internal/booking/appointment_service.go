package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/slotboard/booking-service/internal/clock"
	"github.com/slotboard/booking-service/internal/config"
	"github.com/slotboard/booking-service/internal/notify"
	redisclient "github.com/slotboard/booking-service/internal/redis"
)

// AppointmentService owns the booking lifecycle. Every check-then-write
// against a slot's booking state runs inside that slot's lock, so two
// concurrent bookings of the same available slot cannot both succeed.
type AppointmentService struct {
	repo     Repository
	queue    *QueueService
	locker   redisclient.Locker
	notifier notify.Notifier
	clk      clock.Clock
	cfg      config.Config
}

func NewAppointmentService(repo Repository, queue *QueueService, locker redisclient.Locker, notifier notify.Notifier, clk clock.Clock, cfg config.Config) *AppointmentService {
	return &AppointmentService{
		repo:     repo,
		queue:    queue,
		locker:   locker,
		notifier: notifier,
		clk:      clk,
		cfg:      cfg,
	}
}

// Create books an available slot for a consumer. Preconditions: slot
// available, daily booking cap not reached, and no overlap with the
// consumer's other booked appointments. The slot checks run under the
// slot lock; the per-consumer checks additionally hold the consumer
// lock, so two bookings by one consumer against different slots cannot
// both pass the overlap or cap check before either writes. Lock order
// is slot first, then consumer.
func (s *AppointmentService) Create(ctx context.Context, slotID, consumerID uuid.UUID) (*Appointment, error) {
	var created *Appointment

	err := s.locker.WithSlotLock(ctx, slotID, func(slotCtx context.Context) error {
		return s.locker.WithConsumerLock(slotCtx, consumerID, func(lockCtx context.Context) error {
			var err error
			created, err = s.createLocked(lockCtx, slotID, consumerID)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}
	return created, nil
}

// createLocked runs with both the slot and the consumer lock held.
func (s *AppointmentService) createLocked(ctx context.Context, slotID, consumerID uuid.UUID) (*Appointment, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != SlotAvailable {
		return nil, ErrSlotNotAvailable
	}

	existing, err := s.repo.ListAppointmentsByConsumer(ctx, consumerID)
	if err != nil {
		return nil, fmt.Errorf("list consumer appointments: %w", err)
	}

	if count := countOnDay(existing, slot.StartTime); count >= s.cfg.MaxBookingsPerDay {
		return nil, ErrDailyLimitReached
	}

	for i := range existing {
		a := &existing[i]
		if a.Status != AppointmentBooked || a.Slot == nil {
			continue
		}
		if a.Slot.Overlaps(slot.StartTime, slot.EndTime) {
			return nil, ErrBookingClash
		}
	}

	if _, err := s.repo.UpdateSlotStatus(ctx, slotID, SlotAvailable, SlotBooked); err != nil {
		return nil, fmt.Errorf("book slot: %w", err)
	}

	created, err := s.repo.CreateAppointment(ctx, &Appointment{
		ID:         uuid.New(),
		SlotID:     slotID,
		ConsumerID: consumerID,
		Status:     AppointmentBooked,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	metricBooked.Inc()
	logEvent(ctx, s.repo, s.clk, EventAppointmentBooked, &slotID, &created.ID, map[string]any{
		"consumer_id": consumerID.String(),
	})
	notifyAsync(s.notifier, consumerID.String(), "Your appointment is booked successfully!")
	return created, nil
}

// countOnDay counts appointments whose slot start falls on the same
// calendar day as t, regardless of status. Cancelled bookings free the
// cap because their rows are deleted.
func countOnDay(appts []AppointmentDetail, t time.Time) int {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	count := 0
	for i := range appts {
		a := &appts[i]
		if a.Slot == nil {
			continue
		}
		st := a.Slot.StartTime
		if !st.Before(dayStart) && st.Before(dayEnd) {
			count++
		}
	}
	return count
}

// Cancel releases a booked appointment. The slot returns to available,
// an audit record is written, the appointment row is deleted, and the
// head of the slot's waitlist (if any) is promoted into a fresh
// booking. The transient available status may therefore be overwritten
// before the lock is released.
func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID, actor Actor) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	slotID := appt.SlotID

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		slot, err := s.repo.GetSlotByID(lockCtx, appt.SlotID)
		if err != nil {
			return err
		}

		if !canCancelAppointment(actor, appt, slot) {
			return ErrNotAuthorized
		}
		if appt.Status == AppointmentExpired || appt.Status == AppointmentCompleted {
			return ErrAppointmentFinished
		}

		if _, err := s.repo.UpdateSlotStatus(lockCtx, slot.ID, SlotBooked, SlotAvailable); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}

		if err := s.repo.InsertCancellationLog(lockCtx, CancellationLog{
			AppointmentID: appt.ID,
			SlotID:        slot.ID,
			ProviderID:    slot.ProviderID,
			ConsumerID:    appt.ConsumerID,
			CancelledAt:   s.clk.Now(),
		}); err != nil {
			return fmt.Errorf("write cancellation log: %w", err)
		}

		if err := s.repo.DeleteAppointment(lockCtx, appt.ID); err != nil {
			return fmt.Errorf("delete appointment: %w", err)
		}

		// The cancellation has committed; a failed promotion must not
		// roll it back.
		if err := s.queue.promoteNext(lockCtx, slot.ID); err != nil {
			log.Printf("promote next in queue for slot %s: %v", slot.ID, err)
		}

		metricCancelled.Inc()
		logEvent(lockCtx, s.repo, s.clk, EventAppointmentCancelled, &slot.ID, &appt.ID, map[string]any{
			"consumer_id": appt.ConsumerID.String(),
			"actor_id":    actor.ID.String(),
		})
		notifyAsync(s.notifier, appt.ConsumerID.String(), "Your appointment is cancelled successfully!")
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotContended
	}
	return err
}

// Complete marks a booked appointment as held. Only the slot's provider
// may complete, and only while the current time lies inside the slot
// interval. The slot is retired at the same time.
func (s *AppointmentService) Complete(ctx context.Context, id uuid.UUID, actor Actor) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.locker.WithSlotLock(ctx, appt.SlotID, func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return err
		}
		slot, err := s.repo.GetSlotByID(lockCtx, appt.SlotID)
		if err != nil {
			return err
		}

		if !actor.IsAdmin() && actor.ID != slot.ProviderID {
			return ErrNotAuthorized
		}
		if appt.Status != AppointmentBooked {
			return ErrAppointmentFinished
		}

		now := s.clk.Now()
		if now.Before(slot.StartTime) || now.After(slot.EndTime) {
			return ErrOutsideSlotWindow
		}

		if _, err := s.repo.UpdateAppointmentStatus(lockCtx, appt.ID, AppointmentBooked, AppointmentCompleted); err != nil {
			return fmt.Errorf("complete appointment: %w", err)
		}
		if _, err := s.repo.UpdateSlotStatus(lockCtx, slot.ID, SlotBooked, SlotExpired); err != nil {
			return fmt.Errorf("retire completed slot: %w", err)
		}

		metricCompleted.Inc()
		logEvent(lockCtx, s.repo, s.clk, EventAppointmentCompleted, &slot.ID, &appt.ID, nil)
		notifyAsync(s.notifier, appt.ConsumerID.String(), "Your appointment is completed successfully!")
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotContended
	}
	return err
}

// GetByID returns an appointment with its slot. Visibility is limited
// to the booking consumer and the slot's provider; anyone else gets
// not-found rather than forbidden, so existence does not leak.
func (s *AppointmentService) GetByID(ctx context.Context, id uuid.UUID, actor Actor) (*AppointmentDetail, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slot, err := s.repo.GetSlotByID(ctx, appt.SlotID)
	if err != nil {
		return nil, err
	}
	if !canViewAppointment(actor, appt, slot) {
		return nil, ErrAppointmentNotFound
	}
	return &AppointmentDetail{Appointment: *appt, Slot: slot}, nil
}

// ListForConsumer returns the actor's own appointments.
func (s *AppointmentService) ListForConsumer(ctx context.Context, actor Actor) ([]AppointmentDetail, error) {
	return s.repo.ListAppointmentsByConsumer(ctx, actor.ID)
}

// ListForProvider returns the appointments booked on the actor's slots.
func (s *AppointmentService) ListForProvider(ctx context.Context, actor Actor) ([]AppointmentDetail, error) {
	return s.repo.ListAppointmentsByProvider(ctx, actor.ID)
}
