package booking

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/slotboard/booking-service/internal/clock"
	"github.com/slotboard/booking-service/internal/notify"
	redisclient "github.com/slotboard/booking-service/internal/redis"
)

// QueueService owns the per-slot waitlist: join validation, FIFO leave,
// and the dequeue-and-rebook step that runs when a booking is
// cancelled.
type QueueService struct {
	repo     Repository
	waitlist WaitlistStore
	locker   redisclient.Locker
	notifier notify.Notifier
	clk      clock.Clock
}

func NewQueueService(repo Repository, waitlist WaitlistStore, locker redisclient.Locker, notifier notify.Notifier, clk clock.Clock) *QueueService {
	return &QueueService{
		repo:     repo,
		waitlist: waitlist,
		locker:   locker,
		notifier: notifier,
		clk:      clk,
	}
}

// Join appends a consumer to a slot's waitlist. Queuing is only
// permitted while the slot is booked and not yet past its end time, the
// consumer does not hold the slot's current booking, and the consumer
// has no booked appointment or other queue membership overlapping the
// slot's interval.
func (q *QueueService) Join(ctx context.Context, slotID, consumerID uuid.UUID) error {
	return q.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		slot, err := q.repo.GetSlotByID(lockCtx, slotID)
		if err != nil {
			return err
		}
		if slot.Status != SlotBooked || !q.clk.Now().Before(slot.EndTime) {
			return ErrQueueClosed
		}

		current, err := q.repo.GetBookedAppointmentForSlot(lockCtx, slotID)
		if err != nil && KindOf(err) != KindNotFound {
			return fmt.Errorf("load current booking: %w", err)
		}
		if current != nil && current.ConsumerID == consumerID {
			return ErrOwnSlotQueue
		}

		booked, err := q.repo.ListAppointmentsByConsumer(lockCtx, consumerID)
		if err != nil {
			return fmt.Errorf("list consumer appointments: %w", err)
		}
		for i := range booked {
			a := &booked[i]
			if a.Status != AppointmentBooked || a.Slot == nil {
				continue
			}
			if a.Slot.Overlaps(slot.StartTime, slot.EndTime) {
				return ErrBookingClash
			}
		}

		if err := q.checkQueueClash(lockCtx, slot, consumerID); err != nil {
			return err
		}

		if err := q.waitlist.Append(lockCtx, slotID, consumerID); err != nil {
			return fmt.Errorf("append to waitlist: %w", err)
		}
		log.Printf("consumer %s joined waitlist for slot %s", consumerID, slotID)
		return nil
	})
}

// checkQueueClash scans every waitlist for a membership of the same
// consumer on a slot overlapping the target interval. The scan is not
// atomic across keys: two joins racing on different slots can both be
// admitted to overlapping waitlists. That weak consistency is accepted;
// promotion does not re-validate either.
func (q *QueueService) checkQueueClash(ctx context.Context, target *Slot, consumerID uuid.UUID) error {
	queuedSlots, err := q.waitlist.SlotIDs(ctx)
	if err != nil {
		return fmt.Errorf("scan waitlist keys: %w", err)
	}

	for _, otherID := range queuedSlots {
		members, err := q.waitlist.Range(ctx, otherID)
		if err != nil {
			return fmt.Errorf("range waitlist %s: %w", otherID, err)
		}

		queued := false
		for _, m := range members {
			if m == consumerID {
				queued = true
				break
			}
		}
		if !queued {
			continue
		}

		other, err := q.repo.GetSlotByID(ctx, otherID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				continue
			}
			return fmt.Errorf("load queued slot %s: %w", otherID, err)
		}
		if other.Overlaps(target.StartTime, target.EndTime) {
			return ErrQueueClash
		}
	}
	return nil
}

// Leave removes a consumer from a slot's waitlist, preserving the
// relative order of everyone else.
func (q *QueueService) Leave(ctx context.Context, slotID, consumerID uuid.UUID) error {
	return q.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		members, err := q.waitlist.Range(lockCtx, slotID)
		if err != nil {
			return fmt.Errorf("range waitlist: %w", err)
		}
		if len(members) == 0 {
			return ErrQueueNotFound
		}

		remaining := make([]uuid.UUID, 0, len(members))
		found := false
		for _, m := range members {
			if m == consumerID {
				found = true
				continue
			}
			remaining = append(remaining, m)
		}
		if !found {
			return ErrNotInQueue
		}

		if err := q.waitlist.Replace(lockCtx, slotID, remaining); err != nil {
			return fmt.Errorf("replace waitlist: %w", err)
		}
		return nil
	})
}

// Size returns the number of waiting consumers.
func (q *QueueService) Size(ctx context.Context, slotID uuid.UUID) (int64, error) {
	return q.waitlist.Len(ctx, slotID)
}

// Entries returns the ordered waiting consumers, head first.
func (q *QueueService) Entries(ctx context.Context, slotID uuid.UUID) ([]uuid.UUID, error) {
	return q.waitlist.Range(ctx, slotID)
}

// ClearForSlot drops the whole waitlist for a slot. Called whenever the
// slot's booking context becomes invalid (expiry, reschedule).
func (q *QueueService) ClearForSlot(ctx context.Context, slotID uuid.UUID) error {
	return q.waitlist.Delete(ctx, slotID)
}

// promoteNext pops the head of the slot's waitlist and, if a consumer
// was waiting, books the slot for them. The caller must already hold
// the slot lock. Promotion deliberately skips the overlap and daily-cap
// checks: the consumer was validated at join time and the product keeps
// the promise that the head of the queue gets the slot.
func (q *QueueService) promoteNext(ctx context.Context, slotID uuid.UUID) error {
	consumerID, ok, err := q.waitlist.PopFront(ctx, slotID)
	if err != nil {
		return fmt.Errorf("pop waitlist: %w", err)
	}
	if !ok {
		return nil
	}

	log.Printf("auto-booking slot %s for next consumer in queue %s", slotID, consumerID)

	if _, err := q.repo.UpdateSlotStatus(ctx, slotID, SlotAvailable, SlotBooked); err != nil {
		return fmt.Errorf("re-book slot for promotion: %w", err)
	}

	appt, err := q.repo.CreateAppointment(ctx, &Appointment{
		ID:         uuid.New(),
		SlotID:     slotID,
		ConsumerID: consumerID,
		Status:     AppointmentBooked,
	})
	if err != nil {
		return fmt.Errorf("create promoted appointment: %w", err)
	}

	metricPromoted.Inc()
	metricBooked.Inc()
	logEvent(ctx, q.repo, q.clk, EventQueuePromoted, &slotID, &appt.ID, map[string]any{
		"consumer_id": consumerID.String(),
	})
	notifyAsync(q.notifier, consumerID.String(),
		fmt.Sprintf("A booking opened up: you have been booked into slot %s", slotID))

	return nil
}
