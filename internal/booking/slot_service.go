package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/slotboard/booking-service/internal/clock"
	"github.com/slotboard/booking-service/internal/config"
	"github.com/slotboard/booking-service/internal/notify"
	redisclient "github.com/slotboard/booking-service/internal/redis"
)

// SlotService owns the slot lifecycle: creation with overlap
// validation, schedule updates, deletion, and reads.
type SlotService struct {
	repo     Repository
	waitlist WaitlistStore
	locker   redisclient.Locker
	notifier notify.Notifier
	clk      clock.Clock
	cfg      config.Config
}

func NewSlotService(repo Repository, waitlist WaitlistStore, locker redisclient.Locker, notifier notify.Notifier, clk clock.Clock, cfg config.Config) *SlotService {
	return &SlotService{
		repo:     repo,
		waitlist: waitlist,
		locker:   locker,
		notifier: notifier,
		clk:      clk,
		cfg:      cfg,
	}
}

// CreateSlot publishes a new available slot for a provider. The slot
// duration must fall inside the configured bounds and the interval must
// not overlap any of the provider's other available or booked slots.
func (s *SlotService) CreateSlot(ctx context.Context, providerID uuid.UUID, start, end time.Time, description string) (*Slot, error) {
	duration := end.Sub(start)
	if duration < s.cfg.MinSlotDuration || duration > s.cfg.MaxSlotDuration {
		return nil, fmt.Errorf("%w: got %s, allowed [%s, %s]",
			ErrDurationOutOfRange, duration, s.cfg.MinSlotDuration, s.cfg.MaxSlotDuration)
	}

	existing, err := s.repo.ListSlotsByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list provider slots: %w", err)
	}
	for i := range existing {
		other := &existing[i]
		if other.Status != SlotAvailable && other.Status != SlotBooked {
			continue
		}
		if other.Overlaps(start, end) {
			return nil, fmt.Errorf("%w: clashes with slot %s", ErrProviderSlotClash, other.ID)
		}
	}

	created, err := s.repo.CreateSlot(ctx, &Slot{
		ID:          uuid.New(),
		ProviderID:  providerID,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		Status:      SlotAvailable,
	})
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return created, nil
}

// UpdateSlot reschedules a slot. The waitlist is cleared because the
// queued consumers signed up for the old interval; each of them gets a
// reschedule notification.
func (s *SlotService) UpdateSlot(ctx context.Context, id uuid.UUID, actor Actor, start, end time.Time, description string) (*Slot, error) {
	var updated *Slot

	err := s.locker.WithSlotLock(ctx, id, func(lockCtx context.Context) error {
		slot, err := s.repo.GetSlotByID(lockCtx, id)
		if err != nil {
			return err
		}
		if slot.Status == SlotExpired {
			return ErrSlotExpired
		}
		if !canManageSlot(actor, slot) {
			return ErrNotAuthorized
		}

		others, err := s.repo.ListSlotsByProvider(lockCtx, slot.ProviderID)
		if err != nil {
			return fmt.Errorf("list provider slots: %w", err)
		}
		for i := range others {
			other := &others[i]
			if other.ID == id {
				continue
			}
			if other.Status != SlotAvailable && other.Status != SlotBooked {
				continue
			}
			if other.Overlaps(start, end) {
				return fmt.Errorf("%w: clashes with slot %s", ErrProviderSlotClash, other.ID)
			}
		}

		updated, err = s.repo.UpdateSlotSchedule(lockCtx, id, start, end, description)
		if err != nil {
			return fmt.Errorf("update slot schedule: %w", err)
		}

		waiting, err := s.waitlist.Range(lockCtx, id)
		if err != nil {
			log.Printf("read waitlist for rescheduled slot %s: %v", id, err)
			waiting = nil
		}
		if err := s.waitlist.Delete(lockCtx, id); err != nil {
			log.Printf("clear waitlist for rescheduled slot %s: %v", id, err)
		}
		for _, consumerID := range waiting {
			notifyAsync(s.notifier, consumerID.String(),
				fmt.Sprintf("Slot %s has been rescheduled, please join the queue again", id))
		}

		s.logEvent(lockCtx, EventSlotRescheduled, &id, nil, map[string]any{
			"start_time": start,
			"end_time":   end,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSlot removes a slot record. There is deliberately no status
// guard: a booked slot can be deleted, which orphans its appointment.
// That matches the current product behavior.
func (s *SlotService) DeleteSlot(ctx context.Context, id uuid.UUID, actor Actor) error {
	return s.locker.WithSlotLock(ctx, id, func(lockCtx context.Context) error {
		slot, err := s.repo.GetSlotByID(lockCtx, id)
		if err != nil {
			return err
		}
		if !canManageSlot(actor, slot) {
			return ErrNotAuthorized
		}

		if err := s.repo.DeleteSlot(lockCtx, id); err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		if err := s.waitlist.Delete(lockCtx, id); err != nil {
			log.Printf("clear waitlist for deleted slot %s: %v", id, err)
		}
		return nil
	})
}

func (s *SlotService) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetSlotByID(ctx, id)
}

func (s *SlotService) ListSlotsByProvider(ctx context.Context, providerID uuid.UUID) ([]Slot, error) {
	return s.repo.ListSlotsByProvider(ctx, providerID)
}

func (s *SlotService) ListAllSlots(ctx context.Context) ([]Slot, error) {
	return s.repo.ListAllSlots(ctx)
}

func (s *SlotService) logEvent(ctx context.Context, eventType string, slotID, appointmentID *uuid.UUID, payload map[string]any) {
	logEvent(ctx, s.repo, s.clk, eventType, slotID, appointmentID, payload)
}
