package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/slotboard/booking-service/internal/clock"
	"github.com/slotboard/booking-service/internal/config"
	"github.com/slotboard/booking-service/internal/notify"
)

// ErrReconcileInFlight is returned when a tick is skipped because the
// previous one has not finished.
var ErrReconcileInFlight = errors.New("reconciliation already in flight")

// Reconciler converges expired slots and appointments to their terminal
// states and emits reminders for upcoming appointments. Each record's
// transition is a conditional update, so records already transitioned
// by a previous tick (or by a concurrent cancel/complete) are skipped,
// and a run that fails on one record still converges the rest.
type Reconciler struct {
	repo      Repository
	queue     *QueueService
	notifier  notify.Notifier
	clk       clock.Clock
	interval  time.Duration
	lookahead time.Duration

	inFlight atomic.Bool
}

func NewReconciler(repo Repository, queue *QueueService, notifier notify.Notifier, clk clock.Clock, cfg config.Config) *Reconciler {
	return &Reconciler{
		repo:      repo,
		queue:     queue,
		notifier:  notifier,
		clk:       clk,
		interval:  cfg.ReconcileInterval,
		lookahead: cfg.ReminderLookahead,
	}
}

// Run executes one pass immediately, then ticks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler stopping")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := r.RunOnce(runCtx); err != nil {
		if errors.Is(err, ErrReconcileInFlight) {
			log.Println("reconcile tick skipped, previous run still in flight")
			return
		}
		log.Printf("reconcile run error: %v", err)
		return
	}
	log.Printf("reconcile run complete in %s", time.Since(start))
}

// RunOnce performs the three passes once. Ticks never overlap: if a run
// is already in flight the call is rejected.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		metricReconcileSkipped.Inc()
		return ErrReconcileInFlight
	}
	defer r.inFlight.Store(false)

	if err := r.expireBookedAppointments(ctx); err != nil {
		log.Printf("expire booked appointments pass: %v", err)
	}
	if err := r.expireAvailableSlots(ctx); err != nil {
		log.Printf("expire available slots pass: %v", err)
	}
	if err := r.sendReminders(ctx); err != nil {
		log.Printf("reminder pass: %v", err)
	}

	metricReconcileRuns.Inc()
	return nil
}

// expireBookedAppointments finds booked appointments whose slot has
// ended and moves both the appointment and its slot to expired.
func (r *Reconciler) expireBookedAppointments(ctx context.Context) error {
	now := r.clk.Now()

	stale, err := r.repo.FindBookedEndedBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("find ended bookings: %w", err)
	}

	for i := range stale {
		a := &stale[i]

		if _, err := r.repo.UpdateAppointmentStatus(ctx, a.ID, AppointmentBooked, AppointmentExpired); err != nil {
			if KindOf(err) == KindNotFound {
				// Already transitioned between the scan and the write.
				continue
			}
			log.Printf("expire appointment %s: %v", a.ID, err)
			continue
		}
		metricAppointmentsExpired.Inc()
		logEvent(ctx, r.repo, r.clk, EventAppointmentExpired, &a.SlotID, &a.ID, nil)
		notifyAsync(r.notifier, a.ConsumerID.String(),
			fmt.Sprintf("Appointment %s expired", a.ID))

		slot, err := r.repo.UpdateSlotStatus(ctx, a.SlotID, SlotBooked, SlotExpired)
		if err != nil {
			log.Printf("expire slot %s for appointment %s: %v", a.SlotID, a.ID, err)
			continue
		}
		metricSlotsExpired.Inc()
		logEvent(ctx, r.repo, r.clk, EventSlotExpired, &a.SlotID, nil, nil)

		if err := r.queue.ClearForSlot(ctx, a.SlotID); err != nil {
			log.Printf("clear waitlist for expired slot %s: %v", a.SlotID, err)
		}
		notifyAsync(r.notifier, slot.ProviderID.String(),
			fmt.Sprintf("Slot %s expired", slot.ID))
	}

	return nil
}

// expireAvailableSlots retires slots that ended without ever being
// booked.
func (r *Reconciler) expireAvailableSlots(ctx context.Context) error {
	now := r.clk.Now()

	stale, err := r.repo.FindSlotsEndedBefore(ctx, now, SlotAvailable)
	if err != nil {
		return fmt.Errorf("find ended available slots: %w", err)
	}

	for i := range stale {
		s := &stale[i]

		if _, err := r.repo.UpdateSlotStatus(ctx, s.ID, SlotAvailable, SlotExpired); err != nil {
			if KindOf(err) == KindNotFound {
				continue
			}
			log.Printf("expire slot %s: %v", s.ID, err)
			continue
		}
		metricSlotsExpired.Inc()
		logEvent(ctx, r.repo, r.clk, EventSlotExpired, &s.ID, nil, nil)

		if err := r.queue.ClearForSlot(ctx, s.ID); err != nil {
			log.Printf("clear waitlist for expired slot %s: %v", s.ID, err)
		}
		notifyAsync(r.notifier, s.ProviderID.String(),
			fmt.Sprintf("Slot %s expired", s.ID))
	}

	return nil
}

// sendReminders notifies consumers whose booked appointment starts
// inside the lookahead window. There is no reminded marker: a consumer
// inside the window is re-notified on every tick until the slot starts.
func (r *Reconciler) sendReminders(ctx context.Context) error {
	now := r.clk.Now()

	upcoming, err := r.repo.FindBookedStartingBetween(ctx, now, now.Add(r.lookahead))
	if err != nil {
		return fmt.Errorf("find upcoming bookings: %w", err)
	}

	for i := range upcoming {
		a := &upcoming[i]
		if a.Slot == nil {
			continue
		}
		metricRemindersSent.Inc()
		notifyAsync(r.notifier, a.ConsumerID.String(),
			fmt.Sprintf("Reminder: your appointment %s starts at %s", a.ID, a.Slot.StartTime.Format(time.RFC3339)))
	}

	return nil
}
