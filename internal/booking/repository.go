package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all durable-store interactions needed by the
// services and the reconciler. Single-record writes are atomic; the
// conditional status updates are the compare-and-swap primitive that
// makes reconciler transitions exactly-once.
type Repository interface {
	CreateSlot(ctx context.Context, s *Slot) (*Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	UpdateSlotSchedule(ctx context.Context, id uuid.UUID, start, end time.Time, description string) (*Slot, error)
	// UpdateSlotStatus transitions status only when the current status
	// matches from; returns ErrSlotNotFound when the guard fails.
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	ListSlotsByProvider(ctx context.Context, providerID uuid.UUID) ([]Slot, error)
	ListAllSlots(ctx context.Context) ([]Slot, error)
	// FindSlotsEndedBefore returns slots in the given status whose end
	// time lies strictly before t.
	FindSlotsEndedBefore(ctx context.Context, t time.Time, status SlotStatus) ([]Slot, error)

	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetBookedAppointmentForSlot returns the live booking on a slot,
	// or ErrAppointmentNotFound when there is none.
	GetBookedAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus is the appointment-side conditional
	// transition; ErrAppointmentNotFound when the guard fails.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	ListAppointmentsByConsumer(ctx context.Context, consumerID uuid.UUID) ([]AppointmentDetail, error)
	ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID) ([]AppointmentDetail, error)
	// FindBookedEndedBefore returns booked appointments whose slot end
	// time lies strictly before t.
	FindBookedEndedBefore(ctx context.Context, t time.Time) ([]AppointmentDetail, error)
	// FindBookedStartingBetween returns booked appointments whose slot
	// start time lies in (from, to).
	FindBookedStartingBetween(ctx context.Context, from, to time.Time) ([]AppointmentDetail, error)

	InsertCancellationLog(ctx context.Context, cl CancellationLog) error
	InsertEvent(ctx context.Context, ev EventLog) error
}

// WaitlistStore is the ordered per-slot FIFO queue backend.
type WaitlistStore interface {
	Append(ctx context.Context, slotID, consumerID uuid.UUID) error
	PopFront(ctx context.Context, slotID uuid.UUID) (uuid.UUID, bool, error)
	Range(ctx context.Context, slotID uuid.UUID) ([]uuid.UUID, error)
	Replace(ctx context.Context, slotID uuid.UUID, consumers []uuid.UUID) error
	Delete(ctx context.Context, slotID uuid.UUID) error
	Len(ctx context.Context, slotID uuid.UUID) (int64, error)
	SlotIDs(ctx context.Context) ([]uuid.UUID, error)
}
