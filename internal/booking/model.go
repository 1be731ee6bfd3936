package booking

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotExpired   SlotStatus = "expired"
)

type AppointmentStatus string

const (
	AppointmentBooked    AppointmentStatus = "booked"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentExpired   AppointmentStatus = "expired"
)

type Role string

const (
	RoleConsumer Role = "consumer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Actor identifies the caller of an operation. Authentication happens
// upstream; the core only sees the resolved identity and role.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Slot is a provider-owned, bookable time interval. For a given
// provider, no two available or booked slots may overlap.
type Slot struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Status      SlotStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Overlaps reports whether the slot's half-open interval [start,end)
// intersects the given one.
func (s *Slot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// Appointment binds one consumer to one slot. At most one booked
// appointment exists per slot at a time.
type Appointment struct {
	ID         uuid.UUID
	SlotID     uuid.UUID
	ConsumerID uuid.UUID
	Status     AppointmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AppointmentDetail is an appointment hydrated with its slot, as the
// overlap and expiry checks need the slot interval.
type AppointmentDetail struct {
	Appointment
	Slot *Slot
}

// CancellationLog is the audit record written when a booked
// appointment is cancelled and its row deleted.
type CancellationLog struct {
	AppointmentID uuid.UUID
	SlotID        uuid.UUID
	ProviderID    uuid.UUID
	ConsumerID    uuid.UUID
	CancelledAt   time.Time
}

type EventLog struct {
	EventType     string
	SlotID        *uuid.UUID
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
	EventSlotExpired          = "SLOT_EXPIRED"
	EventSlotRescheduled      = "SLOT_RESCHEDULED"
	EventQueuePromoted        = "QUEUE_PROMOTED"
)
