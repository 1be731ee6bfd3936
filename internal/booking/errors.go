package booking

import (
	"errors"

	redisclient "github.com/slotboard/booking-service/internal/redis"
)

var (
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrQueueNotFound       = errors.New("no waitlist exists for this slot")
	ErrNotInQueue          = errors.New("consumer is not in the waitlist for this slot")

	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrAppointmentFinished = errors.New("appointment is already expired or completed")

	ErrSlotNotAvailable   = errors.New("slot is either booked or expired")
	ErrSlotExpired        = errors.New("slot is expired")
	ErrDurationOutOfRange = errors.New("slot duration is outside the allowed range")
	ErrProviderSlotClash  = errors.New("provider already has a slot that overlaps this time range")
	ErrBookingClash       = errors.New("consumer already has an appointment that overlaps this slot")
	ErrDailyLimitReached  = errors.New("consumer has reached the maximum bookings for this day")
	ErrQueueClosed        = errors.New("cannot queue for an available or expired slot")
	ErrOwnSlotQueue       = errors.New("cannot queue for your own slot")
	ErrQueueClash         = errors.New("consumer is already queued for a slot in the same time window")
	ErrOutsideSlotWindow  = errors.New("appointment can only be completed during its scheduled time")
	ErrSlotContended      = errors.New("slot is currently being modified, please retry")
)

// Kind classifies an error for the caller-facing boundary. Anything
// not raised by this package is Internal and must not leak as-is.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindConflict
)

func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrQueueNotFound),
		errors.Is(err, ErrNotInQueue):
		return KindNotFound
	case errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrAppointmentFinished):
		return KindForbidden
	case errors.Is(err, ErrSlotNotAvailable),
		errors.Is(err, ErrSlotExpired),
		errors.Is(err, ErrDurationOutOfRange),
		errors.Is(err, ErrProviderSlotClash),
		errors.Is(err, ErrBookingClash),
		errors.Is(err, ErrDailyLimitReached),
		errors.Is(err, ErrQueueClosed),
		errors.Is(err, ErrOwnSlotQueue),
		errors.Is(err, ErrQueueClash),
		errors.Is(err, ErrOutsideSlotWindow),
		errors.Is(err, ErrSlotContended),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		return KindInvalidState
	default:
		return KindInternal
	}
}
