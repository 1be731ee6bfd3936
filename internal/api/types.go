package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotboard/booking-service/internal/booking"
)

type CreateSlotRequest struct {
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type UpdateSlotRequest struct {
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	ProviderID  uuid.UUID `json:"provider_id"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
}

func toSlotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		ProviderID:  s.ProviderID,
		Description: s.Description,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Status:      string(s.Status),
	}
}

type CreateAppointmentRequest struct {
	SlotID string `json:"slot_id"`
}

type AppointmentResponse struct {
	ID         uuid.UUID     `json:"id"`
	SlotID     uuid.UUID     `json:"slot_id"`
	ConsumerID uuid.UUID     `json:"consumer_id"`
	Status     string        `json:"status"`
	Slot       *SlotResponse `json:"slot,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		SlotID:     a.SlotID,
		ConsumerID: a.ConsumerID,
		Status:     string(a.Status),
	}
}

func toAppointmentDetailResponse(d *booking.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(&d.Appointment)
	if d.Slot != nil {
		slot := toSlotResponse(d.Slot)
		resp.Slot = &slot
	}
	return resp
}

type QueueResponse struct {
	SlotID    uuid.UUID   `json:"slot_id"`
	Size      int64       `json:"size"`
	Consumers []uuid.UUID `json:"consumers"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
