package booking

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/slotboard/booking-service/internal/clock"
)

// logEvent records a domain event. Event logging is observational:
// failures are logged and never fail the surrounding operation.
func logEvent(ctx context.Context, repo Repository, clk clock.Clock, eventType string, slotID, appointmentID *uuid.UUID, payload map[string]any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			log.Printf("marshal event payload for %s: %v", eventType, err)
			data = nil
		}
	}

	ev := EventLog{
		EventType:     eventType,
		SlotID:        slotID,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     clk.Now(),
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("insert event log %s: %v", eventType, err)
	}
}
