package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotboard/booking-service/internal/booking"
)

func joinQueueHandler(svc *booking.QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no actor in request context")
			return
		}

		slotID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.Join(r.Context(), slotID, actor.ID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func leaveQueueHandler(svc *booking.QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no actor in request context")
			return
		}

		slotID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.Leave(r.Context(), slotID, actor.ID); err != nil {
			writeDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getQueueHandler(svc *booking.QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		consumers, err := svc.Entries(r.Context(), slotID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if consumers == nil {
			consumers = []uuid.UUID{}
		}
		writeJSON(w, http.StatusOK, QueueResponse{
			SlotID:    slotID,
			Size:      int64(len(consumers)),
			Consumers: consumers,
		})
	}
}
