package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/slotboard/booking-service/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps a core error onto an HTTP status. Internal
// errors are logged and rendered as a generic response so that store
// and driver details never leak past the boundary.
func writeDomainError(w http.ResponseWriter, err error) {
	switch booking.KindOf(err) {
	case booking.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case booking.KindForbidden:
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case booking.KindInvalidState:
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case booking.KindConflict:
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
