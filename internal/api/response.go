package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mediqueue/queue-service/internal/appointment"
	"github.com/mediqueue/queue-service/internal/history"
	"github.com/mediqueue/queue-service/internal/queue"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps domain sentinels onto HTTP statuses. Anything not
// recognized is a plain 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, queue.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "queue_entry_not_found", err.Error())
	case errors.Is(err, history.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "history_not_found", err.Error())

	case errors.Is(err, appointment.ErrInvalidTimeSlot),
		errors.Is(err, appointment.ErrInvalidVisitDate),
		errors.Is(err, history.ErrInvalidVisitDate),
		errors.Is(err, history.ErrEmptyDiagnosis):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, appointment.ErrDoctorUnavailable):
		writeError(w, http.StatusConflict, "doctor_unavailable", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, queue.ErrAlreadyCheckedIn):
		writeError(w, http.StatusConflict, "already_checked_in", err.Error())
	case errors.Is(err, queue.ErrNotCheckInable):
		writeError(w, http.StatusConflict, "not_awaiting_check_in", err.Error())
	case errors.Is(err, queue.ErrCancelNotAllowed):
		writeError(w, http.StatusConflict, "cancel_not_allowed", err.Error())

	case errors.Is(err, appointment.ErrBookingInProgress),
		errors.Is(err, queue.ErrQueueBusy),
		errors.Is(err, appointment.ErrConcurrencyConflict),
		errors.Is(err, queue.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict", err.Error())

	case errors.Is(err, appointment.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "the data store is unavailable, please retry")

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
