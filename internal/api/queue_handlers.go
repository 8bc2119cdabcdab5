package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mediqueue/queue-service/internal/queue"
)

func checkInHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		entry, err := svc.CheckIn(r.Context(), appointmentID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toQueueEntryResponse(entry))
	}
}

func callNextHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		entry, err := svc.CallNext(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		// Nobody was promoted into serving: empty queue, or next was not
		// staged yet.
		if entry == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeJSON(w, http.StatusOK, toQueueEntryResponse(entry))
	}
}

func cancelQueueEntryHandler(svc *queue.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entry_id", "id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), entryID); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func queueSnapshotHandler(view *queue.Projection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		entries, err := view.Snapshot(r.Context(), doctorID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := QueueSnapshotResponse{Entries: toQueueEntryResponses(entries)}

		if serving, ok := queue.ServingToken(entries); ok {
			resp.ServingToken = &serving

			if tokenParam := r.URL.Query().Get("token"); tokenParam != "" {
				token, err := strconv.Atoi(tokenParam)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_token", "token must be an integer")
					return
				}
				position := queue.Position(token, serving)
				waitMins := int(view.EstimatedWait(position).Minutes())
				resp.Position = &position
				resp.EstimatedWaitMins = &waitMins
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
