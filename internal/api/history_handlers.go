package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mediqueue/queue-service/internal/history"
)

func createHistoryHandler(svc *history.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}

		var req CreateHistoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		rec, err := svc.Create(r.Context(), history.Record{
			PatientID:    patientID,
			DoctorID:     doctorID,
			DoctorName:   req.DoctorName,
			Department:   req.Department,
			VisitDate:    req.VisitDate,
			Diagnosis:    req.Diagnosis,
			Prescription: req.Prescription,
			FollowUpDate: req.FollowUpDate,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toHistoryResponse(rec))
	}
}

func listHistoryHandler(svc *history.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}

		records, err := svc.ListByPatient(r.Context(), patientID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		result := make([]HistoryResponse, 0, len(records))
		for i := range records {
			result = append(result, toHistoryResponse(&records[i]))
		}
		writeJSON(w, http.StatusOK, result)
	}
}
