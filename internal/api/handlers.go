package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mediqueue/queue-service/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		appt, err := svc.Create(r.Context(), appointment.Draft{
			PatientID: patientID,
			DoctorID:  doctorID,
			VisitDate: req.VisitDate,
			TimeSlot:  req.TimeSlot,
			Symptoms:  req.Symptoms,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientID must be a valid UUID")
			return
		}

		appts, err := svc.ListByPatient(r.Context(), patientID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		result := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			result = append(result, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func listDoctorAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		appts, err := svc.ListByDoctor(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		result := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			result = append(result, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func listDoctorsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context(), r.URL.Query().Get("department"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		result := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			result = append(result, DoctorResponse{
				ID:         d.ID,
				Name:       d.Name,
				Department: d.Department,
				Available:  d.Available,
			})
		}
		writeJSON(w, http.StatusOK, result)
	}
}
