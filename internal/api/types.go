package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediqueue/queue-service/internal/appointment"
	"github.com/mediqueue/queue-service/internal/history"
	"github.com/mediqueue/queue-service/internal/queue"
)

type CreateAppointmentRequest struct {
	PatientID string  `json:"patient_id"`
	DoctorID  string  `json:"doctor_id"`
	VisitDate string  `json:"visit_date"`
	TimeSlot  string  `json:"time_slot"`
	Symptoms  *string `json:"symptoms,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	DoctorName  string    `json:"doctor_name"`
	Department  string    `json:"department"`
	VisitDate   string    `json:"visit_date"`
	TimeSlot    string    `json:"time_slot"`
	TokenNumber int       `json:"token_number"`
	Status      string    `json:"status"`
	Symptoms    *string   `json:"symptoms,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		PatientName: a.PatientName,
		DoctorID:    a.DoctorID,
		DoctorName:  a.DoctorName,
		Department:  a.Department,
		VisitDate:   a.VisitDate,
		TimeSlot:    a.TimeSlot,
		TokenNumber: a.TokenNumber,
		Status:      string(a.Status),
		Symptoms:    a.Symptoms,
		CreatedAt:   a.CreatedAt,
	}
}

type DoctorResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Available  bool      `json:"available"`
}

type QueueEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	PatientName   string     `json:"patient_name"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	VisitDate     string     `json:"visit_date"`
	TokenNumber   int        `json:"token_number"`
	Status        string     `json:"status"`
	CheckedInAt   time.Time  `json:"checked_in_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

func toQueueEntryResponse(e *queue.Entry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:            e.ID,
		AppointmentID: e.AppointmentID,
		PatientName:   e.PatientName,
		DoctorID:      e.DoctorID,
		VisitDate:     e.VisitDate,
		TokenNumber:   e.TokenNumber,
		Status:        string(e.Status),
		CheckedInAt:   e.CheckedInAt,
		StartedAt:     e.StartedAt,
		EndedAt:       e.EndedAt,
	}
}

func toQueueEntryResponses(entries []queue.Entry) []QueueEntryResponse {
	result := make([]QueueEntryResponse, 0, len(entries))
	for i := range entries {
		result = append(result, toQueueEntryResponse(&entries[i]))
	}
	return result
}

type QueueSnapshotResponse struct {
	Entries []QueueEntryResponse `json:"entries"`
	// Position and estimated wait are present when the caller supplied its
	// token number.
	Position          *int `json:"position,omitempty"`
	EstimatedWaitMins *int `json:"estimated_wait_mins,omitempty"`
	ServingToken      *int `json:"serving_token,omitempty"`
}

type CreateHistoryRequest struct {
	DoctorID     string   `json:"doctor_id"`
	DoctorName   string   `json:"doctor_name"`
	Department   string   `json:"department"`
	VisitDate    string   `json:"visit_date"`
	Diagnosis    string   `json:"diagnosis"`
	Prescription []string `json:"prescription"`
	FollowUpDate *string  `json:"follow_up_date,omitempty"`
}

type HistoryResponse struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	DoctorName   string    `json:"doctor_name"`
	Department   string    `json:"department"`
	VisitDate    string    `json:"visit_date"`
	Diagnosis    string    `json:"diagnosis"`
	Prescription []string  `json:"prescription"`
	FollowUpDate *string   `json:"follow_up_date,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toHistoryResponse(rec *history.Record) HistoryResponse {
	return HistoryResponse{
		ID:           rec.ID,
		PatientID:    rec.PatientID,
		DoctorID:     rec.DoctorID,
		DoctorName:   rec.DoctorName,
		Department:   rec.Department,
		VisitDate:    rec.VisitDate,
		Diagnosis:    rec.Diagnosis,
		Prescription: rec.Prescription,
		FollowUpDate: rec.FollowUpDate,
		CreatedAt:    rec.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
