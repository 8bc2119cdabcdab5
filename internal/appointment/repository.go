package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrStoreUnavailable wraps transient Postgres/Redis failures. Read-only
	// callers may retry; mutations must not.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Repository contains all DB interactions needed by the ledger.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, department string) ([]Doctor, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListByPatient returns appointments newest visit date first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	// ListByDoctor returns a single day's appointments ordered by time slot.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error)

	// UpdateAppointmentStatus applies a conditional transition and returns
	// ErrAppointmentNotFound when no row matched (missing id or lost race).
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// MaxTokenNumber returns the highest token issued for the pair, 0 when
	// none exist. Seeds the atomic counter.
	MaxTokenNumber(ctx context.Context, doctorID uuid.UUID, date string) (int64, error)
}
