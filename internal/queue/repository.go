package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mediqueue/queue-service/internal/appointment"
)

var (
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrConcurrencyConflict means a conditional transition matched no row:
	// the queue advanced underneath the caller. Re-fetch and retry the whole
	// operation, never the individual write.
	ErrConcurrencyConflict = errors.New("queue state changed concurrently")
)

// ApptInfo is the slice of an appointment the queue needs: identity for the
// denormalized entry snapshot plus the current lifecycle status.
type ApptInfo struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	DoctorID    uuid.UUID
	VisitDate   string
	TokenNumber int
	Status      appointment.Status
}

// Repository contains all DB interactions needed by the queue state machine
// and its read projection.
type Repository interface {
	// ListActive returns all non-completed entries for a doctor, ordered by
	// visit date then token number ascending. Plain read, safe to retry.
	ListActive(ctx context.Context, doctorID uuid.UUID) ([]Entry, error)

	GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	GetAppointmentInfo(ctx context.Context, id uuid.UUID) (*ApptInfo, error)

	// InTx runs fn inside one transaction; every mutation of queue state
	// goes through it so multi-entry transitions commit or fail as a unit.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional surface. Row-locking reads keep two concurrent
// advances for the same doctor from interleaving even without the Redis lock.
type Tx interface {
	ListActiveForUpdate(ctx context.Context, doctorID uuid.UUID) ([]Entry, error)
	ListStaleActiveForUpdate(ctx context.Context, before string) ([]Entry, error)
	GetAppointmentInfoForUpdate(ctx context.Context, id uuid.UUID) (*ApptInfo, error)

	InsertEntry(ctx context.Context, e *Entry) (*Entry, error)

	// SetEntryStatus applies a conditional transition, stamping started_at
	// on entering serving and ended_at on entering completed. Returns
	// ErrConcurrencyConflict when no row matched (id, from).
	SetEntryStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Entry, error)

	// SetAppointmentStatus keeps the ledger row in lockstep with the queue.
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, from, to appointment.Status) error
}
