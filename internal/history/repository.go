package history

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrRecordNotFound = errors.New("history record not found")

type Repository interface {
	Insert(ctx context.Context, rec *Record) (*Record, error)
	// ListByPatient returns records newest visit date first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Record, error)
}
