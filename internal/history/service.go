package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediqueue/queue-service/internal/appointment"
)

var (
	ErrEmptyDiagnosis   = errors.New("diagnosis must not be empty")
	ErrInvalidVisitDate = errors.New("visit date is not a valid calendar day")
)

// Service records completed consultations. It is written to by the
// consultation-completion workflow only; everything else reads.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Create(ctx context.Context, rec Record) (*Record, error) {
	if strings.TrimSpace(rec.Diagnosis) == "" {
		return nil, ErrEmptyDiagnosis
	}
	if _, err := time.Parse(appointment.DateLayout, rec.VisitDate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVisitDate, err)
	}
	if rec.FollowUpDate != nil {
		if _, err := time.Parse(appointment.DateLayout, *rec.FollowUpDate); err != nil {
			return nil, fmt.Errorf("%w: follow-up: %v", ErrInvalidVisitDate, err)
		}
	}

	created, err := s.repo.Insert(ctx, &rec)
	if err != nil {
		return nil, fmt.Errorf("insert history record: %w", err)
	}

	s.log.Info().
		Str("record_id", created.ID.String()).
		Str("patient_id", created.PatientID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Msg("consultation recorded")

	return created, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Record, error) {
	records, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}
