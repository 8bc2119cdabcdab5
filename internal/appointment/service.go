package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/mediqueue/queue-service/internal/redis"
)

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrConcurrencyConflict = errors.New("appointment changed concurrently, re-fetch and retry")
	ErrInvalidTimeSlot     = errors.New("time slot is not in the bookable set")
	ErrInvalidVisitDate    = errors.New("visit date must be today or later")
	ErrDoctorUnavailable   = errors.New("doctor is not taking appointments")
	ErrBookingInProgress   = errors.New("another booking for this doctor and date is in flight, please retry")
)

// TokenAllocator hands out token numbers for a (doctor, date) pair. The
// ledger seeds it with the highest token already persisted before asking for
// the next one, always under the booking lock.
type TokenAllocator interface {
	EnsureFloor(ctx context.Context, doctorID uuid.UUID, date string, floor int64) error
	Next(ctx context.Context, doctorID uuid.UUID, date string) (int64, error)
}

// BookingLocker is the slice of the Redis locker the ledger needs.
type BookingLocker interface {
	WithBookingLock(ctx context.Context, doctorID uuid.UUID, date string, fn func(ctx context.Context) error) error
}

type Service struct {
	repo   Repository
	tokens TokenAllocator
	locker BookingLocker
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tokens TokenAllocator, locker BookingLocker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// Create books an appointment: validates the draft, allocates the next token
// for the (doctor, date) pair and persists the row with status scheduled.
// Allocation and insert run under the booking lock so concurrent bookings
// for the same pair cannot interleave; a failed insert leaves at most a gap
// in the counter, never a duplicate token and never a token without a row.
func (s *Service) Create(ctx context.Context, draft Draft) (*Appointment, error) {
	if !ValidTimeSlot(draft.TimeSlot) {
		return nil, ErrInvalidTimeSlot
	}
	if _, err := time.Parse(DateLayout, draft.VisitDate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVisitDate, err)
	}
	// DateLayout sorts lexicographically, so a plain string compare works.
	if draft.VisitDate < s.now().Format(DateLayout) {
		return nil, ErrInvalidVisitDate
	}

	patient, err := s.repo.GetPatientByID(ctx, draft.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, draft.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Available {
		return nil, ErrDoctorUnavailable
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, draft.DoctorID, draft.VisitDate, func(lockCtx context.Context) error {
		floor, err := s.repo.MaxTokenNumber(lockCtx, draft.DoctorID, draft.VisitDate)
		if err != nil {
			return fmt.Errorf("read token floor: %w", err)
		}
		if err := s.tokens.EnsureFloor(lockCtx, draft.DoctorID, draft.VisitDate, floor); err != nil {
			return fmt.Errorf("%w: seed token counter: %v", ErrStoreUnavailable, err)
		}

		token, err := s.tokens.Next(lockCtx, draft.DoctorID, draft.VisitDate)
		if err != nil {
			return fmt.Errorf("%w: allocate token: %v", ErrStoreUnavailable, err)
		}

		appt := &Appointment{
			ID:            uuid.New(),
			PatientID:     patient.ID,
			PatientName:   patient.Name,
			PatientPhone:  patient.Phone,
			PatientAge:    patient.Age,
			PatientGender: patient.Gender,
			DoctorID:      doctor.ID,
			DoctorName:    doctor.Name,
			Department:    doctor.Department,
			VisitDate:     draft.VisitDate,
			TimeSlot:      draft.TimeSlot,
			TokenNumber:   int(token),
			Status:        StatusScheduled,
			Symptoms:      draft.Symptoms,
		}

		persisted, err := s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("persist appointment: %w", err)
		}

		created = persisted
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("visit_date", created.VisitDate).
		Int("token_number", created.TokenNumber).
		Msg("appointment booked")

	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListByPatient returns the patient's appointments, newest visit date first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// ListByDoctor returns one day's appointments for a doctor, ordered by slot.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVisitDate, err)
	}
	appts, err := s.repo.ListByDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

func (s *Service) ListDoctors(ctx context.Context, department string) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// UpdateStatus moves an appointment through its lifecycle. Transitions that
// skip a state or leave a terminal state are rejected with
// ErrInvalidTransition; a conditional update that matches no row after the
// pre-check means somebody else advanced the row first.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row existed a moment ago, so the condition lost a race.
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Msg("appointment status updated")

	return updated, nil
}
