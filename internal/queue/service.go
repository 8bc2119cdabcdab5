package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediqueue/queue-service/internal/appointment"
	redisclient "github.com/mediqueue/queue-service/internal/redis"
)

var (
	ErrAlreadyCheckedIn = errors.New("appointment is already checked in")
	ErrNotCheckInable   = errors.New("appointment is not awaiting check-in")
	ErrCancelNotAllowed = errors.New("only waiting or next entries can be cancelled")
	ErrQueueBusy        = errors.New("queue is being advanced, please retry")
)

// Publisher signals committed queue mutations to live subscribers. Delivery
// is best effort; a failed publish never fails the mutation.
type Publisher interface {
	Publish(ctx context.Context, doctorID uuid.UUID) error
}

// DoctorLocker is the slice of the Redis locker the queue needs.
type DoctorLocker interface {
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
}

// Service is the queue state machine. It is the sole writer of entry
// statuses. Every mutation runs under the per-doctor lock and inside one
// transaction, so at most one entry per doctor holds serving and at most one
// holds next at all times.
type Service struct {
	repo   Repository
	locker DoctorLocker
	pub    Publisher
	log    zerolog.Logger
}

func NewService(repo Repository, locker DoctorLocker, pub Publisher, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		pub:    pub,
		log:    log,
	}
}

// CheckIn inserts a waiting entry for a scheduled appointment and flips the
// appointment to waiting. If no entry holds next for the doctor, the lowest
// token waiting entry (possibly the new one) is promoted in the same
// transaction.
func (s *Service) CheckIn(ctx context.Context, appointmentID uuid.UUID) (*Entry, error) {
	// Cheap read to learn the doctor; re-read under lock before mutating.
	info, err := s.repo.GetAppointmentInfo(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := checkInable(info.Status); err != nil {
		return nil, err
	}

	var created *Entry

	err = s.locker.WithDoctorLock(ctx, info.DoctorID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(txCtx context.Context, tx Tx) error {
			appt, err := tx.GetAppointmentInfoForUpdate(txCtx, appointmentID)
			if err != nil {
				return fmt.Errorf("reload appointment: %w", err)
			}
			if err := checkInable(appt.Status); err != nil {
				return err
			}

			entries, err := tx.ListActiveForUpdate(txCtx, appt.DoctorID)
			if err != nil {
				return fmt.Errorf("list queue: %w", err)
			}

			entry, err := tx.InsertEntry(txCtx, &Entry{
				AppointmentID: appt.ID,
				PatientID:     appt.PatientID,
				PatientName:   appt.PatientName,
				DoctorID:      appt.DoctorID,
				VisitDate:     appt.VisitDate,
				TokenNumber:   appt.TokenNumber,
				Status:        StatusWaiting,
			})
			if err != nil {
				return fmt.Errorf("insert queue entry: %w", err)
			}

			if err := tx.SetAppointmentStatus(txCtx, appt.ID, appointment.StatusScheduled, appointment.StatusWaiting); err != nil {
				return fmt.Errorf("mark appointment waiting: %w", err)
			}

			if findByStatus(entries, StatusNext) == nil {
				// No entry is pre-staged; promote the lowest waiting token.
				candidate := entry
				if w := findByStatus(entries, StatusWaiting); w != nil && w.TokenNumber < entry.TokenNumber {
					candidate = w
				}
				promoted, err := tx.SetEntryStatus(txCtx, candidate.ID, StatusWaiting, StatusNext)
				if err != nil {
					return fmt.Errorf("promote to next: %w", err)
				}
				if promoted.ID == entry.ID {
					entry = promoted
				}
			}

			created = entry
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrQueueBusy
		}
		return nil, err
	}

	s.publish(ctx, created.DoctorID)

	s.log.Info().
		Str("queue_entry_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Int("token_number", created.TokenNumber).
		Str("status", string(created.Status)).
		Msg("patient checked in")

	return created, nil
}

func checkInable(status appointment.Status) error {
	switch status {
	case appointment.StatusScheduled:
		return nil
	case appointment.StatusWaiting, appointment.StatusServing:
		return ErrAlreadyCheckedIn
	default:
		return ErrNotCheckInable
	}
}

// CallNext advances the doctor's queue one stage as a single unit: the
// serving entry completes, the next entry starts serving (and is returned),
// and the lowest-token waiting entry is pre-staged as next. With no entries
// it returns nil and mutates nothing. When next is empty but waiting entries
// exist, only the pre-stage step runs; a patient never jumps straight to
// serving.
func (s *Service) CallNext(ctx context.Context, doctorID uuid.UUID) (*Entry, error) {
	var promoted *Entry
	var changed bool

	err := s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(txCtx context.Context, tx Tx) error {
			entries, err := tx.ListActiveForUpdate(txCtx, doctorID)
			if err != nil {
				return fmt.Errorf("list queue: %w", err)
			}
			if len(entries) == 0 {
				return nil
			}

			if serving := findByStatus(entries, StatusServing); serving != nil {
				if _, err := tx.SetEntryStatus(txCtx, serving.ID, StatusServing, StatusCompleted); err != nil {
					return fmt.Errorf("complete serving entry: %w", err)
				}
				if err := tx.SetAppointmentStatus(txCtx, serving.AppointmentID, appointment.StatusServing, appointment.StatusCompleted); err != nil {
					return fmt.Errorf("complete appointment: %w", err)
				}
				changed = true
			}

			if next := findByStatus(entries, StatusNext); next != nil {
				entry, err := tx.SetEntryStatus(txCtx, next.ID, StatusNext, StatusServing)
				if err != nil {
					return fmt.Errorf("start serving next entry: %w", err)
				}
				if err := tx.SetAppointmentStatus(txCtx, next.AppointmentID, appointment.StatusWaiting, appointment.StatusServing); err != nil {
					return fmt.Errorf("mark appointment serving: %w", err)
				}
				promoted = entry
				changed = true
			}

			if waiting := findByStatus(entries, StatusWaiting); waiting != nil {
				if _, err := tx.SetEntryStatus(txCtx, waiting.ID, StatusWaiting, StatusNext); err != nil {
					return fmt.Errorf("pre-stage next entry: %w", err)
				}
				changed = true
			}

			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrQueueBusy
		}
		return nil, err
	}

	if changed {
		s.publish(ctx, doctorID)
	}

	if promoted != nil {
		s.log.Info().
			Str("queue_entry_id", promoted.ID.String()).
			Str("doctor_id", doctorID.String()).
			Int("token_number", promoted.TokenNumber).
			Msg("now serving")
	}

	return promoted, nil
}

// Cancel removes a waiting or next entry from the live queue. The entry goes
// to completed (entries are never deleted), the appointment to cancelled,
// and a cancelled next slot is refilled from the lowest waiting token.
func (s *Service) Cancel(ctx context.Context, entryID uuid.UUID) error {
	entry, err := s.repo.GetEntryByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("load queue entry: %w", err)
	}
	if entry.Status != StatusWaiting && entry.Status != StatusNext {
		return ErrCancelNotAllowed
	}

	err = s.locker.WithDoctorLock(ctx, entry.DoctorID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(txCtx context.Context, tx Tx) error {
			entries, err := tx.ListActiveForUpdate(txCtx, entry.DoctorID)
			if err != nil {
				return fmt.Errorf("list queue: %w", err)
			}

			var current *Entry
			for i := range entries {
				if entries[i].ID == entryID {
					current = &entries[i]
					break
				}
			}
			if current == nil {
				return ErrConcurrencyConflict
			}
			if current.Status != StatusWaiting && current.Status != StatusNext {
				return ErrCancelNotAllowed
			}

			if _, err := tx.SetEntryStatus(txCtx, current.ID, current.Status, StatusCompleted); err != nil {
				return fmt.Errorf("close queue entry: %w", err)
			}
			if err := tx.SetAppointmentStatus(txCtx, current.AppointmentID, appointment.StatusWaiting, appointment.StatusCancelled); err != nil {
				return fmt.Errorf("cancel appointment: %w", err)
			}

			if current.Status == StatusNext {
				if waiting := findByStatus(entries, StatusWaiting); waiting != nil {
					if _, err := tx.SetEntryStatus(txCtx, waiting.ID, StatusWaiting, StatusNext); err != nil {
						return fmt.Errorf("refill next: %w", err)
					}
				}
			}

			return nil
		})
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrQueueBusy
		}
		return err
	}

	s.publish(ctx, entry.DoctorID)

	s.log.Info().
		Str("queue_entry_id", entryID.String()).
		Str("doctor_id", entry.DoctorID.String()).
		Msg("queue entry cancelled")

	return nil
}

// CloseStaleDays closes out every active entry from days before the given
// date: serving consultations complete, waiting and next bookings cancel.
// Intended for the periodic worker. Returns the number of entries closed.
func (s *Service) CloseStaleDays(ctx context.Context, before string) (int, error) {
	var closed int
	doctors := make(map[uuid.UUID]struct{})

	err := s.repo.InTx(ctx, func(txCtx context.Context, tx Tx) error {
		entries, err := tx.ListStaleActiveForUpdate(txCtx, before)
		if err != nil {
			return fmt.Errorf("list stale entries: %w", err)
		}

		for _, e := range entries {
			if _, err := tx.SetEntryStatus(txCtx, e.ID, e.Status, StatusCompleted); err != nil {
				return fmt.Errorf("close stale entry %s: %w", e.ID, err)
			}

			from, to := appointment.StatusWaiting, appointment.StatusCancelled
			if e.Status == StatusServing {
				from, to = appointment.StatusServing, appointment.StatusCompleted
			}
			if err := tx.SetAppointmentStatus(txCtx, e.AppointmentID, from, to); err != nil {
				return fmt.Errorf("close stale appointment %s: %w", e.AppointmentID, err)
			}

			doctors[e.DoctorID] = struct{}{}
			closed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for doctorID := range doctors {
		s.publish(ctx, doctorID)
	}

	return closed, nil
}

func (s *Service) publish(ctx context.Context, doctorID uuid.UUID) {
	if err := s.pub.Publish(ctx, doctorID); err != nil {
		s.log.Warn().
			Err(err).
			Str("doctor_id", doctorID.String()).
			Msg("queue update publish failed, live views may lag")
	}
}
