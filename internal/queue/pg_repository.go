package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediqueue/queue-service/internal/appointment"
	"github.com/mediqueue/queue-service/internal/db"
)

const entryColumns = `id, appointment_id, patient_id, patient_name, doctor_id, visit_date,
	token_number, status, checked_in_at, started_at, ended_at`

const activeStatuses = `('waiting', 'next', 'serving')`

type PgRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPgRepository wraps the pool. Plain reads are bounded per call and a
// whole transaction gets one timeout budget.
func NewPgRepository(pool *pgxpool.Pool, timeout time.Duration) *PgRepository {
	return &PgRepository{pool: pool, timeout: timeout}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var startedAt, endedAt *time.Time

	err := row.Scan(
		&e.ID,
		&e.AppointmentID,
		&e.PatientID,
		&e.PatientName,
		&e.DoctorID,
		&e.VisitDate,
		&e.TokenNumber,
		&e.Status,
		&e.CheckedInAt,
		&startedAt,
		&endedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, storeErr(err)
	}

	e.StartedAt = startedAt
	e.EndedAt = endedAt
	return &e, nil
}

func scanApptInfo(row pgx.Row) (*ApptInfo, error) {
	var a ApptInfo

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.DoctorID,
		&a.VisitDate,
		&a.TokenNumber,
		&a.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, storeErr(err)
	}

	return &a, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", appointment.ErrStoreUnavailable, err)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listEntries(ctx context.Context, q querier, sql string, args ...any) ([]Entry, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	return result, nil
}

func (r *PgRepository) ListActive(ctx context.Context, doctorID uuid.UUID) ([]Entry, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	return listEntries(ctx, r.pool, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE doctor_id = $1 AND status IN `+activeStatuses+`
		ORDER BY visit_date, token_number
	`, doctorID)
}

func (r *PgRepository) GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

const apptInfoSQL = `
	SELECT id, patient_id, patient_name, doctor_id, visit_date, token_number, status
	FROM appointments
	WHERE id = $1
`

func (r *PgRepository) GetAppointmentInfo(ctx context.Context, id uuid.UUID) (*ApptInfo, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	return scanApptInfo(r.pool.QueryRow(ctx, apptInfoSQL, id))
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) ListActiveForUpdate(ctx context.Context, doctorID uuid.UUID) ([]Entry, error) {
	return listEntries(ctx, t.tx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE doctor_id = $1 AND status IN `+activeStatuses+`
		ORDER BY visit_date, token_number
		FOR UPDATE
	`, doctorID)
}

func (t *pgTx) ListStaleActiveForUpdate(ctx context.Context, before string) ([]Entry, error) {
	return listEntries(ctx, t.tx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE visit_date < $1 AND status IN `+activeStatuses+`
		ORDER BY doctor_id, visit_date, token_number
		FOR UPDATE
	`, before)
}

func (t *pgTx) GetAppointmentInfoForUpdate(ctx context.Context, id uuid.UUID) (*ApptInfo, error) {
	return scanApptInfo(t.tx.QueryRow(ctx, apptInfoSQL+` FOR UPDATE`, id))
}

func (t *pgTx) InsertEntry(ctx context.Context, e *Entry) (*Entry, error) {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := t.tx.QueryRow(ctx, `
		INSERT INTO queue_entries (
			id, appointment_id, patient_id, patient_name, doctor_id, visit_date,
			token_number, status, checked_in_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING `+entryColumns+`
	`, id, e.AppointmentID, e.PatientID, e.PatientName, e.DoctorID, e.VisitDate,
		e.TokenNumber, e.Status)

	return scanEntry(row)
}

func (t *pgTx) SetEntryStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Entry, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $2,
		    started_at = CASE WHEN $2 = 'serving' THEN now() ELSE started_at END,
		    ended_at   = CASE WHEN $2 = 'completed' THEN now() ELSE ended_at END
		WHERE id = $1
		  AND status = $3
		RETURNING `+entryColumns+`
	`, id, to, from)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}
	return entry, nil
}

func (t *pgTx) SetAppointmentStatus(ctx context.Context, id uuid.UUID, from, to appointment.Status) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
	`, id, to, from)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrencyConflict
	}
	return nil
}
