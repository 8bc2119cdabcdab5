package history

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

const recordColumns = `id, patient_id, doctor_id, doctor_name, department, visit_date,
	diagnosis, prescription, follow_up_date, created_at`

type PgRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPgRepository(pool *pgxpool.Pool, timeout time.Duration) *PgRepository {
	return &PgRepository{pool: pool, timeout: timeout}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var followUp *string

	err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.DoctorID,
		&rec.DoctorName,
		&rec.Department,
		&rec.VisitDate,
		&rec.Diagnosis,
		&rec.Prescription,
		&followUp,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", appointment.ErrStoreUnavailable, err)
	}

	rec.FollowUpDate = followUp
	return &rec, nil
}

func (r *PgRepository) Insert(ctx context.Context, rec *Record) (*Record, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patient_history (
			id, patient_id, doctor_id, doctor_name, department, visit_date,
			diagnosis, prescription, follow_up_date, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING `+recordColumns+`
	`, id, rec.PatientID, rec.DoctorID, rec.DoctorName, rec.Department, rec.VisitDate,
		rec.Diagnosis, rec.Prescription, rec.FollowUpDate)

	return scanRecord(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Record, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM patient_history
		WHERE patient_id = $1
		ORDER BY visit_date DESC, created_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appointment.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", appointment.ErrStoreUnavailable, err)
	}

	return result, nil
}
