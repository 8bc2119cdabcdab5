package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediqueue/queue-service/internal/db"
)

const appointmentColumns = `id, patient_id, patient_name, patient_phone, patient_age, patient_gender,
	doctor_id, doctor_name, department, visit_date, time_slot, token_number,
	status, symptoms, created_at, updated_at`

type PgRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPgRepository wraps the pool. Every call is bounded by timeout so a hung
// connection cannot stall a handler that arrived without a deadline.
func NewPgRepository(pool *pgxpool.Pool, timeout time.Duration) *PgRepository {
	return &PgRepository{pool: pool, timeout: timeout}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Age,
		&p.Gender,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, storeErr(err)
	}

	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Department,
		&d.Available,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, storeErr(err)
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var symptoms *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.PatientPhone,
		&a.PatientAge,
		&a.PatientGender,
		&a.DoctorID,
		&a.DoctorName,
		&a.Department,
		&a.VisitDate,
		&a.TimeSlot,
		&a.TokenNumber,
		&a.Status,
		&symptoms,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, storeErr(err)
	}

	a.Symptoms = symptoms
	return &a, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, age, gender, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT id, name, department, available, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, department string) ([]Doctor, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, department, available, created_at, updated_at
		FROM doctors
		WHERE ($1 = '' OR department = $1)
		ORDER BY department, name
	`, department)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	return result, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, patient_name, patient_phone, patient_age, patient_gender,
			doctor_id, doctor_name, department, visit_date, time_slot, token_number,
			status, symptoms, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+appointmentColumns+`
	`,
		id, appt.PatientID, appt.PatientName, appt.PatientPhone, appt.PatientAge, appt.PatientGender,
		appt.DoctorID, appt.DoctorName, appt.Department, appt.VisitDate, appt.TimeSlot, appt.TokenNumber,
		appt.Status, appt.Symptoms,
	)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY visit_date DESC, created_at DESC
	`, patientID)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	// time_slot holds 12-hour strings, so a plain text sort would put the
	// afternoon before the morning. Order by position in the slot enum.
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND visit_date = $2
		ORDER BY array_position($3::text[], time_slot), token_number
	`, doctorID, date, TimeSlots)
}

func (r *PgRepository) listAppointments(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	return result, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) MaxTokenNumber(ctx context.Context, doctorID uuid.UUID, date string) (int64, error) {
	ctx, cancel := db.OpContext(ctx, r.timeout)
	defer cancel()

	var max int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(token_number), 0)
		FROM appointments
		WHERE doctor_id = $1 AND visit_date = $2
	`, doctorID, date).Scan(&max)
	if err != nil {
		return 0, storeErr(err)
	}
	return max, nil
}
