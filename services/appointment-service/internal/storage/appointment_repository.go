package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/medibook/medibook/libs/db"
	"github.com/medibook/medibook/services/appointment-service/internal/model"
)

var ErrNotFound = errors.New("appointment not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the persistence surface the HTTP handlers work against.
type Store interface {
	Create(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	GetByID(ctx context.Context, id string) (model.Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error)
	Delete(ctx context.Context, id string) error
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const apptColumns = `id, patient_id, patient_name, patient_email, doctor_id, doctor_name,
	COALESCE(doctor_specialization, ''), date, time, reason, status, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, patient_name, patient_email, doctor_id, doctor_name, doctor_specialization,
			date, time, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, appt.ID, appt.PatientID, appt.PatientName, appt.PatientEmail, appt.DoctorID, appt.DoctorName,
		appt.DoctorSpecialization, appt.Date, appt.Time, appt.Reason, appt.Status,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *Repository) ListByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return r.list(ctx, `WHERE patient_id = $1`, patientID)
}

func (r *Repository) ListByDoctor(ctx context.Context, doctorID string) ([]model.Appointment, error) {
	return r.list(ctx, `WHERE doctor_id = $1`, doctorID)
}

func (r *Repository) list(ctx context.Context, where string, arg any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
	`+where+`
		ORDER BY created_at DESC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := []model.Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id, status string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+apptColumns+`
	`, id, status)
	return scanAppointment(row)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.PatientName,
		&appt.PatientEmail,
		&appt.DoctorID,
		&appt.DoctorName,
		&appt.DoctorSpecialization,
		&appt.Date,
		&appt.Time,
		&appt.Reason,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}
