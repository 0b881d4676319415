package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrMissingFields is returned when Create lacks a patient, doctor or time.
var ErrMissingFields = errors.New("appointments: patient, doctor and time are required")

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists appointments.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository wraps a pgx pool.
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a pending appointment.
func (r *PostgresRepository) Create(ctx context.Context, patientID, doctorID string, at time.Time, notes string) (*Appointment, error) {
	if strings.TrimSpace(patientID) == "" || strings.TrimSpace(doctorID) == "" || at.IsZero() {
		return nil, ErrMissingFields
	}
	appt := Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Time:      at,
		Status:    StatusPending,
		Notes:     notes,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at
	`, appt.ID, patientID, doctorID, at.UTC(), appt.Status, notes).Scan(&appt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return &appt, nil
}

// TodayQueue lists the doctor's pending and confirmed appointments on the
// day containing now, earliest first.
func (r *PostgresRepository) TodayQueue(ctx context.Context, doctorID string, now time.Time, loc *time.Location) ([]Appointment, error) {
	start, end := DayBounds(now, loc)
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.doctor_id, COALESCE(p.name, ''), p.phone_number,
			a.appointment_time, a.status, COALESCE(a.notes, ''), a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
			AND a.appointment_time >= $2 AND a.appointment_time < $3
			AND a.status IN ('pending', 'confirmed')
		ORDER BY a.appointment_time ASC
	`, doctorID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("appointments: today queue: %w", err)
	}
	return collect(rows)
}

// ForPatient returns the patient's most recent appointments.
func (r *PostgresRepository) ForPatient(ctx context.Context, patientID string, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.doctor_id, COALESCE(p.name, ''), p.phone_number,
			a.appointment_time, a.status, COALESCE(a.notes, ''), a.created_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.patient_id = $1
		ORDER BY a.appointment_time DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: for patient: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.PatientName, &a.PatientPhone,
			&a.Time, &a.Status, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}
