package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Contact is a patient together with the clinic that messages them.
type Contact struct {
	PatientID     string
	PatientName   string
	Phone         string
	Language      string
	DoctorName    string
	ClinicName    string
	Token         string
	PhoneNumberID string
}

// Clinic falls back to "Dr. <name>'s Clinic".
func (c Contact) Clinic() string {
	d := doctors.Doctor{Name: c.DoctorName, ClinicName: c.ClinicName}
	return d.DisplayClinicName()
}

// Credentials returns the doctor's gateway override, if any.
func (c Contact) Credentials() whatsapp.Credentials {
	return whatsapp.Credentials{Token: c.Token, PhoneNumberID: c.PhoneNumberID}
}

// Visit is an appointment that needs a reminder or a payment nudge.
type Visit struct {
	Contact
	AppointmentID string
	Time          time.Time
	Balance       float64
}

// Lapsed is a patient who has not been seen for a while.
type Lapsed struct {
	Contact
	LastSeenAt time.Time
}

// contactColumns assume patients p and doctors d.
const contactColumns = `p.id, COALESCE(p.name, ''), p.phone_number, p.preferred_language,
	d.name, COALESCE(d.clinic_name, ''), COALESCE(d.whatsapp_token, ''), COALESCE(d.whatsapp_phone_number_id, '')`

// Store reads reminder candidates and records what was sent.
type Store struct {
	db DB
}

// NewStore creates a reminders store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("reminders: pgx pool required")
	}
	return &Store{db: db}
}

// UpcomingVisits lists open appointments in [from, to] that have not had a
// reminder yet, earliest first.
func (s *Store) UpcomingVisits(ctx context.Context, from, to time.Time) ([]Visit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.appointment_time, a.balance_amount, `+contactColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.status IN ('pending', 'confirmed') AND NOT a.reminder_sent
			AND a.appointment_time >= $1 AND a.appointment_time <= $2
		ORDER BY a.appointment_time ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("reminders: upcoming visits: %w", err)
	}
	defer rows.Close()
	return scanVisits(rows)
}

// MarkReminderSent flags the appointment so it is not reminded twice.
func (s *Store) MarkReminderSent(ctx context.Context, appointmentID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET reminder_sent = true
		WHERE id = $1 AND NOT reminder_sent`, appointmentID)
	if err != nil {
		return fmt.Errorf("reminders: mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminders: mark reminder sent: no unreminded appointment with id %s", appointmentID)
	}
	return nil
}

// UnpaidVisits lists confirmed or completed appointments in [from, to) whose
// payment is still pending.
func (s *Store) UnpaidVisits(ctx context.Context, from, to time.Time) ([]Visit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.appointment_time, a.balance_amount, `+contactColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.payment_status = 'pending' AND a.status IN ('completed', 'confirmed')
			AND a.appointment_time >= $1 AND a.appointment_time < $2
		ORDER BY a.appointment_time ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("reminders: unpaid visits: %w", err)
	}
	defer rows.Close()
	return scanVisits(rows)
}

// LapsedPatients lists patients last seen before cutoff, not recalled since
// cutoff and with no open appointment after now. Longest absent first.
func (s *Store) LapsedPatients(ctx context.Context, cutoff, now time.Time, limit int) ([]Lapsed, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT p.last_seen_at, `+contactColumns+`
		FROM patients p
		JOIN doctors d ON d.id = p.doctor_id
		WHERE p.last_seen_at < $1
			AND (p.last_recall_sent IS NULL OR p.last_recall_sent < $1)
			AND NOT EXISTS (
				SELECT 1 FROM appointments a
				WHERE a.patient_id = p.id AND a.appointment_time > $2
					AND a.status IN ('pending', 'confirmed')
			)
		ORDER BY p.last_seen_at ASC
		LIMIT $3`, cutoff.UTC(), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("reminders: lapsed patients: %w", err)
	}
	defer rows.Close()

	var out []Lapsed
	for rows.Next() {
		var l Lapsed
		if err := rows.Scan(append([]any{&l.LastSeenAt}, contactDest(&l.Contact)...)...); err != nil {
			return nil, fmt.Errorf("reminders: scan lapsed patient: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MarkRecalled stamps last_recall_sent.
func (s *Store) MarkRecalled(ctx context.Context, patientID string, at time.Time) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE patients SET last_recall_sent = $1 WHERE id = $2`, at.UTC(), patientID); err != nil {
		return fmt.Errorf("reminders: mark recalled: %w", err)
	}
	return nil
}

// ActivePatients lists active patients of active doctors, most recently
// seen first.
func (s *Store) ActivePatients(ctx context.Context, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+contactColumns+`
		FROM patients p
		JOIN doctors d ON d.id = p.doctor_id
		WHERE p.is_active AND d.is_active
		ORDER BY p.last_seen_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("reminders: active patients: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(contactDest(&c)...); err != nil {
			return nil, fmt.Errorf("reminders: scan patient: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func contactDest(c *Contact) []any {
	return []any{&c.PatientID, &c.PatientName, &c.Phone, &c.Language,
		&c.DoctorName, &c.ClinicName, &c.Token, &c.PhoneNumberID}
}

func scanVisits(rows pgx.Rows) ([]Visit, error) {
	var out []Visit
	for rows.Next() {
		var v Visit
		dest := append([]any{&v.AppointmentID, &v.Time, &v.Balance}, contactDest(&v.Contact)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("reminders: scan visit: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
