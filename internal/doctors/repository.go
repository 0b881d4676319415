package doctors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads doctors from Postgres. Doctors are maintained by
// the dashboard; the bot only looks them up.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository wraps a pgx pool.
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const selectDoctor = `
	SELECT id, name, phone_number, specialization, clinic_name, clinic_address, clinic_phone,
		clinic_latitude, clinic_longitude, welcome_message, consultation_fee, avg_consultation_time,
		review_link, calendly_link, social_links, whatsapp_token, whatsapp_phone_number_id, is_active
	FROM doctors
`

// GetByPhone returns the active doctor registered for phone.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Doctor, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, ErrNotFound
	}
	return r.one(ctx, selectDoctor+` WHERE phone_number = $1 AND is_active = true`, phone)
}

// GetByID returns a doctor by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Doctor, error) {
	return r.one(ctx, selectDoctor+` WHERE id = $1`, id)
}

// ReferralNetwork lists external doctors referring to doctorID, highest
// referral count first.
func (r *PostgresRepository) ReferralNetwork(ctx context.Context, doctorID string) ([]ReferralPartner, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, specialization, total_referrals, commission_percentage, total_commission_due
		FROM external_doctor_analytics
		WHERE doctor_id = $1
		ORDER BY total_referrals DESC
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("doctors: referral network: %w", err)
	}
	defer rows.Close()

	var out []ReferralPartner
	for rows.Next() {
		var (
			p    ReferralPartner
			spec *string
		)
		if err := rows.Scan(&p.Name, &spec, &p.TotalReferrals, &p.CommissionPercentage, &p.CommissionDue); err != nil {
			return nil, fmt.Errorf("doctors: scan referral partner: %w", err)
		}
		if spec != nil {
			p.Specialization = *spec
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*Doctor, error) {
	var (
		d                                    Doctor
		spec, clinicName, address, phone     *string
		welcome, review, booking, token, pid *string
		fee, avg                             *int
		social                               []byte
	)
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&d.ID, &d.Name, &d.PhoneNumber, &spec, &clinicName, &address, &phone,
		&d.Latitude, &d.Longitude, &welcome, &fee, &avg,
		&review, &booking, &social, &token, &pid, &d.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("doctors: select: %w", err)
	}
	d.Specialization = deref(spec)
	d.ClinicName = deref(clinicName)
	d.ClinicAddress = deref(address)
	d.ClinicPhone = deref(phone)
	d.WelcomeMessage = deref(welcome)
	d.ReviewLink = deref(review)
	d.BookingLink = deref(booking)
	d.WhatsAppToken = deref(token)
	d.WhatsAppPhoneNumberID = deref(pid)
	if fee != nil {
		d.ConsultationFee = *fee
	}
	d.AvgConsultationMinutes = 15
	if avg != nil && *avg > 0 {
		d.AvgConsultationMinutes = *avg
	}
	if len(social) > 0 {
		if err := json.Unmarshal(social, &d.SocialLinks); err != nil {
			return nil, fmt.Errorf("doctors: decode social links: %w", err)
		}
	}
	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
