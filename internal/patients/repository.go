package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the patient data-store surface used by the bot.
type Repository interface {
	Get(ctx context.Context, phone string) (*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	Upsert(ctx context.Context, phone, doctorID, name string) (*Patient, error)
	UpdateState(ctx context.Context, id string, state ConversationState, data StateData) error
	SetBotPaused(ctx context.Context, phone string, paused bool) error
	Search(ctx context.Context, doctorID, name string, limit int) ([]Patient, error)
	ReferralCode(ctx context.Context, id string) (string, int, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in Postgres.
type PostgresRepository struct {
	db      querier
	dialect goqu.DialectWrapper
}

// NewPostgresRepository wraps a pgx pool (or any compatible querier).
func NewPostgresRepository(db querier) *PostgresRepository {
	if db == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: db, dialect: goqu.Dialect("postgres")}
}

var patientColumns = []any{
	"id", "doctor_id", "phone_number", "name", "preferred_language",
	"conversation_state", "conversation_data", "bot_paused", "last_seen_at",
	"referral_code", "referral_count", "created_at",
}

const selectPatient = `
	SELECT id, doctor_id, phone_number, name, preferred_language,
		conversation_state, conversation_data, bot_paused, last_seen_at,
		referral_code, referral_count, created_at
	FROM patients
`

// Get fetches a patient by phone number.
func (r *PostgresRepository) Get(ctx context.Context, phone string) (*Patient, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, ErrNotFound
	}
	return r.one(ctx, selectPatient+` WHERE phone_number = $1`, phone)
}

// GetByID fetches a patient by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	return r.one(ctx, selectPatient+` WHERE id = $1`, id)
}

// Upsert creates the patient on first contact or refreshes last_seen_at (and
// the profile name when one is supplied) on every later message.
func (r *PostgresRepository) Upsert(ctx context.Context, phone, doctorID, name string) (*Patient, error) {
	phone = NormalizePhone(phone)
	if phone == "" || strings.TrimSpace(doctorID) == "" {
		return nil, ErrMissingIdentity
	}
	query := `
		INSERT INTO patients (id, phone_number, doctor_id, name, last_seen_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), now())
		ON CONFLICT (phone_number) DO UPDATE
		SET last_seen_at = now(),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), patients.name)
		RETURNING id, doctor_id, phone_number, name, preferred_language,
			conversation_state, conversation_data, bot_paused, last_seen_at,
			referral_code, referral_count, created_at
	`
	p, err := scanPatient(r.db.QueryRow(ctx, query, uuid.NewString(), phone, doctorID, strings.TrimSpace(name)))
	if err != nil {
		return nil, fmt.Errorf("patients: upsert: %w", err)
	}
	return p, nil
}

// UpdateState writes state and payload in one statement. Moving to idle
// always clears the payload.
func (r *PostgresRepository) UpdateState(ctx context.Context, id string, state ConversationState, data StateData) error {
	if state == "" {
		state = StateIdle
	}
	if state == StateIdle {
		data = StateData{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("patients: encode state data: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE patients SET conversation_state = $2, conversation_data = $3
		WHERE id = $1
	`, id, string(state), payload)
	if err != nil {
		return fmt.Errorf("patients: update state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBotPaused toggles automated replies for one patient.
func (r *PostgresRepository) SetBotPaused(ctx context.Context, phone string, paused bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE patients SET bot_paused = $2 WHERE phone_number = $1`, NormalizePhone(phone), paused)
	if err != nil {
		return fmt.Errorf("patients: set bot paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// likeEscaper escapes LIKE metacharacters for Postgres' default escape
// character, so a query of "%" matches a literal percent sign.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Search returns the doctor's patients whose name contains name
// (case-insensitive), most recently seen first.
func (r *PostgresRepository) Search(ctx context.Context, doctorID, name string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 10
	}
	query, args, err := r.dialect.From("patients").
		Select(patientColumns...).
		Where(
			goqu.C("doctor_id").Eq(doctorID),
			goqu.C("name").ILike("%"+escapeLike(strings.TrimSpace(name))+"%"),
		).
		Order(goqu.C("last_seen_at").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("patients: build search: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("patients: search: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("patients: scan search row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: search rows: %w", err)
	}
	return out, nil
}

// ReferralCode returns the patient's referral code, assigning one on first
// use, together with the number of successful referrals.
func (r *PostgresRepository) ReferralCode(ctx context.Context, id string) (string, int, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return "", 0, err
	}
	if p.ReferralCode != "" {
		return p.ReferralCode, p.ReferralCount, nil
	}

	code := GenerateReferralCode(p.Name, p.PhoneNumber)
	stored, err := r.assignReferralCode(ctx, id, code)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// Another patient already holds this code.
		stored, err = r.assignReferralCode(ctx, id, code+strings.ToUpper(uuid.NewString()[:2]))
	}
	if err != nil {
		return "", 0, err
	}
	return stored, p.ReferralCount, nil
}

func (r *PostgresRepository) assignReferralCode(ctx context.Context, id, code string) (string, error) {
	var stored string
	err := r.db.QueryRow(ctx, `
		UPDATE patients SET referral_code = COALESCE(referral_code, $2)
		WHERE id = $1
		RETURNING referral_code
	`, id, code).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("patients: assign referral code: %w", err)
	}
	return stored, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: select: %w", err)
	}
	return p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p        Patient
		name     *string
		language *string
		state    *string
		data     []byte
		code     *string
	)
	if err := row.Scan(
		&p.ID,
		&p.DoctorID,
		&p.PhoneNumber,
		&name,
		&language,
		&state,
		&data,
		&p.BotPaused,
		&p.LastSeenAt,
		&code,
		&p.ReferralCount,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if name != nil {
		p.Name = *name
	}
	p.Language = "en"
	if language != nil && *language != "" {
		p.Language = *language
	}
	p.State = StateIdle
	if state != nil && *state != "" {
		p.State = ConversationState(*state)
	}
	if len(data) > 0 && !p.IsIdle() {
		if err := json.Unmarshal(data, &p.StateData); err != nil {
			return nil, fmt.Errorf("decode conversation data: %w", err)
		}
	}
	if code != nil {
		p.ReferralCode = *code
	}
	return &p, nil
}
