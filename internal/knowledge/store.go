package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// Store returns a doctor's active entries for one category, highest priority first.
type Store interface {
	Entries(ctx context.Context, doctorID string, category Category) ([]Entry, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrInvalidEntry is returned by Add for entries the resolver could never match.
var ErrInvalidEntry = errors.New("knowledge: invalid entry")

// PostgresStore reads the knowledge_entries table.
type PostgresStore struct {
	db querier
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(db querier) *PostgresStore {
	if db == nil {
		panic("knowledge: pgx pool required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Entries(ctx context.Context, doctorID string, category Category) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, doctor_id, category, COALESCE(symptom, ''), COALESCE(keywords, '{}'),
			COALESCE(advice, ''), COALESCE(question, ''), COALESCE(answer, ''), priority, is_active
		FROM knowledge_entries
		WHERE doctor_id = $1 AND category = $2 AND is_active = true
		ORDER BY priority DESC
	`, doctorID, string(category))
	if err != nil {
		return nil, fmt.Errorf("knowledge: query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e   Entry
			cat string
		)
		if err := rows.Scan(&e.ID, &e.DoctorID, &cat, &e.Symptom, &e.Keywords,
			&e.Advice, &e.Question, &e.Answer, &e.Priority, &e.Active); err != nil {
			return nil, fmt.Errorf("knowledge: scan entry: %w", err)
		}
		e.Category = Category(cat)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge: entry rows: %w", err)
	}
	return out, nil
}

// Add inserts e and returns the generated id.
func (s *PostgresStore) Add(ctx context.Context, e Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO knowledge_entries
			(doctor_id, category, symptom, keywords, advice, question, answer, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, e.DoctorID, string(e.Category), nullable(e.Symptom), e.Keywords, nullable(e.Advice),
		nullable(e.Question), nullable(e.Answer), e.Priority, e.Active).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("knowledge: insert entry: %w", err)
	}
	return id, nil
}

func nullable(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

const cacheKeyPrefix = "kb:entries:"

// CachedStore keeps per-doctor entry lists in Redis in front of another Store.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
}

// NewCachedStore wraps next with a Redis read-through cache.
func NewCachedStore(next Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if next == nil {
		panic("knowledge: backing store required")
	}
	if client == nil {
		panic("knowledge: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{next: next, client: client, ttl: ttl}
}

func cacheKey(doctorID string, category Category) string {
	return cacheKeyPrefix + doctorID + ":" + string(category)
}

// Entries serves from Redis when possible. Cache failures fall back to the
// backing store rather than failing the lookup.
func (s *CachedStore) Entries(ctx context.Context, doctorID string, category Category) ([]Entry, error) {
	key := cacheKey(doctorID, category)
	if data, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var cached []Entry
		if json.Unmarshal(data, &cached) == nil {
			return cached, nil
		}
	}

	entries, err := s.next.Entries(ctx, doctorID, category)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		_ = s.client.Set(ctx, key, data, s.ttl).Err()
	}
	return entries, nil
}

// Invalidate drops both cached categories for a doctor.
func (s *CachedStore) Invalidate(ctx context.Context, doctorID string) error {
	if err := s.client.Del(ctx, cacheKey(doctorID, CategoryMedical), cacheKey(doctorID, CategoryAdministrative)).Err(); err != nil {
		return fmt.Errorf("knowledge: invalidate cache: %w", err)
	}
	return nil
}
