package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// Config holds a doctor's opening hours and holiday calendar.
type Config struct {
	DoctorID    string   `json:"doctor_id"`
	Timezone    string   `json:"timezone,omitempty"`
	OpeningTime string   `json:"opening_time"`
	ClosingTime string   `json:"closing_time"`
	Holidays    []string `json:"holidays,omitempty"` // YYYY-MM-DD in the clinic timezone
}

// Location resolves Timezone, falling back to fallback (or UTC).
func (c *Config) Location(fallback *time.Location) *time.Location {
	if c != nil && strings.TrimSpace(c.Timezone) != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	return time.UTC
}

// IsHoliday reports whether t falls on a configured holiday.
func (c *Config) IsHoliday(t time.Time, loc *time.Location) bool {
	if c == nil {
		return false
	}
	day := t.In(c.Location(loc)).Format("2006-01-02")
	for _, h := range c.Holidays {
		if strings.TrimSpace(h) == day {
			return true
		}
	}
	return false
}

// IsOpenAt checks holidays, then the opening window [open, close).
// A nil config or unparseable hours count as open.
func (c *Config) IsOpenAt(t time.Time, loc *time.Location) bool {
	if c == nil {
		return true
	}
	if c.IsHoliday(t, loc) {
		return false
	}
	openMinutes, okOpen := minutesOfDay(c.OpeningTime)
	closeMinutes, okClose := minutesOfDay(c.ClosingTime)
	if !okOpen || !okClose {
		return true
	}
	local := t.In(c.Location(loc))
	current := local.Hour()*60 + local.Minute()
	return current >= openMinutes && current < closeMinutes
}

func minutesOfDay(value string) (int, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Hour()*60 + parsed.Minute(), true
		}
	}
	return 0, false
}

// ErrNotConfigured is returned when a doctor has no clinic_config row.
var ErrNotConfigured = errors.New("clinic: config not found")

// Source is the durable home of clinic configs.
type Source interface {
	Load(ctx context.Context, doctorID string) (*Config, error)
	Save(ctx context.Context, cfg *Config) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource reads and writes the clinic_config table.
type PostgresSource struct {
	db querier
}

// NewPostgresSource wraps a pgx pool.
func NewPostgresSource(db querier) *PostgresSource {
	if db == nil {
		panic("clinic: pgx pool required")
	}
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Load(ctx context.Context, doctorID string) (*Config, error) {
	cfg := Config{DoctorID: doctorID}
	var tz *string
	err := s.db.QueryRow(ctx, `
		SELECT opening_time, closing_time, holidays, timezone
		FROM clinic_config WHERE doctor_id = $1
	`, doctorID).Scan(&cfg.OpeningTime, &cfg.ClosingTime, &cfg.Holidays, &tz)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotConfigured
		}
		return nil, fmt.Errorf("clinic: load config: %w", err)
	}
	if tz != nil {
		cfg.Timezone = *tz
	}
	return &cfg, nil
}

func (s *PostgresSource) Save(ctx context.Context, cfg *Config) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO clinic_config (doctor_id, opening_time, closing_time, holidays, timezone)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (doctor_id) DO UPDATE
		SET opening_time = EXCLUDED.opening_time,
			closing_time = EXCLUDED.closing_time,
			holidays = EXCLUDED.holidays,
			timezone = EXCLUDED.timezone
	`, cfg.DoctorID, cfg.OpeningTime, cfg.ClosingTime, cfg.Holidays, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("clinic: save config: %w", err)
	}
	return nil
}

// Store caches clinic configs in Redis in front of a Source.
type Store struct {
	redis  *redis.Client
	source Source
	ttl    time.Duration
}

// NewStore creates a clinic config store. redisClient may be nil, in which
// case every read goes to the source.
func NewStore(redisClient *redis.Client, source Source, ttl time.Duration) *Store {
	if source == nil {
		panic("clinic: config source required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{redis: redisClient, source: source, ttl: ttl}
}

func (s *Store) key(doctorID string) string {
	return fmt.Sprintf("clinic:config:%s", doctorID)
}

// Get returns the doctor's config; ErrNotConfigured when none exists.
func (s *Store) Get(ctx context.Context, doctorID string) (*Config, error) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, s.key(doctorID)).Bytes()
		if err == nil {
			var cfg Config
			if jsonErr := json.Unmarshal(data, &cfg); jsonErr == nil {
				return &cfg, nil
			}
		} else if err != redis.Nil {
			return nil, fmt.Errorf("clinic: get cached config: %w", err)
		}
	}

	cfg, err := s.source.Load(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, cfg)
	return cfg, nil
}

// Set saves cfg to the source and refreshes the cache.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	if err := s.source.Save(ctx, cfg); err != nil {
		return err
	}
	s.cache(ctx, cfg)
	return nil
}

func (s *Store) cache(ctx context.Context, cfg *Config) {
	if s.redis == nil || cfg == nil {
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, s.key(cfg.DoctorID), data, s.ttl).Err()
}

// Status is the clinic's open state at one instant.
type Status struct {
	Open        bool
	OpeningTime string
}

// Status reports whether the doctor's clinic is open at now. A missing
// config or any lookup error counts as open so patients still see the menu.
func (s *Store) Status(ctx context.Context, doctorID string, now time.Time, loc *time.Location) Status {
	if s == nil {
		return Status{Open: true}
	}
	cfg, err := s.Get(ctx, doctorID)
	if err != nil {
		return Status{Open: true}
	}
	return Status{Open: cfg.IsOpenAt(now, loc), OpeningTime: cfg.OpeningTime}
}

// IsOpen is Status(...).Open.
func (s *Store) IsOpen(ctx context.Context, doctorID string, now time.Time, loc *time.Location) bool {
	return s.Status(ctx, doctorID, now, loc).Open
}
