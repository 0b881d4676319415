package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	slotKeyPrefix = "reminders:slot:"
	slotTTL       = 48 * time.Hour
	// DefaultTick is how often the scheduler checks for due jobs.
	DefaultTick = time.Minute
)

// Schedule maps an instant to the run slot it falls in. ok is false while
// the job should not run at all.
type Schedule func(now time.Time) (slot string, ok bool)

// Every runs once per interval, aligned to the interval boundary.
func Every(d time.Duration) Schedule {
	return func(now time.Time) (string, bool) {
		return now.UTC().Truncate(d).Format(time.RFC3339Nano), true
	}
}

// DailyAt runs once a day, on the first check at or after hour in loc.
func DailyAt(hour int, loc *time.Location) Schedule {
	return func(now time.Time) (string, bool) {
		local := now.In(loc)
		if local.Hour() < hour {
			return "", false
		}
		return local.Format(time.DateOnly), true
	}
}

// WeeklyAt runs once on day, on the first check at or after hour in loc.
func WeeklyAt(day time.Weekday, hour int, loc *time.Location) Schedule {
	daily := DailyAt(hour, loc)
	return func(now time.Time) (string, bool) {
		if now.In(loc).Weekday() != day {
			return "", false
		}
		return daily(now)
	}
}

// Job is one periodic reminder run.
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) (int, error)
}

// Jobs returns the standard reminder jobs: appointment reminders every 30
// minutes, payment recovery at 20:00, recalls at 11:00 and health tips on
// Mondays at 09:00, all in loc.
func Jobs(w *Worker, loc *time.Location) []Job {
	if loc == nil {
		loc = time.UTC
	}
	return []Job{
		{Name: "appointment_reminder", Schedule: Every(30 * time.Minute), Run: w.SendAppointmentReminders},
		{Name: "payment_recovery", Schedule: DailyAt(20, loc), Run: w.SendPaymentReminders},
		{Name: "patient_recall", Schedule: DailyAt(11, loc), Run: w.SendRecalls},
		{Name: "health_tips", Schedule: WeeklyAt(time.Monday, 9, loc), Run: w.SendHealthTips},
	}
}

// Claimer lets exactly one process run a job slot.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// RedisClaimer claims slots with SETNX so replicas do not double-send.
type RedisClaimer struct {
	client *redis.Client
}

func NewRedisClaimer(client *redis.Client) *RedisClaimer {
	if client == nil {
		panic("reminders: redis client cannot be nil")
	}
	return &RedisClaimer{client: client}
}

// Claim reports true when key had not been claimed yet.
func (c *RedisClaimer) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, slotKeyPrefix+key, time.Now().UTC().Unix(), slotTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reminders: claim slot: %w", err)
	}
	return ok, nil
}

// Scheduler checks its jobs on a ticker and runs each once per slot.
type Scheduler struct {
	jobs    []Job
	claimer Claimer
	tick    time.Duration
	now     func() time.Time
	logger  *logging.Logger

	mu   sync.Mutex
	last map[string]string
	wg   sync.WaitGroup
}

// SchedulerOption customizes the scheduler.
type SchedulerOption func(*Scheduler)

// WithClaimer coordinates slots across processes.
func WithClaimer(c Claimer) SchedulerOption {
	return func(s *Scheduler) { s.claimer = c }
}

func WithTick(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSchedulerLogger(logger *logging.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler for jobs.
func NewScheduler(jobs []Job, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		jobs:   jobs,
		tick:   DefaultTick,
		now:    time.Now,
		logger: logging.Default(),
		last:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start checks immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			s.runDue(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	s.logger.Info("reminders: scheduler started", "jobs", len(s.jobs), "tick", s.tick.String())
}

// Wait blocks until the scheduler loop exits.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		slot, ok := job.Schedule(now)
		if !ok || s.ran(job.Name, slot) {
			continue
		}
		if s.claimer != nil {
			claimed, err := s.claimer.Claim(ctx, job.Name+":"+slot)
			if err != nil {
				s.logger.Error("reminders: claim failed", "job", job.Name, "slot", slot, "error", err)
				continue
			}
			if !claimed {
				s.markRan(job.Name, slot)
				continue
			}
		}
		s.markRan(job.Name, slot)

		started := time.Now()
		n, err := job.Run(ctx)
		if err != nil {
			s.logger.Error("reminders: job failed", "job", job.Name, "slot", slot, "error", err)
			continue
		}
		s.logger.Debug("reminders: job ran", "job", job.Name, "slot", slot, "sent", n, "took", time.Since(started).String())
	}
}

func (s *Scheduler) ran(job, slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[job] == slot
}

func (s *Scheduler) markRan(job, slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[job] = slot
}
