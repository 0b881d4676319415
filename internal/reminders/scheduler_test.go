package reminders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

func TestEveryAlignsToInterval(t *testing.T) {
	every := Every(30 * time.Minute)
	a, ok := every(time.Date(2026, 10, 19, 10, 5, 0, 0, ist))
	require.True(t, ok)
	b, _ := every(time.Date(2026, 10, 19, 10, 25, 0, 0, ist))
	c, _ := every(time.Date(2026, 10, 19, 10, 31, 0, 0, ist))
	assert.Equal(t, a, b)
	assert.NotEqual(t, b, c)
}

func TestDailyAtWaitsForHour(t *testing.T) {
	daily := DailyAt(20, ist)

	_, ok := daily(time.Date(2026, 10, 19, 19, 59, 0, 0, ist))
	assert.False(t, ok)

	slot, ok := daily(time.Date(2026, 10, 19, 20, 0, 0, 0, ist))
	require.True(t, ok)
	assert.Equal(t, "2026-10-19", slot)

	late, ok := daily(time.Date(2026, 10, 19, 23, 30, 0, 0, ist))
	require.True(t, ok)
	assert.Equal(t, slot, late)
}

func TestWeeklyAtOnlyOnDay(t *testing.T) {
	weekly := WeeklyAt(time.Monday, 9, ist)

	_, ok := weekly(time.Date(2026, 10, 19, 8, 0, 0, 0, ist))
	assert.False(t, ok, "before the hour")
	_, ok = weekly(time.Date(2026, 10, 20, 9, 0, 0, 0, ist))
	assert.False(t, ok, "tuesday")
	slot, ok := weekly(time.Date(2026, 10, 19, 9, 0, 0, 0, ist))
	require.True(t, ok)
	assert.Equal(t, "2026-10-19", slot)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func countingJob(name string, schedule Schedule, runs *int32) Job {
	return Job{Name: name, Schedule: schedule, Run: func(context.Context) (int, error) {
		atomic.AddInt32(runs, 1)
		return 1, nil
	}}
}

func TestSchedulerRunsEachSlotOnce(t *testing.T) {
	clk := &clock{now: mondayMorning}
	var runs int32
	s := NewScheduler([]Job{countingJob("every", Every(30*time.Minute), &runs)},
		WithSchedulerClock(clk.Now),
		WithSchedulerLogger(logging.New("error")),
	)

	ctx := context.Background()
	s.runDue(ctx)
	s.runDue(ctx)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))

	clk.Advance(30 * time.Minute)
	s.runDue(ctx)
	assert.EqualValues(t, 2, atomic.LoadInt32(&runs))
}

func TestSchedulerSkipsJobsNotDue(t *testing.T) {
	clk := &clock{now: mondayMorning}
	var runs int32
	s := NewScheduler([]Job{countingJob("evening", DailyAt(20, ist), &runs)},
		WithSchedulerClock(clk.Now),
		WithSchedulerLogger(logging.New("error")),
	)

	s.runDue(context.Background())
	assert.Zero(t, atomic.LoadInt32(&runs))

	clk.Advance(9 * time.Hour)
	s.runDue(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestSchedulerFailedJobWaitsForNextSlot(t *testing.T) {
	clk := &clock{now: mondayMorning}
	var runs int32
	job := Job{Name: "flaky", Schedule: Every(30 * time.Minute), Run: func(context.Context) (int, error) {
		atomic.AddInt32(&runs, 1)
		return 0, errors.New("db down")
	}}
	s := NewScheduler([]Job{job}, WithSchedulerClock(clk.Now), WithSchedulerLogger(logging.New("error")))

	s.runDue(context.Background())
	s.runDue(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestSchedulerClaimsSlotAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := &clock{now: mondayMorning}
	var runs int32
	newReplica := func() *Scheduler {
		return NewScheduler([]Job{countingJob("every", Every(30*time.Minute), &runs)},
			WithClaimer(NewRedisClaimer(client)),
			WithSchedulerClock(clk.Now),
			WithSchedulerLogger(logging.New("error")),
		)
	}
	a, b := newReplica(), newReplica()

	a.runDue(context.Background())
	b.runDue(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))

	clk.Advance(30 * time.Minute)
	b.runDue(context.Background())
	a.runDue(context.Background())
	assert.EqualValues(t, 2, atomic.LoadInt32(&runs))

	slot, _ := Every(30 * time.Minute)(mondayMorning)
	assert.True(t, mr.Exists(slotKeyPrefix+"every:"+slot))
}

func TestSchedulerSkipsSlotWhenClaimFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	var runs int32
	s := NewScheduler([]Job{countingJob("every", Every(30*time.Minute), &runs)},
		WithClaimer(NewRedisClaimer(client)),
		WithSchedulerClock(func() time.Time { return mondayMorning }),
		WithSchedulerLogger(logging.New("error")),
	)
	s.runDue(context.Background())
	assert.Zero(t, atomic.LoadInt32(&runs))
}

func TestSchedulerStartRunsUntilCancelled(t *testing.T) {
	var runs int32
	s := NewScheduler([]Job{countingJob("always", Every(time.Millisecond), &runs)},
		WithTick(5*time.Millisecond),
		WithSchedulerLogger(logging.New("error")),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestJobsCoverEveryReminder(t *testing.T) {
	w, _, _ := newTestWorker(t)
	jobs := Jobs(w, ist)

	var names []string
	for _, j := range jobs {
		names = append(names, j.Name)
		require.NotNil(t, j.Run)
		require.NotNil(t, j.Schedule)
	}
	assert.Equal(t, []string{"appointment_reminder", "payment_recovery", "patient_recall", "health_tips"}, names)

	_, ok := jobs[3].Schedule(mondayMorning)
	assert.True(t, ok, "health tips run on monday mornings")
	_, ok = jobs[1].Schedule(mondayMorning)
	assert.False(t, ok, "payment recovery waits for the evening")
}
