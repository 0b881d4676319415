package bootstrap

import (
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/whatsapp-clinic-bot/internal/config"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/reminders"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// BuildReminderScheduler wires the outbound reminder jobs. It returns nil
// when reminders are disabled. Without Redis, slots are only deduplicated
// within this process.
func BuildReminderScheduler(cfg *appconfig.Config, db reminders.DB, sender reminders.Sender, redisClient *redis.Client, m *metrics.BotMetrics, logger *logging.Logger) *reminders.Scheduler {
	if cfg == nil || !cfg.RemindersEnabled || db == nil || sender == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.ClinicLocation()

	worker := reminders.NewWorker(reminders.NewStore(db), sender,
		reminders.WithLocation(loc),
		reminders.WithLimits(cfg.RecallBatchLimit, cfg.HealthTipLimit),
		reminders.WithMetrics(m),
		reminders.WithLogger(logger),
	)

	opts := []reminders.SchedulerOption{
		reminders.WithTick(cfg.ReminderTick),
		reminders.WithSchedulerLogger(logger),
	}
	if redisClient != nil {
		opts = append(opts, reminders.WithClaimer(reminders.NewRedisClaimer(redisClient)))
	} else {
		logger.Warn("reminders: redis disabled; run a single reminder process to avoid duplicate sends")
	}
	return reminders.NewScheduler(reminders.Jobs(worker, loc), opts...)
}
