// Package bootstrap assembles the inbound pipeline shared by the API server
// and the queue worker.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/admin"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/appointments"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/booking"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/chatlog"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/clinic"
	appconfig "github.com/wolfman30/whatsapp-clinic-bot/internal/config"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/generation"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/intent"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/knowledge"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/reports"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/router"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const clinicConfigTTL = 10 * time.Minute

// PipelineDeps are the process-level resources the pipeline is built on.
// Redis, S3 and Generator are optional.
type PipelineDeps struct {
	Config    *appconfig.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	S3        reports.S3API
	Generator generation.Generator
	Logger    *logging.Logger
	Metrics   *metrics.BotMetrics
	Listeners []chatlog.Listener
}

// Pipeline exposes the Router plus the stores the HTTP surface shares with it.
type Pipeline struct {
	Router     *router.Router
	WhatsApp   *whatsapp.Client
	Dispatcher *dispatch.Dispatcher
	Doctors    *doctors.PostgresRepository
	Patients   *patients.PostgresRepository
	Messages   *chatlog.Store
	Clinic     *clinic.Store
}

// BuildPipeline wires repositories, the gateway client and every routing
// stage into a Router.
func BuildPipeline(deps PipelineDeps) (*Pipeline, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("bootstrap: database pool is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.ClinicLocation()

	doctorRepo := doctors.NewPostgresRepository(deps.DB)
	patientRepo := patients.NewPostgresRepository(deps.DB)
	apptRepo := appointments.NewPostgresRepository(deps.DB)
	messages := chatlog.NewStore(deps.DB, deps.Listeners...)
	clinicStore := clinic.NewStore(deps.Redis, clinic.NewPostgresSource(deps.DB), clinicConfigTTL)

	var entries knowledge.Store = knowledge.NewPostgresStore(deps.DB)
	if deps.Redis != nil {
		entries = knowledge.NewCachedStore(entries, deps.Redis, cfg.KnowledgeCacheTTL)
	}

	wa := whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsAppAPIBaseURL,
		APIVersion:    cfg.WhatsAppAPIVersion,
		Token:         cfg.WhatsAppToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		MaxRetries:    2,
		Logger:        logger,
	})
	dispatcher := dispatch.New(wa,
		dispatch.WithMessageLog(messages),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(deps.Metrics),
	)

	reportOpts := []reports.Option{reports.WithLocation(loc), reports.WithLogger(logger)}
	if deps.S3 != nil && cfg.ReportsBucket != "" {
		reportOpts = append(reportOpts, reports.WithArchive(deps.S3, cfg.ReportsBucket))
	}

	processor := admin.NewProcessor(admin.Deps{
		Patients: patientRepo,
		Queue:    apptRepo,
		Network:  doctorRepo,
		Reports:  reports.NewGenerator(apptRepo, reportOpts...),
		Sender:   dispatcher,
	}, admin.WithLocation(loc), admin.WithLogger(logger))

	machine := booking.NewMachine(patientRepo, apptRepo,
		booking.WithLocation(loc),
		booking.WithLogger(logger),
		booking.WithMetrics(deps.Metrics),
	)

	resolver := knowledge.NewResolver(entries,
		knowledge.WithFAQThreshold(cfg.FAQMatchThreshold),
		knowledge.WithLogger(logger),
		knowledge.WithMetrics(deps.Metrics),
	)

	advisor := generation.NewAdvisor(deps.Generator,
		generation.WithTimeouts(cfg.GenerationTimeout, cfg.VisionTimeout),
		generation.WithLogger(logger),
		generation.WithMetrics(deps.Metrics),
	)

	r := router.New(router.Deps{
		Doctors:    doctorRepo,
		Patients:   patientRepo,
		Messages:   messages,
		Classifier: intent.NewClassifier(nil),
		Admin:      processor,
		Booking:    machine,
		Knowledge:  resolver,
		Advisor:    advisor,
		Dispatcher: dispatcher,
		Media:      wa,
		Clinic:     clinicStore,
		Queue:      apptRepo,
	},
		router.WithLocation(loc),
		router.WithTips(generation.RandomHealthTip),
		router.WithLogger(logger),
		router.WithMetrics(deps.Metrics),
	)

	return &Pipeline{
		Router:     r,
		WhatsApp:   wa,
		Dispatcher: dispatcher,
		Doctors:    doctorRepo,
		Patients:   patientRepo,
		Messages:   messages,
		Clinic:     clinicStore,
	}, nil
}
