package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/clinic"
	httpmiddleware "github.com/wolfman30/whatsapp-clinic-bot/internal/http/middleware"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/livechat"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/messaging"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *messaging.WebhookHandler
	MissedCall     http.Handler
	LiveChat       *livechat.Handler
	Clinic         *clinic.Handler
	Health         http.HandlerFunc
	MetricsHandler http.Handler

	WhatsAppAppSecret  string
	DashboardJWTSecret string
	WebhookRateLimit   float64
	WebhookRateBurst   int
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	health := cfg.Health
	if health == nil {
		health = messaging.Health()
	}
	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Meta and the call-tracking app.
	r.Group(func(public chi.Router) {
		if cfg.WebhookRateLimit > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst))
		}
		if cfg.Webhook != nil {
			public.Get("/webhook", cfg.Webhook.Verify)
			public.With(httpmiddleware.WhatsAppSignature(cfg.WhatsAppAppSecret, cfg.Logger)).
				Post("/webhook", cfg.Webhook.Receive)
		}
		if cfg.MissedCall != nil {
			public.Post("/api/missed-call", cfg.MissedCall.ServeHTTP)
		}
	})

	if cfg.LiveChat != nil {
		r.Route("/api/livechat/{doctorID}", func(lc chi.Router) {
			lc.Use(httpmiddleware.DashboardJWT(cfg.DashboardJWTSecret))
			lc.Use(httpmiddleware.RequireDoctor("doctorID"))
			lc.Get("/messages/{phone}", cfg.LiveChat.History)
			lc.Post("/send", cfg.LiveChat.Send)
			lc.Post("/toggle-bot", cfg.LiveChat.ToggleBot)
			lc.Get("/patient/{phone}", cfg.LiveChat.Patient)
			lc.Get("/ws", cfg.LiveChat.Stream)
		})
	}

	if cfg.Clinic != nil {
		r.Route("/api/clinics/{doctorID}", func(cr chi.Router) {
			cr.Use(httpmiddleware.DashboardJWT(cfg.DashboardJWTSecret))
			cr.Use(httpmiddleware.RequireDoctor("doctorID"))
			cr.Get("/config", cfg.Clinic.GetConfig)
			cr.Put("/config", cfg.Clinic.UpdateConfig)
		})
	}

	return r
}
