package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/router"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

var tracer = otel.Tracer("clinicbot.internal.messaging")

// Acknowledgement bodies. Meta only looks at the status code; every
// outcome except a bad object is a 200 so the delivery is not retried.
const (
	AckReceived      = "EVENT_RECEIVED"
	AckUnknownDoctor = "UNKNOWN_DOCTOR"
	AckLookupFailed  = "DATABASE_ERROR_LOGGED"
)

const (
	maxWebhookBody = 1 << 20
	enqueueTimeout = 3 * time.Second
)

// DoctorResolver finds the active doctor behind a business number.
type DoctorResolver interface {
	GetByPhone(ctx context.Context, phone string) (*doctors.Doctor, error)
}

// EventPublisher hands a normalized event to the inbound queue.
type EventPublisher interface {
	Enqueue(ctx context.Context, evt router.InboundEvent) error
}

// WebhookHandler serves the WhatsApp Cloud API webhook.
type WebhookHandler struct {
	verifyToken string
	doctors     DoctorResolver
	publisher   EventPublisher
	logger      *logging.Logger
	metrics     *metrics.BotMetrics
	now         func() time.Time
}

// WebhookOption customizes a WebhookHandler.
type WebhookOption func(*WebhookHandler)

func WithLogger(logger *logging.Logger) WebhookOption {
	return func(h *WebhookHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) WebhookOption {
	return func(h *WebhookHandler) { h.metrics = m }
}

func WithClock(now func() time.Time) WebhookOption {
	return func(h *WebhookHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewWebhookHandler wires the webhook. Signature checks are applied by
// middleware before the handler sees the body.
func NewWebhookHandler(verifyToken string, resolver DoctorResolver, publisher EventPublisher, opts ...WebhookOption) *WebhookHandler {
	if resolver == nil {
		panic("messaging: doctor resolver cannot be nil")
	}
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	h := &WebhookHandler{
		verifyToken: verifyToken,
		doctors:     resolver,
		publisher:   publisher,
		logger:      logging.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Verify answers GET /webhook, the subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	if mode == "" || token == "" {
		http.Error(w, "Missing required parameters", http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		h.logger.Warn("webhook verification rejected", "mode", mode)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	h.logger.Info("webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive answers POST /webhook. Messages are enqueued, never processed inline.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	ctx, span := tracer.Start(r.Context(), "messaging.whatsapp.webhook")
	defer span.End()

	outcome := "error"
	defer func() {
		h.metrics.ObserveWebhookLatency(outcome, time.Since(start).Seconds())
	}()

	var payload whatsapp.WebhookPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.Object != whatsapp.ObjectBusinessAccount {
		outcome = "ignored"
		h.logger.Warn("unknown webhook object", "object", payload.Object)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	ack := AckReceived
	enqueued := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			n, changeAck, err := h.handleChange(ctx, change.Value)
			enqueued += n
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "enqueue failed")
				http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
				return
			}
			if changeAck != AckReceived {
				ack = changeAck
			}
		}
	}

	outcome = "accepted"
	span.SetAttributes(attribute.Int("clinicbot.webhook.enqueued", enqueued))
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ack)
}

func (h *WebhookHandler) handleChange(ctx context.Context, value whatsapp.ChangeValue) (int, string, error) {
	h.logStatuses(value.Statuses)
	if len(value.Messages) == 0 {
		return 0, AckReceived, nil
	}

	display := value.Metadata.DisplayPhoneNumber
	if display == "" {
		h.logger.Warn("webhook change without display_phone_number")
		return 0, AckReceived, nil
	}
	doctor, err := h.doctors.GetByPhone(ctx, display)
	switch {
	case errors.Is(err, doctors.ErrNotFound):
		h.logger.Info("webhook for unknown doctor number", "display_phone", display)
		return 0, AckUnknownDoctor, nil
	case err != nil:
		h.logger.Error("doctor lookup failed", "error", err, "display_phone", display)
		return 0, AckLookupFailed, nil
	}

	contact := value.ContactName()
	received := h.now().UTC()
	enqueued := 0
	for _, msg := range value.Messages {
		evt, ok := router.EventFromMessage(doctor.ID, contact, msg, received)
		if !ok {
			h.logger.Debug("ignoring unsupported message", "type", msg.Type, "message_id", msg.ID)
			continue
		}
		pubCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
		err := h.publisher.Enqueue(pubCtx, evt)
		cancel()
		if err != nil {
			h.logger.Error("failed to enqueue inbound event", "error", err, "doctor_id", doctor.ID, "message_id", msg.ID)
			return enqueued, "", err
		}
		enqueued++
	}
	h.logger.Info("webhook accepted", "doctor_id", doctor.ID, "messages", enqueued)
	return enqueued, AckReceived, nil
}

func (h *WebhookHandler) logStatuses(statuses []whatsapp.Status) {
	for _, st := range statuses {
		if st.Status != "failed" {
			continue
		}
		for _, e := range st.Errors {
			h.logger.Warn("outbound message failed",
				"message_id", st.ID,
				"recipient", logging.MaskPhone(st.RecipientID),
				"code", e.Code,
				"title", e.Title,
			)
		}
	}
}
