package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/appointments"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/generation"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	// ReminderLead is how far ahead appointment reminders look.
	ReminderLead = 2 * time.Hour
	// RecallAfter is how long a patient must be absent before a recall.
	RecallAfter = 6 * 30 * 24 * time.Hour

	defaultRecallLimit = 50
	defaultTipLimit    = 100
	defaultTipPause    = 100 * time.Millisecond
)

// Sender abstracts the outbound WhatsApp calls the jobs make.
type Sender interface {
	SendText(ctx context.Context, creds whatsapp.Credentials, to, body string) (*whatsapp.SendResponse, error)
	SendButtons(ctx context.Context, creds whatsapp.Credentials, to, body string, buttons []whatsapp.Button) (*whatsapp.SendResponse, error)
	SendTemplate(ctx context.Context, creds whatsapp.Credentials, to, name, languageCode string, components []whatsapp.TemplateComponent) (*whatsapp.SendResponse, error)
}

// Worker runs the outbound reminder jobs. Each job logs per-patient failures
// and moves on; it returns the number of patients reached.
type Worker struct {
	store       *Store
	sender      Sender
	logger      *logging.Logger
	metrics     *metrics.BotMetrics
	loc         *time.Location
	now         func() time.Time
	tip         func() string
	recallLimit int
	tipLimit    int
	tipPause    time.Duration
}

// WorkerOption customizes the worker.
type WorkerOption func(*Worker)

func WithLogger(logger *logging.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithLocation sets the clinic timezone used for day boundaries and
// rendered times.
func WithLocation(loc *time.Location) WorkerOption {
	return func(w *Worker) {
		if loc != nil {
			w.loc = loc
		}
	}
}

func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithTipSource replaces generation.RandomHealthTip.
func WithTipSource(tip func() string) WorkerOption {
	return func(w *Worker) {
		if tip != nil {
			w.tip = tip
		}
	}
}

// WithLimits caps recalls per run and health tips per broadcast.
func WithLimits(recall, tips int) WorkerOption {
	return func(w *Worker) {
		if recall > 0 {
			w.recallLimit = recall
		}
		if tips > 0 {
			w.tipLimit = tips
		}
	}
}

// WithTipPause spaces health tip sends to stay under the gateway rate limit.
func WithTipPause(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d >= 0 {
			w.tipPause = d
		}
	}
}

// NewWorker creates a reminders worker.
func NewWorker(store *Store, sender Sender, opts ...WorkerOption) *Worker {
	if store == nil {
		panic("reminders: store cannot be nil")
	}
	if sender == nil {
		panic("reminders: sender cannot be nil")
	}
	w := &Worker{
		store:       store,
		sender:      sender,
		logger:      logging.Default(),
		loc:         time.UTC,
		now:         time.Now,
		tip:         generation.RandomHealthTip,
		recallLimit: defaultRecallLimit,
		tipLimit:    defaultTipLimit,
		tipPause:    defaultTipPause,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SendAppointmentReminders reminds patients whose visit starts within
// ReminderLead and marks each appointment so it is reminded once.
func (w *Worker) SendAppointmentReminders(ctx context.Context) (int, error) {
	now := w.now()
	visits, err := w.store.UpcomingVisits(ctx, now, now.Add(ReminderLead))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, v := range visits {
		_, err := w.sender.SendTemplate(ctx, v.Credentials(), v.Phone, TemplateAppointmentReminder,
			templateLanguage(v.Language), appointmentReminder(v, w.loc))
		w.metrics.ObserveOutbound("reminder_template", err)
		if err != nil {
			w.logger.Error("reminders: appointment reminder failed", "appointment_id", v.AppointmentID, "error", err)
			continue
		}
		if err := w.store.MarkReminderSent(ctx, v.AppointmentID); err != nil {
			w.logger.Error("reminders: mark reminder sent failed", "appointment_id", v.AppointmentID, "error", err)
			continue
		}
		sent++
	}
	w.logSummary("appointment_reminder", sent, len(visits))
	return sent, nil
}

// SendPaymentReminders nudges patients with a pending balance from
// yesterday's visits.
func (w *Worker) SendPaymentReminders(ctx context.Context) (int, error) {
	start, end := appointments.DayBounds(w.now().AddDate(0, 0, -1), w.loc)
	visits, err := w.store.UnpaidVisits(ctx, start, end)
	if err != nil {
		return 0, err
	}

	sent := 0
	var outstanding float64
	for _, v := range visits {
		outstanding += v.Balance
		_, err := w.sender.SendTemplate(ctx, v.Credentials(), v.Phone, TemplatePaymentReminder,
			templateLanguage(v.Language), paymentReminder(v))
		w.metrics.ObserveOutbound("reminder_template", err)
		if err != nil {
			w.logger.Error("reminders: payment reminder failed", "appointment_id", v.AppointmentID, "error", err)
			continue
		}
		sent++
	}
	w.logSummary("payment_recovery", sent, len(visits), "outstanding", formatRupees(outstanding))
	return sent, nil
}

// SendRecalls invites patients absent for RecallAfter back for a checkup.
// The template opens the conversation; a booking button follows it.
func (w *Worker) SendRecalls(ctx context.Context) (int, error) {
	now := w.now()
	_, cutoff := appointments.DayBounds(now.Add(-RecallAfter), w.loc)
	lapsed, err := w.store.LapsedPatients(ctx, cutoff, now, w.recallLimit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, l := range lapsed {
		if err := w.recall(ctx, l, now); err != nil {
			w.logger.Error("reminders: recall failed", "patient_id", l.PatientID, "error", err)
			continue
		}
		sent++
	}
	w.logSummary("patient_recall", sent, len(lapsed))
	return sent, nil
}

func (w *Worker) recall(ctx context.Context, l Lapsed, now time.Time) error {
	creds := l.Credentials()
	_, err := w.sender.SendTemplate(ctx, creds, l.Phone, TemplateCheckupRecall,
		templateLanguage(l.Language), checkupRecall(l, now))
	w.metrics.ObserveOutbound("reminder_template", err)
	if err != nil {
		return fmt.Errorf("send recall template: %w", err)
	}
	if err := w.store.MarkRecalled(ctx, l.PatientID, now); err != nil {
		return err
	}
	body, buttons := recallPrompt(l.Clinic())
	_, err = w.sender.SendButtons(ctx, creds, l.Phone, body, buttons)
	w.metrics.ObserveOutbound("buttons", err)
	if err != nil {
		// The recall itself went out; only the shortcut is missing.
		w.logger.Warn("reminders: recall booking button failed", "patient_id", l.PatientID, "error", err)
	}
	return nil
}

// SendHealthTips broadcasts one health tip to the most recently seen active
// patients.
func (w *Worker) SendHealthTips(ctx context.Context) (int, error) {
	patients, err := w.store.ActivePatients(ctx, w.tipLimit)
	if err != nil {
		return 0, err
	}
	tip := w.tip()

	sent := 0
	for i, c := range patients {
		if i > 0 && w.tipPause > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(w.tipPause):
			}
		}
		_, err := w.sender.SendText(ctx, c.Credentials(), c.Phone, healthTipMessage(c.PatientName, tip, c.Clinic()))
		w.metrics.ObserveOutbound("text", err)
		if err != nil {
			w.logger.Error("reminders: health tip failed", "patient_id", c.PatientID, "error", err)
			continue
		}
		sent++
	}
	w.logSummary("health_tips", sent, len(patients))
	return sent, nil
}

func (w *Worker) logSummary(job string, sent, total int, extra ...any) {
	if total == 0 {
		w.logger.Debug("reminders: nothing to send", "job", job)
		return
	}
	args := append([]any{"job", job, "sent", sent, "failed", total - sent}, extra...)
	w.logger.Info("reminders: job finished", args...)
}
