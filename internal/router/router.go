// Package router runs one inbound patient message through classification,
// resolution and dispatch.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/appointments"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/booking"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/chatlog"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/clinic"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/intent"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/knowledge"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

var tracer = otel.Tracer("clinicbot.internal.router")

type DoctorLookup interface {
	GetByID(ctx context.Context, id string) (*doctors.Doctor, error)
}

type PatientStore interface {
	Upsert(ctx context.Context, phone, doctorID, name string) (*patients.Patient, error)
	ReferralCode(ctx context.Context, id string) (string, int, error)
}

type MessageLog interface {
	Log(ctx context.Context, msg chatlog.Message) (chatlog.Message, error)
}

type AdminProcessor interface {
	Handle(ctx context.Context, doctor *doctors.Doctor, in intent.Intent) bool
}

type BookingFlow interface {
	Start(ctx context.Context, patient *patients.Patient) (booking.Outcome, error)
	Handle(ctx context.Context, patient *patients.Patient, doctor *doctors.Doctor, text string) booking.Outcome
}

type KnowledgeResolver interface {
	ResolveMedical(ctx context.Context, text, doctorID string) (*knowledge.Entry, bool)
	ResolveAdministrative(ctx context.Context, text, doctorID string) (*knowledge.Entry, bool)
}

type HealthAdvisor interface {
	HealthAdvice(ctx context.Context, text, clinicName string) string
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) string
}

type ClinicStatus interface {
	Status(ctx context.Context, doctorID string, now time.Time, loc *time.Location) clinic.Status
}

type QueueSource interface {
	TodayQueue(ctx context.Context, doctorID string, now time.Time, loc *time.Location) ([]appointments.Appointment, error)
}

type MediaFetcher interface {
	FetchMedia(ctx context.Context, creds whatsapp.Credentials, mediaID string) ([]byte, string, error)
}

// Deps are the Router's collaborators. All are required except Clinic and
// Queue, which degrade to "always open" and "no appointment".
type Deps struct {
	Doctors    DoctorLookup
	Patients   PatientStore
	Messages   MessageLog
	Classifier *intent.Classifier
	Admin      AdminProcessor
	Booking    BookingFlow
	Knowledge  KnowledgeResolver
	Advisor    HealthAdvisor
	Dispatcher *dispatch.Dispatcher
	Media      MediaFetcher
	Clinic     ClinicStatus
	Queue      QueueSource
}

// Router is safe for concurrent use. Events for the same patient are
// handled one at a time in arrival order; different patients run in parallel.
type Router struct {
	deps    Deps
	locks   *keyedMutex
	loc     *time.Location
	now     func() time.Time
	tip     func() string
	logger  *logging.Logger
	metrics *metrics.BotMetrics
}

type Option func(*Router)

func WithLocation(loc *time.Location) Option {
	return func(r *Router) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTips sets the greeting's health tip source.
func WithTips(tip func() string) Option {
	return func(r *Router) { r.tip = tip }
}

func WithLogger(logger *logging.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(r *Router) { r.metrics = m }
}

func New(deps Deps, opts ...Option) *Router {
	switch {
	case deps.Doctors == nil:
		panic("router: doctor lookup required")
	case deps.Patients == nil:
		panic("router: patient store required")
	case deps.Messages == nil:
		panic("router: message log required")
	case deps.Admin == nil:
		panic("router: admin processor required")
	case deps.Booking == nil:
		panic("router: booking flow required")
	case deps.Knowledge == nil:
		panic("router: knowledge resolver required")
	case deps.Advisor == nil:
		panic("router: advisor required")
	case deps.Dispatcher == nil:
		panic("router: dispatcher required")
	case deps.Media == nil:
		panic("router: media fetcher required")
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.NewClassifier(nil)
	}
	r := &Router{
		deps:   deps,
		locks:  newKeyedMutex(),
		loc:    time.UTC,
		now:    time.Now,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrInvalidEvent marks events that can never be processed; queue consumers
// should drop rather than retry them.
var ErrInvalidEvent = errors.New("router: invalid event")

// Handle processes one event. Errors are returned only for failures that
// happen before a reply could be attempted (doctor or patient lookup).
func (r *Router) Handle(ctx context.Context, evt InboundEvent) error {
	if evt.DoctorID == "" || evt.From == "" {
		return fmt.Errorf("%w: doctor and sender required", ErrInvalidEvent)
	}
	ctx, span := tracer.Start(ctx, "router.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicbot.doctor_id", evt.DoctorID),
		attribute.String("clinicbot.message_type", evt.Type),
	)

	unlock := r.locks.Lock(evt.LockKey())
	defer unlock()

	err := r.handle(ctx, evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Router) handle(ctx context.Context, evt InboundEvent) error {
	r.metrics.ObserveInbound(evt.Type)

	doctor, err := r.deps.Doctors.GetByID(ctx, evt.DoctorID)
	if err != nil {
		if errors.Is(err, doctors.ErrNotFound) {
			return fmt.Errorf("%w: unknown doctor %s", ErrInvalidEvent, evt.DoctorID)
		}
		return fmt.Errorf("router: load doctor: %w", err)
	}
	patient, err := r.deps.Patients.Upsert(ctx, evt.From, doctor.ID, evt.ContactName)
	if err != nil {
		return fmt.Errorf("router: upsert patient: %w", err)
	}
	r.logIncoming(ctx, doctor, patient, evt)

	if patient.BotPaused {
		r.logger.Info("bot paused for patient, skipping reply",
			"doctor_id", doctor.ID,
			"from", logging.MaskPhone(evt.From),
		)
		return nil
	}

	target := dispatch.Target{Doctor: doctor, Patient: patient}
	switch {
	case evt.InteractiveID != "":
		r.handleSelection(ctx, target, evt.InteractiveID)
	case evt.Type == whatsapp.MessageTypeImage:
		r.handleImage(ctx, target, evt)
	default:
		r.handleText(ctx, target, evt.Text)
	}
	return nil
}

func (r *Router) logIncoming(ctx context.Context, doctor *doctors.Doctor, patient *patients.Patient, evt InboundEvent) {
	body := evt.Text
	if evt.Type == whatsapp.MessageTypeImage && body == "" {
		body = "[image]"
	}
	_, err := r.deps.Messages.Log(ctx, chatlog.Message{
		DoctorID:          doctor.ID,
		PatientID:         patient.ID,
		PhoneNumber:       evt.From,
		Direction:         chatlog.DirectionIncoming,
		Type:              evt.Type,
		Body:              body,
		WhatsAppMessageID: evt.MessageID,
	})
	if err != nil {
		r.logger.Warn("failed to log incoming message", "doctor_id", doctor.ID, "error", err)
	}
}

func (r *Router) handleText(ctx context.Context, t dispatch.Target, text string) {
	in := r.deps.Classifier.Classify(intent.Input{
		Text:       text,
		FromDoctor: doctors.NormalizePhone(t.Patient.PhoneNumber) == doctors.NormalizePhone(t.Doctor.PhoneNumber),
		State:      t.Patient.State,
	})
	r.metrics.ObserveIntent(in.String())
	r.logger.Debug("message classified", "doctor_id", t.Doctor.ID, "intent", in.Kind)

	if in.Kind.IsAdmin() {
		r.deps.Admin.Handle(ctx, t.Doctor, in)
		return
	}
	switch in.Kind {
	case intent.BookingResponse:
		out := r.deps.Booking.Handle(ctx, t.Patient, t.Doctor, text)
		r.deps.Dispatcher.Text(ctx, t, out.Reply)
	case intent.Greeting:
		r.greet(ctx, t)
	case intent.QueueStatus:
		r.queueStatus(ctx, t)
	case intent.SocialLinks:
		r.deps.Dispatcher.SocialLinks(ctx, t)
	case intent.ReferralRequest:
		r.referral(ctx, t)
	case intent.Rating:
		r.deps.Dispatcher.Rating(ctx, t, in.Rating)
	case intent.HealthQuery:
		if entry, ok := r.deps.Knowledge.ResolveMedical(ctx, text, t.Doctor.ID); ok {
			r.deps.Dispatcher.KnowledgeAdvice(ctx, t, entry.Symptom, entry.Advice)
			return
		}
		r.deps.Dispatcher.Text(ctx, t, r.deps.Advisor.HealthAdvice(ctx, text, t.Doctor.DisplayClinicName()))
	case intent.Unclassified:
		if entry, ok := r.deps.Knowledge.ResolveAdministrative(ctx, text, t.Doctor.ID); ok {
			r.deps.Dispatcher.Text(ctx, t, entry.Answer)
			return
		}
		r.deps.Dispatcher.Text(ctx, t, r.deps.Advisor.HealthAdvice(ctx, text, t.Doctor.DisplayClinicName()))
	default:
		r.logger.Error("unhandled intent", "intent", in.Kind)
		r.deps.Dispatcher.Failure(ctx, t)
	}
}

// Interactive row ids. Both the short menu ids and their long aliases are
// accepted so older menus keep working.
var selections = map[string]string{
	dispatch.MenuBook:       dispatch.MenuBook,
	"book_appointment":      dispatch.MenuBook,
	dispatch.QuickBook:      dispatch.MenuBook,
	dispatch.MenuAddress:    dispatch.MenuAddress,
	"clinic_address":        dispatch.MenuAddress,
	dispatch.MenuQueue:      dispatch.MenuQueue,
	"queue_status":          dispatch.MenuQueue,
	dispatch.MenuSocial:     dispatch.MenuSocial,
	"social_media":          dispatch.MenuSocial,
	dispatch.MenuReferral:   dispatch.MenuReferral,
	dispatch.MenuReview:     dispatch.MenuReview,
	"leave_review":          dispatch.MenuReview,
	"review_request":        dispatch.MenuReview,
	dispatch.QuickEmergency: dispatch.QuickEmergency,
}

func (r *Router) handleSelection(ctx context.Context, t dispatch.Target, id string) {
	choice, ok := selections[strings.ToLower(strings.TrimSpace(id))]
	r.metrics.ObserveIntent("selection_" + choiceLabel(choice, ok))
	if !ok {
		r.logger.Info("unknown interactive option", "id", id)
		r.deps.Dispatcher.UnknownOption(ctx, t)
		return
	}
	switch choice {
	case dispatch.MenuBook:
		r.startBooking(ctx, t)
	case dispatch.MenuAddress:
		r.deps.Dispatcher.ClinicAddress(ctx, t)
	case dispatch.MenuQueue:
		r.queueStatus(ctx, t)
	case dispatch.MenuSocial:
		r.deps.Dispatcher.SocialLinks(ctx, t)
	case dispatch.MenuReferral:
		r.referral(ctx, t)
	case dispatch.MenuReview:
		r.deps.Dispatcher.ReviewRequest(ctx, t)
	case dispatch.QuickEmergency:
		r.deps.Dispatcher.Emergency(ctx, t)
	}
}

func choiceLabel(choice string, ok bool) string {
	if !ok {
		return "unknown"
	}
	return choice
}

func (r *Router) startBooking(ctx context.Context, t dispatch.Target) {
	if link := strings.TrimSpace(t.Doctor.BookingLink); link != "" {
		r.deps.Dispatcher.BookingLink(ctx, t, link)
		return
	}
	out, err := r.deps.Booking.Start(ctx, t.Patient)
	if err != nil {
		r.logger.Error("failed to start booking", "patient_id", t.Patient.ID, "error", err)
		r.deps.Dispatcher.Failure(ctx, t)
		return
	}
	r.deps.Dispatcher.Text(ctx, t, out.Reply)
}

func (r *Router) greet(ctx context.Context, t dispatch.Target) {
	var closed *dispatch.ClosedNotice
	if r.deps.Clinic != nil {
		status := r.deps.Clinic.Status(ctx, t.Doctor.ID, r.now(), r.loc)
		if !status.Open {
			closed = &dispatch.ClosedNotice{OpeningTime: status.OpeningTime}
		}
	}
	tip := ""
	if r.tip != nil {
		tip = r.tip()
	}
	r.deps.Dispatcher.Greeting(ctx, t, closed, tip)
}

func (r *Router) queueStatus(ctx context.Context, t dispatch.Target) {
	if r.deps.Queue == nil {
		r.deps.Dispatcher.QueueStatus(ctx, t, nil)
		return
	}
	queue, err := r.deps.Queue.TodayQueue(ctx, t.Doctor.ID, r.now(), r.loc)
	if err != nil {
		r.logger.Error("failed to load queue", "doctor_id", t.Doctor.ID, "error", err)
		r.deps.Dispatcher.Failure(ctx, t)
		return
	}
	avg := time.Duration(t.Doctor.AvgConsultationMinutes) * time.Minute
	pos, ok := appointments.PositionIn(queue, t.Patient.ID, avg)
	if !ok {
		r.deps.Dispatcher.QueueStatus(ctx, t, nil)
		return
	}
	r.deps.Dispatcher.QueueStatus(ctx, t, &dispatch.QueueInfo{
		TokenNumber: pos.TokenNumber,
		PeopleAhead: pos.PeopleAhead,
		WaitMinutes: int(pos.EstimatedWait / time.Minute),
	})
}

func (r *Router) referral(ctx context.Context, t dispatch.Target) {
	code, count, err := r.deps.Patients.ReferralCode(ctx, t.Patient.ID)
	if err != nil {
		r.logger.Error("failed to load referral code", "patient_id", t.Patient.ID, "error", err)
		code = ""
	}
	r.deps.Dispatcher.Referral(ctx, t, code, count)
}

func (r *Router) handleImage(ctx context.Context, t dispatch.Target, evt InboundEvent) {
	r.deps.Dispatcher.ImageReceived(ctx, t)
	data, mimeType, err := r.deps.Media.FetchMedia(ctx, dispatch.Credentials(t.Doctor), evt.MediaID)
	if err != nil {
		r.logger.Warn("image download failed", "media_id", evt.MediaID, "error", err)
		r.deps.Dispatcher.ImageUnavailable(ctx, t)
		return
	}
	if mimeType == "" {
		mimeType = evt.MimeType
	}
	r.deps.Dispatcher.ImageAnalysis(ctx, t, r.deps.Advisor.AnalyzeImage(ctx, data, mimeType))
}
