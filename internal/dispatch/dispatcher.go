// Package dispatch turns resolved intents into outbound WhatsApp messages.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/chatlog"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// Gateway is the outbound messaging surface.
type Gateway interface {
	SendText(ctx context.Context, creds whatsapp.Credentials, to, body string) (*whatsapp.SendResponse, error)
	SendInteractiveList(ctx context.Context, creds whatsapp.Credentials, to, header, body string, sections []whatsapp.Section) (*whatsapp.SendResponse, error)
	SendLocation(ctx context.Context, creds whatsapp.Credentials, to string, loc whatsapp.Location) (*whatsapp.SendResponse, error)
	SendTemplate(ctx context.Context, creds whatsapp.Credentials, to, name, languageCode string, components []whatsapp.TemplateComponent) (*whatsapp.SendResponse, error)
	SendDocument(ctx context.Context, creds whatsapp.Credentials, to string, file []byte, filename, mimeType, caption string) (*whatsapp.SendResponse, error)
}

// MessageLog records outgoing bot messages for the live-chat history.
type MessageLog interface {
	Log(ctx context.Context, msg chatlog.Message) (chatlog.Message, error)
}

// Target is who a reply goes to and on whose behalf.
type Target struct {
	Doctor  *doctors.Doctor
	Patient *patients.Patient
	// To overrides the patient's phone (admin replies go to the doctor).
	To string
}

func (t Target) recipient() string {
	if t.To != "" {
		return t.To
	}
	if t.Patient != nil {
		return t.Patient.PhoneNumber
	}
	return ""
}

func (t Target) language() string {
	if t.Patient == nil {
		return LangEnglish
	}
	return t.Patient.Language
}

// Credentials returns the doctor's gateway override, if any.
func Credentials(doctor *doctors.Doctor) whatsapp.Credentials {
	if doctor == nil {
		return whatsapp.Credentials{}
	}
	return whatsapp.Credentials{Token: doctor.WhatsAppToken, PhoneNumberID: doctor.WhatsAppPhoneNumberID}
}

// Dispatcher sends bot replies. Gateway failures are logged and swallowed so
// inbound handling always completes; each send reports whether it went out.
type Dispatcher struct {
	gateway Gateway
	log     MessageLog
	logger  *logging.Logger
	metrics *metrics.BotMetrics
}

type Option func(*Dispatcher)

func WithMessageLog(l MessageLog) Option {
	return func(d *Dispatcher) { d.log = l }
}

func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func New(gateway Gateway, opts ...Option) *Dispatcher {
	if gateway == nil {
		panic("dispatch: gateway required")
	}
	d := &Dispatcher{gateway: gateway, logger: logging.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Text sends a plain message.
func (d *Dispatcher) Text(ctx context.Context, t Target, body string) bool {
	resp, err := d.gateway.SendText(ctx, Credentials(t.Doctor), t.recipient(), body)
	return d.after(ctx, t, "text", body, resp, err)
}

func (d *Dispatcher) list(ctx context.Context, t Target, header, body string, sections []whatsapp.Section) bool {
	resp, err := d.gateway.SendInteractiveList(ctx, Credentials(t.Doctor), t.recipient(), header, body, sections)
	return d.after(ctx, t, "interactive", body, resp, err)
}

func (d *Dispatcher) after(ctx context.Context, t Target, kind, body string, resp *whatsapp.SendResponse, err error) bool {
	d.metrics.ObserveOutbound(kind, err)
	if err != nil {
		attrs := []any{"kind", kind, "to", logging.MaskPhone(t.recipient()), "error", err}
		if se, ok := whatsapp.AsSendError(err); ok {
			attrs = append(attrs, "code", se.Code, "retryable", se.Retryable)
		}
		d.logger.Warn("outbound message failed", attrs...)
		return false
	}
	d.record(ctx, t, kind, body, resp.MessageID())
	return true
}

func (d *Dispatcher) record(ctx context.Context, t Target, kind, body, waID string) {
	if d.log == nil || t.Doctor == nil {
		return
	}
	msg := chatlog.Message{
		DoctorID:          t.Doctor.ID,
		PhoneNumber:       t.recipient(),
		Direction:         chatlog.DirectionOutgoing,
		Type:              kind,
		Body:              body,
		WhatsAppMessageID: waID,
	}
	if t.Patient != nil {
		msg.PatientID = t.Patient.ID
	}
	if _, err := d.log.Log(ctx, msg); err != nil {
		d.logger.Warn("failed to log outgoing message", "doctor_id", t.Doctor.ID, "error", err)
	}
}

// ClosedNotice is shown before the menu when the clinic is closed.
type ClosedNotice struct {
	OpeningTime string
}

// Greeting sends the optional closed notice, the main menu list and a tip.
func (d *Dispatcher) Greeting(ctx context.Context, t Target, closed *ClosedNotice, tip string) {
	lang := t.language()
	if closed != nil {
		d.Text(ctx, t, closedMessage(lang, closed.OpeningTime))
	}
	welcome := strings.TrimSpace(t.Doctor.WelcomeMessage)
	if welcome == "" {
		welcome = pick(lang, welcomeDefault)
	}
	d.list(ctx, t, t.Doctor.DisplayClinicName(), welcome, mainMenu(lang))
	body := pick(lang, aiHelpTip)
	if tip != "" {
		body += "\n\n" + tip
	}
	d.Text(ctx, t, body)
}

// KnowledgeAdvice quotes the doctor's own advice for a matched symptom.
func (d *Dispatcher) KnowledgeAdvice(ctx context.Context, t Target, symptom, advice string) {
	d.Text(ctx, t, fmt.Sprintf("🩺 *%s*\n\n%s\n\n_This advice is personalized by Dr. %s_", symptom, advice, t.Doctor.Name))
}

// Rating thanks 5-star patients (with the review link when configured) and
// asks everyone else for feedback.
func (d *Dispatcher) Rating(ctx context.Context, t Target, rating int) {
	lang := t.language()
	switch {
	case rating == 5 && strings.TrimSpace(t.Doctor.ReviewLink) != "":
		d.Text(ctx, t, fmt.Sprintf(pick(lang, reviewLinkMessage), strings.TrimSpace(t.Doctor.ReviewLink)))
	case rating == 5:
		d.Text(ctx, t, pick(lang, thankYouMessage))
	case rating >= 1 && rating <= 4:
		d.Text(ctx, t, pick(lang, feedbackMessage))
	}
}

// ReviewRequest asks the patient for a 1-5 rating.
func (d *Dispatcher) ReviewRequest(ctx context.Context, t Target) {
	d.Text(ctx, t, reviewRequestMessage)
}

// QueueStatus reports the patient's token, or offers booking when there is
// no appointment today.
func (d *Dispatcher) QueueStatus(ctx context.Context, t Target, status *QueueInfo) {
	lang := t.language()
	if status == nil {
		d.Text(ctx, t, pick(lang, noAppointmentMessage))
		return
	}
	d.Text(ctx, t, fmt.Sprintf(pick(lang, queueMessage), status.TokenNumber, status.PeopleAhead, status.WaitMinutes))
}

// QueueInfo is the subset of a queue position shown to patients.
type QueueInfo struct {
	TokenNumber int
	PeopleAhead int
	WaitMinutes int
}

// SocialLinks lists the doctor's configured profiles.
func (d *Dispatcher) SocialLinks(ctx context.Context, t Target) {
	lang := t.language()
	links := t.Doctor.SocialLinks
	if links.Empty() {
		d.Text(ctx, t, pick(lang, socialUnavailable))
		return
	}
	var b strings.Builder
	b.WriteString(pick(lang, socialHeader))
	b.WriteString("\n\n")
	for _, l := range []struct{ label, url string }{
		{"📸 Instagram", links.Instagram},
		{"🎥 YouTube", links.YouTube},
		{"👍 Facebook", links.Facebook},
		{"🌐 Website", links.Website},
		{"🐦 Twitter", links.Twitter},
	} {
		if l.url != "" {
			fmt.Fprintf(&b, "%s: %s\n\n", l.label, l.url)
		}
	}
	b.WriteString(pick(lang, socialFooter))
	d.Text(ctx, t, b.String())
}

// Referral shares the patient's referral code.
func (d *Dispatcher) Referral(ctx context.Context, t Target, code string, count int) {
	lang := t.language()
	if code == "" {
		d.Text(ctx, t, pick(lang, referralFailed))
		return
	}
	d.Text(ctx, t, fmt.Sprintf(pick(lang, referralMessage), code, count))
}

// Default clinic pin when the doctor has no coordinates.
const (
	DefaultLatitude  = 18.5204
	DefaultLongitude = 73.8567
	DefaultAddress   = "Pune, Maharashtra, India"
)

// ClinicAddress sends a location pin and a directions note.
func (d *Dispatcher) ClinicAddress(ctx context.Context, t Target) {
	loc := whatsapp.Location{
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		Name:      t.Doctor.DisplayClinicName(),
		Address:   DefaultAddress,
	}
	if t.Doctor.Latitude != nil && t.Doctor.Longitude != nil {
		loc.Latitude, loc.Longitude = *t.Doctor.Latitude, *t.Doctor.Longitude
	}
	if a := strings.TrimSpace(t.Doctor.ClinicAddress); a != "" {
		loc.Address = a
	}
	resp, err := d.gateway.SendLocation(ctx, Credentials(t.Doctor), t.recipient(), loc)
	d.after(ctx, t, "location", loc.Name+"\n"+loc.Address, resp, err)
	d.Text(ctx, t, fmt.Sprintf("📍 *%s*\n\n%s\n\nTap on the location above to get directions via Google Maps! 🗺️", loc.Name, loc.Address))
}

// BookingLink sends an external scheduling link instead of the chat flow.
func (d *Dispatcher) BookingLink(ctx context.Context, t Target, link string) {
	d.Text(ctx, t, fmt.Sprintf("📅 *Book Your Appointment*\n\nPlease select your preferred date and time here:\n\n%s\n\nWe look forward to seeing you! 😊", link))
}

// Emergency points the patient at the clinic phone.
func (d *Dispatcher) Emergency(ctx context.Context, t Target) {
	phone := strings.TrimSpace(t.Doctor.ClinicPhone)
	if phone == "" {
		phone = t.Doctor.PhoneNumber
	}
	d.Text(ctx, t, fmt.Sprintf("🚑 *Need urgent help?*\n\nPlease call the clinic right away: 📞 %s\n\nFor a medical emergency, go to the nearest emergency room or call 108.", phone))
}

// UnknownOption answers an interactive id the bot does not recognise.
func (d *Dispatcher) UnknownOption(ctx context.Context, t Target) {
	d.Text(ctx, t, "Sorry, I didn't understand that option. Type *Menu* to see available options.")
}

// ImageReceived acknowledges an upload before analysis starts.
func (d *Dispatcher) ImageReceived(ctx context.Context, t Target) {
	d.Text(ctx, t, "📸 Analyzing your medical report... Please wait a moment.")
}

// ImageAnalysis sends the analysis text.
func (d *Dispatcher) ImageAnalysis(ctx context.Context, t Target, analysis string) {
	d.Text(ctx, t, fmt.Sprintf("📋 *Medical Report Analysis*\n\n%s\n\nNeed clarification? Type 'Hi' to book an appointment with %s.", analysis, t.Doctor.Name))
}

// ImageUnavailable reports a failed media download.
func (d *Dispatcher) ImageUnavailable(ctx context.Context, t Target) {
	d.Text(ctx, t, "❌ Sorry, I couldn't download the image. Please try again.")
}

// Failure is the catch-all apology.
func (d *Dispatcher) Failure(ctx context.Context, t Target) {
	d.Text(ctx, t, "Sorry, we encountered an error. Please try again later or contact us directly.")
}

// Document sends a generated file.
func (d *Dispatcher) Document(ctx context.Context, t Target, file []byte, filename, mimeType, caption string) bool {
	resp, err := d.gateway.SendDocument(ctx, Credentials(t.Doctor), t.recipient(), file, filename, mimeType, caption)
	return d.after(ctx, t, "document", caption, resp, err)
}

// MissedCallTemplate is the approved template used outside the 24h window.
const MissedCallTemplate = "missed_call_recovery"

// MissedCall sends the recovery menu, falling back to the template when the
// 24h window has closed. Unlike bot replies, the error is returned so the
// caller can report it.
func (d *Dispatcher) MissedCall(ctx context.Context, t Target) (string, error) {
	clinic := t.Doctor.DisplayClinicName()
	body := fmt.Sprintf("Hello! 👋\n\nWe noticed a missed call from you at *%s*.\n\nWe are currently attending other patients. Would you like to book an appointment? 👇", clinic)
	creds := Credentials(t.Doctor)

	resp, err := d.gateway.SendInteractiveList(ctx, creds, t.recipient(), clinic, body, missedCallMenu())
	d.metrics.ObserveOutbound("interactive", err)
	if err == nil {
		d.record(ctx, t, "interactive", body, resp.MessageID())
		return "interactive", nil
	}
	if !windowExpired(err) {
		d.logger.Warn("missed call recovery failed", "to", logging.MaskPhone(t.recipient()), "error", err)
		return "", err
	}

	components := []whatsapp.TemplateComponent{{
		Type:       "body",
		Parameters: []whatsapp.TemplateParameter{{Type: "text", Text: clinic}},
	}}
	resp, err = d.gateway.SendTemplate(ctx, creds, t.recipient(), MissedCallTemplate, "en_US", components)
	d.metrics.ObserveOutbound("template", err)
	if err != nil {
		d.logger.Warn("missed call template failed", "to", logging.MaskPhone(t.recipient()), "error", err)
		return "", err
	}
	d.record(ctx, t, "template", MissedCallTemplate, resp.MessageID())
	return "template", nil
}

func windowExpired(err error) bool {
	var se *whatsapp.SendError
	return errors.As(err, &se) && se.Code == "131047"
}
