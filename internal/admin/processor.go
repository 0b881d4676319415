// Package admin answers the slash-commands a doctor sends from their own
// registered number.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/appointments"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/intent"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/reports"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	SearchLimit = 10
	// ReportCandidates caps the disambiguation list for /report.
	ReportCandidates = 5
)

type PatientSearcher interface {
	Search(ctx context.Context, doctorID, name string, limit int) ([]patients.Patient, error)
}

type QueueSource interface {
	TodayQueue(ctx context.Context, doctorID string, now time.Time, loc *time.Location) ([]appointments.Appointment, error)
}

type NetworkSource interface {
	ReferralNetwork(ctx context.Context, doctorID string) ([]doctors.ReferralPartner, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, doctor *doctors.Doctor, patient *patients.Patient) (*reports.Report, error)
}

// Sender delivers replies to the doctor.
type Sender interface {
	Text(ctx context.Context, t dispatch.Target, body string) bool
	Document(ctx context.Context, t dispatch.Target, file []byte, filename, mimeType, caption string) bool
}

// Deps bundles the collaborators a Processor needs.
type Deps struct {
	Patients PatientSearcher
	Queue    QueueSource
	Network  NetworkSource
	Reports  ReportGenerator
	Sender   Sender
}

type Processor struct {
	deps   Deps
	loc    *time.Location
	now    func() time.Time
	logger *logging.Logger
}

type Option func(*Processor)

func WithLocation(loc *time.Location) Option {
	return func(p *Processor) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewProcessor(deps Deps, opts ...Option) *Processor {
	switch {
	case deps.Patients == nil:
		panic("admin: patient searcher required")
	case deps.Queue == nil:
		panic("admin: queue source required")
	case deps.Network == nil:
		panic("admin: network source required")
	case deps.Reports == nil:
		panic("admin: report generator required")
	case deps.Sender == nil:
		panic("admin: sender required")
	}
	p := &Processor{deps: deps, loc: time.UTC, now: time.Now, logger: logging.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle runs one admin intent and replies to the doctor's own number.
// It reports false for non-admin intents.
func (p *Processor) Handle(ctx context.Context, doctor *doctors.Doctor, in intent.Intent) bool {
	target := dispatch.Target{Doctor: doctor, To: doctor.PhoneNumber}
	arg := strings.TrimSpace(in.Argument)
	switch in.Kind {
	case intent.AdminSearch:
		p.deps.Sender.Text(ctx, target, p.search(ctx, doctor, arg))
	case intent.AdminQueue:
		p.deps.Sender.Text(ctx, target, p.queue(ctx, doctor))
	case intent.AdminReport:
		p.report(ctx, target, arg)
	case intent.AdminNetwork:
		p.deps.Sender.Text(ctx, target, p.network(ctx, doctor))
	default:
		return false
	}
	return true
}

func (p *Processor) search(ctx context.Context, doctor *doctors.Doctor, query string) string {
	if query == "" {
		return "❌ Please provide a name to search.\n\nUsage: /search <name>"
	}
	found, err := p.deps.Patients.Search(ctx, doctor.ID, query, SearchLimit)
	if err != nil {
		p.logger.Error("admin search failed", "doctor_id", doctor.ID, "error", err)
		return "❌ Error searching patients. Please try again."
	}
	if len(found) == 0 {
		return fmt.Sprintf("🔍 No patients found matching %q", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *Found %d Patient(s):*\n\n", len(found))
	for i, pt := range found {
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, nameOr(pt.Name))
		fmt.Fprintf(&b, "   📱 %s\n", patients.MaskPhone(pt.PhoneNumber))
		fmt.Fprintf(&b, "   📅 Last Visit: %s\n\n", pt.LastSeenAt.In(p.loc).Format("2 Jan 2006"))
	}
	return b.String()
}

func (p *Processor) queue(ctx context.Context, doctor *doctors.Doctor) string {
	queue, err := p.deps.Queue.TodayQueue(ctx, doctor.ID, p.now(), p.loc)
	if err != nil {
		p.logger.Error("admin queue failed", "doctor_id", doctor.ID, "error", err)
		return "❌ Error fetching queue. Please try again."
	}
	if len(queue) == 0 {
		return "📋 *Today's Queue*\n\nNo appointments scheduled for today."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Today's Queue (%d patients)*\n\n", len(queue))
	for i, a := range queue {
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, nameOr(a.PatientName))
		fmt.Fprintf(&b, "   ⏰ %s\n", a.Time.In(p.loc).Format("03:04 pm"))
		fmt.Fprintf(&b, "   📊 %s\n\n", titleCase(a.Status))
	}
	return b.String()
}

func (p *Processor) report(ctx context.Context, target dispatch.Target, name string) {
	send := func(body string) { p.deps.Sender.Text(ctx, target, body) }
	if name == "" {
		send("❌ Please provide a patient name.\n\nUsage: /report <patient name>")
		return
	}
	doctor := target.Doctor
	found, err := p.deps.Patients.Search(ctx, doctor.ID, name, ReportCandidates)
	if err != nil {
		p.logger.Error("admin report lookup failed", "doctor_id", doctor.ID, "error", err)
		send("❌ Error generating report. Please try again.")
		return
	}
	if len(found) == 0 {
		send(fmt.Sprintf("❌ No patient found matching %q", name))
		return
	}
	if len(found) > 1 {
		var b strings.Builder
		fmt.Fprintf(&b, "🔍 Found %d patients:\n\n", len(found))
		for i, pt := range found {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, nameOr(pt.Name), patients.MaskPhone(pt.PhoneNumber))
		}
		b.WriteString("\nPlease be more specific with the name.")
		send(b.String())
		return
	}

	patient := &found[0]
	send(fmt.Sprintf("📄 Generating report for %s... Please wait.", nameOr(patient.Name)))

	report, err := p.deps.Reports.Generate(ctx, doctor, patient)
	if err != nil {
		p.logger.Error("report generation failed", "doctor_id", doctor.ID, "patient_id", patient.ID, "error", err)
		send("❌ Error generating report. Please try again.")
		return
	}
	defer func() {
		if err := report.Remove(); err != nil {
			p.logger.Warn("report cleanup failed", "path", report.Path, "error", err)
		}
	}()

	caption := "Medical report for " + nameOr(patient.Name)
	if !p.deps.Sender.Document(ctx, target, report.Data, report.Filename, reports.MIMEType, caption) {
		send("❌ Error generating report. Please try again.")
	}
}

func (p *Processor) network(ctx context.Context, doctor *doctors.Doctor) string {
	partners, err := p.deps.Network.ReferralNetwork(ctx, doctor.ID)
	if err != nil {
		p.logger.Error("admin network failed", "doctor_id", doctor.ID, "error", err)
		return "❌ Error fetching network. Please try again."
	}
	if len(partners) == 0 {
		return "📋 *Referral Network*\n\nNo external doctors in your network yet."
	}

	var b strings.Builder
	b.WriteString("🌐 *Referral Network*\n\n")
	fmt.Fprintf(&b, "Total External Doctors: %d\n\n", len(partners))
	var total float64
	for i, d := range partners {
		spec := d.Specialization
		if spec == "" {
			spec = "N/A"
		}
		fmt.Fprintf(&b, "%d. *%s*\n", i+1, d.Name)
		fmt.Fprintf(&b, "   Specialization: %s\n", spec)
		fmt.Fprintf(&b, "   Referrals: %d\n", d.TotalReferrals)
		fmt.Fprintf(&b, "   Commission: %s%%\n", strconv.FormatFloat(d.CommissionPercentage, 'f', -1, 64))
		fmt.Fprintf(&b, "   Due: ₹%s\n\n", strconv.FormatFloat(d.CommissionDue, 'f', -1, 64))
		total += d.CommissionDue
	}
	b.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💰 *Total Commission Due: ₹%.2f*", total)
	return b.String()
}

func nameOr(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Unknown"
	}
	return name
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
