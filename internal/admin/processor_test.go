package admin

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/appointments"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/intent"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/reports"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

type fakeSearcher struct {
	results []patients.Patient
	err     error
	limit   int
	query   string
}

func (f *fakeSearcher) Search(_ context.Context, _ string, name string, limit int) ([]patients.Patient, error) {
	f.limit, f.query = limit, name
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

type fakeQueue struct {
	appts []appointments.Appointment
	err   error
}

func (f *fakeQueue) TodayQueue(context.Context, string, time.Time, *time.Location) ([]appointments.Appointment, error) {
	return f.appts, f.err
}

type fakeNetwork struct {
	partners []doctors.ReferralPartner
	err      error
}

func (f *fakeNetwork) ReferralNetwork(context.Context, string) ([]doctors.ReferralPartner, error) {
	return f.partners, f.err
}

type fakeReports struct {
	dir    string
	err    error
	report *reports.Report
}

func (f *fakeReports) Generate(_ context.Context, _ *doctors.Doctor, p *patients.Patient) (*reports.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(f.dir, "report.xlsx")
	if err := os.WriteFile(path, []byte("xlsx"), 0o600); err != nil {
		return nil, err
	}
	f.report = &reports.Report{Path: path, Filename: reports.Filename(p), Data: []byte("xlsx")}
	return f.report, nil
}

type document struct {
	filename string
	caption  string
	mimeType string
}

type fakeSender struct {
	to        []string
	texts     []string
	documents []document
	failDocs  bool
}

func (f *fakeSender) Text(_ context.Context, t dispatch.Target, body string) bool {
	f.to = append(f.to, t.To)
	f.texts = append(f.texts, body)
	return true
}

func (f *fakeSender) Document(_ context.Context, t dispatch.Target, _ []byte, filename, mimeType, caption string) bool {
	f.to = append(f.to, t.To)
	if f.failDocs {
		return false
	}
	f.documents = append(f.documents, document{filename: filename, caption: caption, mimeType: mimeType})
	return true
}

type harness struct {
	searcher *fakeSearcher
	queue    *fakeQueue
	network  *fakeNetwork
	reports  *fakeReports
	sender   *fakeSender
	proc     *Processor
}

var ist = time.FixedZone("IST", 5*3600+1800)

func newHarness(t *testing.T) *harness {
	h := &harness{
		searcher: &fakeSearcher{},
		queue:    &fakeQueue{},
		network:  &fakeNetwork{},
		reports:  &fakeReports{dir: t.TempDir()},
		sender:   &fakeSender{},
	}
	h.proc = NewProcessor(Deps{
		Patients: h.searcher,
		Queue:    h.queue,
		Network:  h.network,
		Reports:  h.reports,
		Sender:   h.sender,
	},
		WithLocation(ist),
		WithClock(func() time.Time { return time.Date(2025, 8, 11, 10, 0, 0, 0, ist) }),
		WithLogger(logging.NewWithWriter(io.Discard, "error")),
	)
	return h
}

var doctor = &doctors.Doctor{ID: "doc-1", Name: "Asha Patil", PhoneNumber: "919800000000"}

func run(h *harness, kind intent.Kind, arg string) bool {
	return h.proc.Handle(context.Background(), doctor, intent.Intent{Kind: kind, Argument: arg})
}

func TestSearchListsMaskedPatients(t *testing.T) {
	h := newHarness(t)
	h.searcher.results = []patients.Patient{
		{Name: "Raj Kumar", PhoneNumber: "919811111111", LastSeenAt: time.Date(2025, 8, 10, 6, 0, 0, 0, time.UTC)},
		{Name: "Rajesh", PhoneNumber: "919822222222", LastSeenAt: time.Date(2025, 7, 3, 6, 0, 0, 0, time.UTC)},
		{PhoneNumber: "919833333333", LastSeenAt: time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)},
	}

	require.True(t, run(h, intent.AdminSearch, " raj "))

	assert.Equal(t, SearchLimit, h.searcher.limit)
	assert.Equal(t, "raj", h.searcher.query)
	require.Len(t, h.sender.texts, 1)
	body := h.sender.texts[0]
	assert.True(t, strings.HasPrefix(body, "🔍 *Found 3 Patient(s):*"))
	assert.Contains(t, body, "1. *Raj Kumar*\n   📱 919811...\n   📅 Last Visit: 10 Aug 2025")
	assert.Contains(t, body, "3. *Unknown*")
	assert.NotContains(t, body, "919811111111")
	assert.Less(t, strings.Index(body, "Raj Kumar"), strings.Index(body, "Rajesh"))
	assert.Equal(t, []string{"919800000000"}, h.sender.to)
}

func TestSearchEdgeCases(t *testing.T) {
	h := newHarness(t)

	run(h, intent.AdminSearch, "")
	run(h, intent.AdminSearch, "zed")
	h.searcher.err = errors.New("db down")
	run(h, intent.AdminSearch, "raj")

	require.Len(t, h.sender.texts, 3)
	assert.Contains(t, h.sender.texts[0], "Usage: /search <name>")
	assert.Equal(t, `🔍 No patients found matching "zed"`, h.sender.texts[1])
	assert.Contains(t, h.sender.texts[2], "Error searching patients")
}

func TestQueueDigest(t *testing.T) {
	h := newHarness(t)
	run(h, intent.AdminQueue, "")

	h.queue.appts = []appointments.Appointment{
		{PatientName: "Raj Kumar", Time: time.Date(2025, 8, 11, 9, 30, 0, 0, ist), Status: "confirmed"},
		{PatientName: "", Time: time.Date(2025, 8, 11, 14, 0, 0, 0, ist), Status: "pending"},
	}
	run(h, intent.AdminQueue, "")

	require.Len(t, h.sender.texts, 2)
	assert.Equal(t, "📋 *Today's Queue*\n\nNo appointments scheduled for today.", h.sender.texts[0])
	body := h.sender.texts[1]
	assert.True(t, strings.HasPrefix(body, "📋 *Today's Queue (2 patients)*"))
	assert.Contains(t, body, "1. *Raj Kumar*\n   ⏰ 09:30 am\n   📊 Confirmed")
	assert.Contains(t, body, "2. *Unknown*\n   ⏰ 02:00 pm\n   📊 Pending")
}

func TestReportRequiresArgument(t *testing.T) {
	h := newHarness(t)
	run(h, intent.AdminReport, "  ")

	require.Len(t, h.sender.texts, 1)
	assert.Contains(t, h.sender.texts[0], "Usage: /report <patient name>")
	assert.Zero(t, h.searcher.limit)
}

func TestReportNoMatch(t *testing.T) {
	h := newHarness(t)
	run(h, intent.AdminReport, "zed")

	assert.Equal(t, []string{`❌ No patient found matching "zed"`}, h.sender.texts)
	assert.Nil(t, h.reports.report)
}

func TestReportAmbiguousListsCandidates(t *testing.T) {
	h := newHarness(t)
	for _, n := range []string{"Raj A", "Raj B", "Raj C", "Raj D", "Raj E", "Raj F"} {
		h.searcher.results = append(h.searcher.results, patients.Patient{Name: n, PhoneNumber: "919811111111"})
	}

	run(h, intent.AdminReport, "raj")

	assert.Equal(t, ReportCandidates, h.searcher.limit)
	require.Len(t, h.sender.texts, 1)
	body := h.sender.texts[0]
	assert.True(t, strings.HasPrefix(body, "🔍 Found 5 patients:"))
	assert.Contains(t, body, "5. Raj E (919811...)")
	assert.NotContains(t, body, "Raj F")
	assert.True(t, strings.HasSuffix(body, "Please be more specific with the name."))
	assert.Nil(t, h.reports.report)
}

func TestReportSendsDocumentAndRemovesFile(t *testing.T) {
	h := newHarness(t)
	h.searcher.results = []patients.Patient{{ID: "pat-1", Name: "Raj Kumar", PhoneNumber: "919811111111"}}

	run(h, intent.AdminReport, "raj kumar")

	require.Len(t, h.sender.texts, 1)
	assert.Equal(t, "📄 Generating report for Raj Kumar... Please wait.", h.sender.texts[0])
	require.Len(t, h.sender.documents, 1)
	assert.Equal(t, document{
		filename: "Raj_Kumar_Report.xlsx",
		caption:  "Medical report for Raj Kumar",
		mimeType: reports.MIMEType,
	}, h.sender.documents[0])

	_, err := os.Stat(h.reports.report.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "temp report should be deleted")
}

func TestReportFailures(t *testing.T) {
	h := newHarness(t)
	h.searcher.results = []patients.Patient{{ID: "pat-1", Name: "Raj"}}
	h.reports.err = errors.New("excel broke")

	run(h, intent.AdminReport, "raj")
	require.Len(t, h.sender.texts, 2)
	assert.Contains(t, h.sender.texts[1], "Error generating report")

	h = newHarness(t)
	h.searcher.results = []patients.Patient{{ID: "pat-1", Name: "Raj"}}
	h.sender.failDocs = true

	run(h, intent.AdminReport, "raj")
	require.Len(t, h.sender.texts, 2)
	assert.Contains(t, h.sender.texts[1], "Error generating report")
	_, err := os.Stat(h.reports.report.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNetworkRunningTotal(t *testing.T) {
	h := newHarness(t)
	h.network.partners = []doctors.ReferralPartner{
		{Name: "Dr. Mehta", Specialization: "Cardiology", TotalReferrals: 4, CommissionPercentage: 10, CommissionDue: 1200.5},
		{Name: "Dr. Rao", TotalReferrals: 1, CommissionPercentage: 7.5, CommissionDue: 300},
	}

	run(h, intent.AdminNetwork, "")

	require.Len(t, h.sender.texts, 1)
	body := h.sender.texts[0]
	assert.Contains(t, body, "Total External Doctors: 2")
	assert.Contains(t, body, "1. *Dr. Mehta*\n   Specialization: Cardiology\n   Referrals: 4\n   Commission: 10%\n   Due: ₹1200.5")
	assert.Contains(t, body, "Specialization: N/A")
	assert.Contains(t, body, "Commission: 7.5%")
	assert.True(t, strings.HasSuffix(body, "💰 *Total Commission Due: ₹1500.50*"))
}

func TestNetworkEmptyAndError(t *testing.T) {
	h := newHarness(t)
	run(h, intent.AdminNetwork, "")
	h.network.err = errors.New("db down")
	run(h, intent.AdminNetwork, "")

	require.Len(t, h.sender.texts, 2)
	assert.Contains(t, h.sender.texts[0], "No external doctors in your network yet.")
	assert.Contains(t, h.sender.texts[1], "Error fetching network")
}

func TestHandleIgnoresPatientIntents(t *testing.T) {
	h := newHarness(t)
	assert.False(t, run(h, intent.Greeting, ""))
	assert.Empty(t, h.sender.texts)
}

func TestNewProcessorPanicsOnMissingDeps(t *testing.T) {
	assert.Panics(t, func() { NewProcessor(Deps{}) })
}
