package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// Monday 19 Oct 2026, 11:00 IST.
var mondayMorning = time.Date(2026, 10, 19, 11, 0, 0, 0, ist)

var (
	visitColumns  = []string{"id", "appointment_time", "balance_amount", "patient_id", "name", "phone_number", "preferred_language", "doctor_name", "clinic_name", "whatsapp_token", "whatsapp_phone_number_id"}
	lapsedColumns = []string{"last_seen_at", "patient_id", "name", "phone_number", "preferred_language", "doctor_name", "clinic_name", "whatsapp_token", "whatsapp_phone_number_id"}
	activeColumns = []string{"patient_id", "name", "phone_number", "preferred_language", "doctor_name", "clinic_name", "whatsapp_token", "whatsapp_phone_number_id"}
)

type sentMessage struct {
	kind       string
	creds      whatsapp.Credentials
	to         string
	name       string
	lang       string
	body       string
	components []whatsapp.TemplateComponent
	buttons    []whatsapp.Button
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
}

func (f *fakeSender) record(m sentMessage) (*whatsapp.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[m.to] {
		return nil, errors.New("gateway down")
	}
	f.sent = append(f.sent, m)
	return &whatsapp.SendResponse{}, nil
}

func (f *fakeSender) SendText(_ context.Context, creds whatsapp.Credentials, to, body string) (*whatsapp.SendResponse, error) {
	return f.record(sentMessage{kind: "text", creds: creds, to: to, body: body})
}

func (f *fakeSender) SendButtons(_ context.Context, creds whatsapp.Credentials, to, body string, buttons []whatsapp.Button) (*whatsapp.SendResponse, error) {
	return f.record(sentMessage{kind: "buttons", creds: creds, to: to, body: body, buttons: buttons})
}

func (f *fakeSender) SendTemplate(_ context.Context, creds whatsapp.Credentials, to, name, lang string, components []whatsapp.TemplateComponent) (*whatsapp.SendResponse, error) {
	return f.record(sentMessage{kind: "template", creds: creds, to: to, name: name, lang: lang, components: components})
}

func params(t *testing.T, m sentMessage) []string {
	t.Helper()
	require.Len(t, m.components, 1)
	assert.Equal(t, "body", m.components[0].Type)
	var out []string
	for _, p := range m.components[0].Parameters {
		out = append(out, p.Text)
	}
	return out
}

func newTestWorker(t *testing.T, opts ...WorkerOption) (*Worker, pgxmock.PgxPoolIface, *fakeSender) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	sender := &fakeSender{failTo: map[string]bool{}}
	base := []WorkerOption{
		WithLocation(ist),
		WithClock(func() time.Time { return mondayMorning }),
		WithLogger(logging.New("error")),
		WithTipPause(0),
	}
	return NewWorker(NewStore(mock), sender, append(base, opts...)...), mock, sender
}

func TestSendAppointmentRemindersMarksEachVisit(t *testing.T) {
	w, mock, sender := newTestWorker(t)
	sender.failTo["919800000002"] = true

	at := time.Date(2026, 10, 19, 12, 30, 0, 0, ist)
	mock.ExpectQuery("FROM appointments a").
		WithArgs(mondayMorning.UTC(), mondayMorning.Add(2*time.Hour).UTC()).
		WillReturnRows(pgxmock.NewRows(visitColumns).
			AddRow("a-1", at, 0.0, "p-1", "Asha", "919800000001", "mr", "Mehta", "Sunrise Clinic", "doc-token", "doc-phone-id").
			AddRow("a-2", at.Add(15*time.Minute), 0.0, "p-2", "", "919800000002", "en", "Mehta", "Sunrise Clinic", "", ""))
	mock.ExpectExec("UPDATE appointments SET reminder_sent").
		WithArgs("a-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := w.SendAppointmentReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, TemplateAppointmentReminder, msg.name)
	assert.Equal(t, "mr", msg.lang)
	assert.Equal(t, whatsapp.Credentials{Token: "doc-token", PhoneNumberID: "doc-phone-id"}, msg.creds)
	assert.Equal(t, []string{"Asha", "19 Oct, 12:30 PM", "Sunrise Clinic"}, params(t, msg))
}

func TestSendAppointmentRemindersSkipsAlreadyMarked(t *testing.T) {
	w, mock, sender := newTestWorker(t)

	mock.ExpectQuery("FROM appointments a").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(visitColumns).
			AddRow("a-1", mondayMorning.Add(time.Hour), 0.0, "p-1", "Asha", "919800000001", "en", "Mehta", "", "", ""))
	mock.ExpectExec("UPDATE appointments SET reminder_sent").
		WithArgs("a-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := w.SendAppointmentReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Dr. Mehta's Clinic", params(t, sender.sent[0])[2])
}

func TestSendAppointmentRemindersQueryError(t *testing.T) {
	w, mock, sender := newTestWorker(t)
	mock.ExpectQuery("FROM appointments a").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	_, err := w.SendAppointmentReminders(context.Background())
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestSendPaymentRemindersCoversYesterday(t *testing.T) {
	w, mock, sender := newTestWorker(t)

	start := time.Date(2026, 10, 18, 0, 0, 0, 0, ist)
	mock.ExpectQuery("a.payment_status = 'pending'").
		WithArgs(start.UTC(), start.AddDate(0, 0, 1).UTC()).
		WillReturnRows(pgxmock.NewRows(visitColumns).
			AddRow("a-1", start.Add(10*time.Hour), 500.0, "p-1", "Asha", "919800000001", "en", "Mehta", "Sunrise Clinic", "", "").
			AddRow("a-2", start.Add(11*time.Hour), 250.5, "p-2", "Ravi", "919800000002", "en", "Mehta", "Sunrise Clinic", "", ""))

	n, err := w.SendPaymentReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, sender.sent, 2)
	assert.Equal(t, TemplatePaymentReminder, sender.sent[0].name)
	assert.Equal(t, []string{"Asha", "₹500", "Sunrise Clinic"}, params(t, sender.sent[0]))
	assert.Equal(t, "₹250.5", params(t, sender.sent[1])[1])
}

func TestSendRecallsFollowsTemplateWithBookingButton(t *testing.T) {
	w, mock, sender := newTestWorker(t)
	sender.failTo["919800000002"] = true

	cutoff := time.Date(2026, 4, 23, 0, 0, 0, 0, ist)
	lastSeen := time.Date(2026, 4, 1, 10, 0, 0, 0, ist)
	mock.ExpectQuery("FROM patients p").
		WithArgs(cutoff.UTC(), mondayMorning.UTC(), 50).
		WillReturnRows(pgxmock.NewRows(lapsedColumns).
			AddRow(lastSeen, "p-1", "Asha", "919800000001", "en", "Mehta", "Sunrise Clinic", "", "").
			AddRow(lastSeen, "p-2", "Ravi", "919800000002", "en", "Mehta", "Sunrise Clinic", "", ""))
	mock.ExpectExec("UPDATE patients SET last_recall_sent").
		WithArgs(mondayMorning.UTC(), "p-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := w.SendRecalls(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, sender.sent, 2)
	assert.Equal(t, TemplateCheckupRecall, sender.sent[0].name)
	assert.Equal(t, []string{"Asha", "6 months", "Sunrise Clinic"}, params(t, sender.sent[0]))

	buttons := sender.sent[1]
	assert.Equal(t, "buttons", buttons.kind)
	assert.Equal(t, "919800000001", buttons.to)
	assert.Contains(t, buttons.body, "Sunrise Clinic")
	require.Len(t, buttons.buttons, 1)
	assert.Equal(t, "book_appt", buttons.buttons[0].ID)
}

func TestSendRecallsHonoursLimit(t *testing.T) {
	w, mock, _ := newTestWorker(t, WithLimits(5, 0))
	mock.ExpectQuery("FROM patients p").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 5).
		WillReturnRows(pgxmock.NewRows(lapsedColumns))

	n, err := w.SendRecalls(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendHealthTipsPersonalizesOneTip(t *testing.T) {
	calls := 0
	w, mock, sender := newTestWorker(t, WithTipSource(func() string {
		calls++
		return "Drink water."
	}))

	mock.ExpectQuery("WHERE p.is_active AND d.is_active").
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(activeColumns).
			AddRow("p-1", "Asha", "919800000001", "en", "Mehta", "Sunrise Clinic", "", "").
			AddRow("p-2", "", "919800000002", "en", "Rao", "", "tok", "pid"))

	n, err := w.SendHealthTips(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, calls)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Hello Asha! 👋\n\nDrink water.\n\nStay healthy! 💚\n- Sunrise Clinic", sender.sent[0].body)
	assert.Equal(t, "Hello there! 👋\n\nDrink water.\n\nStay healthy! 💚\n- Dr. Rao's Clinic", sender.sent[1].body)
	assert.Equal(t, whatsapp.Credentials{Token: "tok", PhoneNumberID: "pid"}, sender.sent[1].creds)
}

func TestSendHealthTipsStopsOnCancel(t *testing.T) {
	w, mock, sender := newTestWorker(t, WithTipPause(time.Hour))
	mock.ExpectQuery("WHERE p.is_active AND d.is_active").
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(activeColumns).
			AddRow("p-1", "Asha", "919800000001", "en", "Mehta", "", "", "").
			AddRow("p-2", "Ravi", "919800000002", "en", "Mehta", "", "", ""))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			sender.mu.Lock()
			n := len(sender.sent)
			sender.mu.Unlock()
			if n > 0 {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	n, err := w.SendHealthTips(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}

func TestTemplateHelpers(t *testing.T) {
	assert.Equal(t, "mr", templateLanguage("mr"))
	assert.Equal(t, "en", templateLanguage("hi"))
	assert.Equal(t, "Patient", patientName(" "))
	assert.Equal(t, "₹1200", formatRupees(1200))
	assert.Equal(t, 0, monthsSince(mondayMorning, mondayMorning.Add(-time.Hour)))
	assert.Equal(t, 1, monthsSince(mondayMorning, mondayMorning.AddDate(0, 0, 30)))
}
