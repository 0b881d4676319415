package reminders

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
)

// Pre-approved template names registered with Meta.
const (
	TemplateAppointmentReminder = "appointment_reminder"
	TemplatePaymentReminder     = "payment_reminder"
	TemplateCheckupRecall       = "checkup_recall"
)

// bodyParams builds the single body component every reminder template uses.
func bodyParams(values ...string) []whatsapp.TemplateComponent {
	params := make([]whatsapp.TemplateParameter, 0, len(values))
	for _, v := range values {
		params = append(params, whatsapp.TemplateParameter{Type: "text", Text: v})
	}
	return []whatsapp.TemplateComponent{{Type: "body", Parameters: params}}
}

func patientName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Patient"
	}
	return name
}

// templateLanguage maps a stored preference to a template language code.
func templateLanguage(lang string) string {
	if lang == dispatch.LangMarathi {
		return dispatch.LangMarathi
	}
	return "en"
}

// formatVisitTime renders "20 Oct, 03:00 PM" in loc.
func formatVisitTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2 Jan, 03:04 PM")
}

func formatRupees(amount float64) string {
	return "₹" + strconv.FormatFloat(amount, 'f', -1, 64)
}

// monthsSince counts whole 30-day months.
func monthsSince(from, now time.Time) int {
	days := int(now.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / 30
}

func appointmentReminder(v Visit, loc *time.Location) []whatsapp.TemplateComponent {
	return bodyParams(patientName(v.PatientName), formatVisitTime(v.Time, loc), v.Clinic())
}

func paymentReminder(v Visit) []whatsapp.TemplateComponent {
	return bodyParams(patientName(v.PatientName), formatRupees(v.Balance), v.Clinic())
}

func checkupRecall(l Lapsed, now time.Time) []whatsapp.TemplateComponent {
	return bodyParams(patientName(l.PatientName), fmt.Sprintf("%d months", monthsSince(l.LastSeenAt, now)), l.Clinic())
}

// recallPrompt follows the recall template with a one-tap booking button.
func recallPrompt(clinic string) (string, []whatsapp.Button) {
	body := fmt.Sprintf("Would you like to book your checkup at %s?", clinic)
	return body, []whatsapp.Button{{ID: dispatch.QuickBook, Title: "📅 Book Now"}}
}

func healthTipMessage(name, tip, clinic string) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s! 👋\n\n%s\n\nStay healthy! 💚\n- %s", name, tip, clinic)
}
