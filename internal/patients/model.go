package patients

import (
	"strings"
	"time"
	"unicode"
)

// ConversationState is the persisted multi-turn dialog tag for a patient.
type ConversationState string

const (
	StateIdle               ConversationState = "idle"
	StateBookingAppointment ConversationState = "booking_appointment"
)

// Booking sub-steps stored in StateData.Step.
const (
	StepAwaitingDateTime = "awaiting_datetime"
)

// StateData is the payload attached to a non-idle conversation state.
type StateData struct {
	Step      string            `json:"step,omitempty"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IsZero reports whether the payload carries nothing.
func (d StateData) IsZero() bool {
	return d.Step == "" && d.StartedAt == nil && len(d.Metadata) == 0
}

// Patient is a WhatsApp contact of one doctor, keyed by normalized phone.
type Patient struct {
	ID            string            `json:"id"`
	DoctorID      string            `json:"doctor_id"`
	PhoneNumber   string            `json:"phone_number"`
	Name          string            `json:"name,omitempty"`
	Language      string            `json:"preferred_language"`
	State         ConversationState `json:"conversation_state"`
	StateData     StateData         `json:"conversation_data"`
	BotPaused     bool              `json:"bot_paused"`
	LastSeenAt    time.Time         `json:"last_seen_at"`
	ReferralCode  string            `json:"referral_code,omitempty"`
	ReferralCount int               `json:"referral_count"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsIdle reports whether no multi-turn flow is active.
func (p *Patient) IsIdle() bool {
	return p == nil || p.State == "" || p.State == StateIdle
}

// DisplayName falls back to "there" for greetings when no profile name is known.
func (p *Patient) DisplayName() string {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return "there"
	}
	return strings.TrimSpace(p.Name)
}

// NormalizePhone strips whitespace, dashes and parentheses.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '-', r == '(', r == ')':
			return -1
		default:
			return r
		}
	}, phone)
}

// MaskPhone keeps the first six characters of a phone for doctor-facing digests.
func MaskPhone(phone string) string {
	if len(phone) <= 6 {
		return phone
	}
	return phone[:6] + "..."
}

// GenerateReferralCode builds the fallback referral code: the first three
// letters of the name (uppercased, letters only) followed by the last four
// digits of the phone number.
func GenerateReferralCode(name, phone string) string {
	var letters strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			letters.WriteRune(unicode.ToUpper(r))
			if letters.Len() == 3 {
				break
			}
		}
	}
	prefix := letters.String()
	if prefix == "" {
		prefix = "PAT"
	}

	var digits []rune
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return prefix + string(digits)
}
