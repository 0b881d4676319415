package intent

import (
	"strconv"
	"strings"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
)

// Input is everything classification depends on.
type Input struct {
	Text       string
	FromDoctor bool
	State      patients.ConversationState
}

// Rule is one step of the ordered classification list.
type Rule struct {
	Kind  Kind
	Match func(in Input, lower string) (Intent, bool)
}

// Classifier assigns exactly one Intent per message by evaluating its rules
// in order; the first match wins. It performs no I/O.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the standard rule list over table. A nil table uses
// DefaultTable.
func NewClassifier(table Table) *Classifier {
	if table == nil {
		table = DefaultTable()
	}
	keyword := func(kind Kind) Rule {
		return Rule{Kind: kind, Match: func(_ Input, lower string) (Intent, bool) {
			return Intent{Kind: kind}, table.Match(kind, lower)
		}}
	}
	return &Classifier{rules: []Rule{
		adminRule(AdminSearch, "/search"),
		adminRule(AdminQueue, "/queue"),
		adminRule(AdminReport, "/report"),
		adminRule(AdminNetwork, "/network"),
		{Kind: BookingResponse, Match: func(in Input, _ string) (Intent, bool) {
			return Intent{Kind: BookingResponse}, in.State != "" && in.State != patients.StateIdle
		}},
		keyword(Greeting),
		keyword(QueueStatus),
		keyword(SocialLinks),
		keyword(ReferralRequest),
		{Kind: Rating, Match: func(in Input, _ string) (Intent, bool) {
			v, ok := ParseRating(in.Text)
			return Intent{Kind: Rating, Rating: v}, ok
		}},
		keyword(HealthQuery),
	}}
}

// Classify returns the first matching intent, or Unclassified.
func (c *Classifier) Classify(in Input) Intent {
	lower := strings.ToLower(strings.TrimSpace(in.Text))
	for _, rule := range c.rules {
		if got, ok := rule.Match(in, lower); ok {
			return got
		}
	}
	return Intent{Kind: Unclassified}
}

// Order exposes the precedence list, ending with the Unclassified fallback.
func (c *Classifier) Order() []Kind {
	out := make([]Kind, 0, len(c.rules)+1)
	for _, r := range c.rules {
		out = append(out, r.Kind)
	}
	return append(out, Unclassified)
}

// adminRule matches a slash command sent from the doctor's own number. The
// command must be followed by whitespace or end the message; the remainder
// becomes the argument (possibly empty, which the admin processor answers
// with a usage hint).
func adminRule(kind Kind, command string) Rule {
	return Rule{Kind: kind, Match: func(in Input, lower string) (Intent, bool) {
		if !in.FromDoctor || !strings.HasPrefix(lower, command) {
			return Intent{}, false
		}
		rest := lower[len(command):]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			return Intent{}, false
		}
		trimmed := strings.TrimSpace(in.Text)
		arg := strings.TrimSpace(trimmed[len(command):])
		return Intent{Kind: kind, Argument: arg}, true
	}}
}

// ParseRating accepts a bare integer 1-5 (surrounding whitespace allowed).
func ParseRating(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(text)
	if err != nil || v < 1 || v > 5 {
		return 0, false
	}
	return v, true
}

// IsHealthQuery applies the health keyword heuristics from the default table.
func IsHealthQuery(text string) bool {
	return DefaultTable().Match(HealthQuery, strings.ToLower(text))
}
