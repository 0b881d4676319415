package booking

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	dayAfterTomorrow = regexp.MustCompile(`(?i)\bday\s+after\s+(?:tomorrow|tmr)\b`)
	// "may I come..." would otherwise be read as the month of May.
	mayModal     = regexp.MustCompile(`(?i)\bmay\s+(?:i|we)\b`)
	monthName    = regexp.MustCompile(`(?i)(?:\W|^)` + en.MONTH_OFFSET_PATTERN + `(?:\W|$)`)
	explicitYear = regexp.MustCompile(`\b(20\d{2})\b`)
)

// Parser extracts a single date/time from free text such as "tomorrow 3pm",
// "next monday 10am" or "Feb 15 at 2:30pm".
type Parser struct {
	w *when.Parser
}

func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	w.Use(func(s string) (string, error) {
		return mayModal.ReplaceAllString(s, " "), nil
	})
	return &Parser{w: w}
}

// Parse resolves text relative to base. The result carries base's location.
// A month and day without a year that has already passed this year means the
// next occurrence; "day after tomorrow" is two days after base.
func (p *Parser) Parse(text string, base time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	if loc := dayAfterTomorrow.FindStringIndex(text); loc != nil {
		shifted := base.AddDate(0, 0, 2)
		rest := strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
		if rest == "" {
			return shifted, true
		}
		r, err := p.w.Parse(rest, shifted)
		if err != nil || r == nil {
			return shifted, true
		}
		return r.Time, true
	}

	r, err := p.w.Parse(text, base)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	t := r.Time
	if !monthName.MatchString(r.Text) {
		return t, true
	}
	if m := explicitYear.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()), true
	}
	if t.Before(base) {
		t = t.AddDate(1, 0, 0)
	}
	return t, true
}
