package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// Category separates symptom advice from administrative FAQ answers.
type Category string

const (
	CategoryMedical        Category = "medical"
	CategoryAdministrative Category = "administrative"
)

// Entry is a doctor-authored canned answer.
type Entry struct {
	ID       string   `json:"id"`
	DoctorID string   `json:"doctor_id"`
	Category Category `json:"category"`
	// Medical entries.
	Symptom  string   `json:"symptom,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Advice   string   `json:"advice,omitempty"`
	// Administrative entries.
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`

	Priority int  `json:"priority"`
	Active   bool `json:"is_active"`
}

// Validate checks that e carries the fields its category is matched on.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.DoctorID) == "" {
		return fmt.Errorf("%w: doctor_id required", ErrInvalidEntry)
	}
	switch e.Category {
	case CategoryMedical:
		if strings.TrimSpace(e.Advice) == "" || len(e.Keywords) == 0 {
			return fmt.Errorf("%w: medical entries need keywords and advice", ErrInvalidEntry)
		}
	case CategoryAdministrative:
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			return fmt.Errorf("%w: administrative entries need question and answer", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidEntry, e.Category)
	}
	return nil
}

// byPriority orders entries highest priority first; ties keep store order.
func byPriority(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
