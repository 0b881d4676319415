package knowledge

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// DefaultFAQThreshold is the share of qualifying question words that must
// appear in a message (strictly more than) for an administrative match.
const DefaultFAQThreshold = 0.5

// minQuestionWordLen: only question words longer than this count toward the threshold.
const minQuestionWordLen = 3

// Resolver looks up doctor-authored answers before any generation call.
type Resolver struct {
	store     Store
	threshold float64
	logger    *logging.Logger
	metrics   *metrics.BotMetrics
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithFAQThreshold overrides the administrative match threshold.
func WithFAQThreshold(threshold float64) Option {
	return func(r *Resolver) {
		if threshold > 0 && threshold < 1 {
			r.threshold = threshold
		}
	}
}

// WithLogger sets the logger used for swallowed store errors.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.BotMetrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver builds a resolver over store.
func NewResolver(store Store, opts ...Option) *Resolver {
	if store == nil {
		panic("knowledge: store required")
	}
	r := &Resolver{store: store, threshold: DefaultFAQThreshold, logger: logging.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveMedical returns the highest-priority medical entry with a keyword
// contained in text. Store errors are logged and reported as no match.
func (r *Resolver) ResolveMedical(ctx context.Context, text, doctorID string) (*Entry, bool) {
	entries, ok := r.load(ctx, doctorID, CategoryMedical)
	if !ok {
		return nil, false
	}
	lower := strings.ToLower(text)
	for _, e := range entries {
		for _, kw := range e.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				r.metrics.ObserveKnowledge(string(CategoryMedical), true, nil)
				hit := e
				return &hit, true
			}
		}
	}
	r.metrics.ObserveKnowledge(string(CategoryMedical), false, nil)
	return nil, false
}

// ResolveAdministrative returns the highest-priority FAQ entry whose
// qualifying question words appear in text above the threshold.
func (r *Resolver) ResolveAdministrative(ctx context.Context, text, doctorID string) (*Entry, bool) {
	entries, ok := r.load(ctx, doctorID, CategoryAdministrative)
	if !ok {
		return nil, false
	}
	lower := strings.ToLower(text)
	for _, e := range entries {
		if MatchesQuestion(lower, e.Question, r.threshold) {
			r.metrics.ObserveKnowledge(string(CategoryAdministrative), true, nil)
			hit := e
			return &hit, true
		}
	}
	r.metrics.ObserveKnowledge(string(CategoryAdministrative), false, nil)
	return nil, false
}

func (r *Resolver) load(ctx context.Context, doctorID string, category Category) ([]Entry, bool) {
	entries, err := r.store.Entries(ctx, doctorID, category)
	if err != nil {
		r.logger.Warn("knowledge lookup failed, falling through", "doctor_id", doctorID, "category", category, "error", err)
		r.metrics.ObserveKnowledge(string(category), false, err)
		return nil, false
	}
	return byPriority(entries), true
}

// MatchesQuestion reports whether more than threshold of the question's
// qualifying words occur in lowerText. A question with no qualifying words
// never matches.
func MatchesQuestion(lowerText, question string, threshold float64) bool {
	words := questionWords(question)
	if len(words) == 0 {
		return false
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(lowerText, w) {
			matched++
		}
	}
	return float64(matched) > float64(len(words))*threshold
}

func questionWords(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r))
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minQuestionWordLen {
			out = append(out, f)
		}
	}
	return out
}
