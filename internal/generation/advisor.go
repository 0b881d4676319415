package generation

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/observability/metrics"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	DefaultTextTimeout   = 10 * time.Second
	DefaultVisionTimeout = 30 * time.Second
)

// Patient-facing replies for the text path.
const (
	MsgDescribeConcern = "Please describe your health concern, and I'll try to help."
	MsgUnableToProcess = "I'm currently unable to process your query. Please type 'Hi' to see the menu or book an appointment."
	MsgHighDemand      = "I'm experiencing high demand right now. Please type 'Hi' to see the menu or book an appointment directly."
	MsgTakingTooLong   = "I'm taking too long to respond. Please type 'Hi' to see the menu."
	MsgCouldNotProcess = "I couldn't process your question right now. Please type 'Hi' to see the menu or book an appointment."
)

// Patient-facing replies for the image path.
const (
	MsgImageEmpty         = "I couldn't analyze this image. Please try uploading a clearer photo."
	MsgImageUnavailable   = "I'm currently unable to analyze images. Please type 'Hi' to see the menu."
	MsgImageHighDemand    = "I'm experiencing high demand right now. Please try again in a few minutes."
	MsgImageTakingTooLong = "The image analysis is taking too long. Please try with a smaller image or try again later."
	MsgImageFailed        = "I couldn't analyze this image. Please try again or type 'Hi' to see the menu."
)

var textMessages = map[FailureKind]string{
	FailureMissingCredential: MsgUnableToProcess,
	FailureQuota:             MsgHighDemand,
	FailureTimeout:           MsgTakingTooLong,
	FailureGeneric:           MsgCouldNotProcess,
}

var imageMessages = map[FailureKind]string{
	FailureMissingCredential: MsgImageUnavailable,
	FailureQuota:             MsgImageHighDemand,
	FailureTimeout:           MsgImageTakingTooLong,
	FailureGeneric:           MsgImageFailed,
}

// Advisor wraps a Generator with the clinic prompts and turns every failure
// into a reply the patient can read. It never returns an error.
type Advisor struct {
	generator     Generator
	textTimeout   time.Duration
	visionTimeout time.Duration
	logger        *logging.Logger
	metrics       *metrics.BotMetrics
	now           func() time.Time
}

type AdvisorOption func(*Advisor)

// WithTimeouts overrides the hard per-call deadlines.
func WithTimeouts(text, vision time.Duration) AdvisorOption {
	return func(a *Advisor) {
		if text > 0 {
			a.textTimeout = text
		}
		if vision > 0 {
			a.visionTimeout = vision
		}
	}
}

func WithLogger(logger *logging.Logger) AdvisorOption {
	return func(a *Advisor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) AdvisorOption {
	return func(a *Advisor) { a.metrics = m }
}

// NewAdvisor builds an Advisor. A nil generator is allowed and behaves as a
// missing credential on every call.
func NewAdvisor(generator Generator, opts ...AdvisorOption) *Advisor {
	a := &Advisor{
		generator:     generator,
		textTimeout:   DefaultTextTimeout,
		visionTimeout: DefaultVisionTimeout,
		logger:        logging.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HealthAdvice answers a free-text health question.
func (a *Advisor) HealthAdvice(ctx context.Context, text, clinicName string) string {
	if strings.TrimSpace(text) == "" {
		return MsgDescribeConcern
	}
	if a.generator == nil {
		a.record("text", FailureMissingCredential, 0)
		a.logger.Error("generation credentials not configured", "operation", "text")
		return textMessages[FailureMissingCredential]
	}

	ctx, cancel := context.WithTimeout(ctx, a.textTimeout)
	defer cancel()

	start := a.now()
	out, err := a.generator.GenerateText(ctx, HealthAdvicePrompt(clinicName, text))
	elapsed := a.now().Sub(start)
	if err != nil {
		kind := Classify(err)
		a.record("text", kind, elapsed)
		a.logger.Warn("health advice generation failed", "kind", kind, "error", err)
		return textMessages[kind]
	}
	a.record("text", FailureNone, elapsed)
	return out
}

// AnalyzeImage runs the report-analysis prompt over an uploaded image.
func (a *Advisor) AnalyzeImage(ctx context.Context, image []byte, mimeType string) string {
	if len(image) == 0 {
		return MsgImageEmpty
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if a.generator == nil {
		a.record("vision", FailureMissingCredential, 0)
		a.logger.Error("generation credentials not configured", "operation", "vision")
		return imageMessages[FailureMissingCredential]
	}

	ctx, cancel := context.WithTimeout(ctx, a.visionTimeout)
	defer cancel()

	start := a.now()
	out, err := a.generator.GenerateFromImage(ctx, ReportAnalysisPrompt, image, mimeType)
	elapsed := a.now().Sub(start)
	if err != nil {
		kind := Classify(err)
		a.record("vision", kind, elapsed)
		a.logger.Warn("image analysis failed", "kind", kind, "mime_type", mimeType, "error", err)
		return imageMessages[kind]
	}
	a.record("vision", FailureNone, elapsed)
	return out
}

func (a *Advisor) record(op string, kind FailureKind, elapsed time.Duration) {
	outcome := "success"
	if kind != FailureNone {
		outcome = string(kind)
	}
	a.metrics.ObserveGeneration(op, outcome, elapsed.Seconds())
}
