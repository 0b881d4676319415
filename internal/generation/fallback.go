package generation

import (
	"context"

	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// FallbackGenerator wraps a primary generator with a fallback provider.
// If the primary fails, the request is retried once on the fallback.
type FallbackGenerator struct {
	primary  Generator
	fallback Generator
	logger   *logging.Logger
}

// NewFallbackGenerator returns primary alone when fallback is nil.
func NewFallbackGenerator(primary, fallback Generator, logger *logging.Logger) *FallbackGenerator {
	if primary == nil {
		panic("generation: primary generator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackGenerator{primary: primary, fallback: fallback, logger: logger}
}

func (f *FallbackGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.run(ctx, "text", func(g Generator) (string, error) {
		return g.GenerateText(ctx, prompt)
	})
}

func (f *FallbackGenerator) GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return f.run(ctx, "vision", func(g Generator) (string, error) {
		return g.GenerateFromImage(ctx, prompt, image, mimeType)
	})
}

func (f *FallbackGenerator) run(ctx context.Context, op string, call func(Generator) (string, error)) (string, error) {
	out, err := call(f.primary)
	if err == nil {
		return out, nil
	}
	f.logger.Warn("primary generator failed, attempting fallback",
		"operation", op,
		"error", err.Error(),
		"fallback_available", f.fallback != nil,
	)
	// A deadline already spent on the primary leaves nothing for the fallback.
	if f.fallback == nil || ctx.Err() != nil {
		return "", err
	}

	out, fallbackErr := call(f.fallback)
	if fallbackErr != nil {
		f.logger.Error("fallback generator also failed",
			"operation", op,
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return "", fallbackErr
	}
	f.logger.Info("fallback generator succeeded after primary failure", "operation", op)
	return out, nil
}
