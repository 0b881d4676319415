package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/whatsapp-clinic-bot/internal/config"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/generation"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// BuildGenerator wires Gemini as the primary generator and Bedrock as its
// fallback. Either may be missing; with neither configured it returns a nil
// generator and the Advisor answers every call with the missing-credential copy.
// The returned closer is never nil.
func BuildGenerator(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (generation.Generator, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		primary generation.Generator
		closer  = noop
	)
	gemini, err := generation.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	switch {
	case err == nil:
		primary = gemini
		closer = func() { _ = gemini.Close() }
	case errors.Is(err, generation.ErrMissingCredential):
		logger.Warn("no Gemini API key configured")
	default:
		return nil, noop, fmt.Errorf("bootstrap: gemini: %w", err)
	}

	var fallback generation.Generator
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		if awsCfg == nil {
			logger.Warn("bedrock model configured without AWS config; skipping", "model", model)
		} else {
			fallback = generation.NewBedrockGenerator(bedrockruntime.NewFromConfig(*awsCfg), model)
		}
	}

	switch {
	case primary != nil && fallback != nil:
		logger.Info("generation enabled", "primary", "gemini", "fallback", "bedrock")
		return generation.NewFallbackGenerator(primary, fallback, logger), closer, nil
	case primary != nil:
		logger.Info("generation enabled", "primary", "gemini")
		return primary, closer, nil
	case fallback != nil:
		logger.Info("generation enabled", "primary", "bedrock")
		return fallback, closer, nil
	default:
		logger.Warn("no generator configured; health questions get the unavailable reply")
		return nil, closer, nil
	}
}
