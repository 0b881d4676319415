package generation

import (
	"context"
	"errors"
)

// Generator produces free text from a prompt, optionally grounded on an image.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

var (
	// ErrMissingCredential is returned when no generator credentials are configured.
	ErrMissingCredential = errors.New("generation: missing credential")
	// ErrEmptyResponse is returned when the provider answered with no text.
	ErrEmptyResponse = errors.New("generation: empty response")
)
