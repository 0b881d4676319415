package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type stubGenerator struct {
	text      string
	err       error
	block     bool
	prompts   []string
	imageMIME string
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func (s *stubGenerator) GenerateFromImage(ctx context.Context, prompt string, _ []byte, mimeType string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.imageMIME = mimeType
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func TestHealthAdviceReturnsGeneratedTextVerbatim(t *testing.T) {
	answer := "I understand your concern. Rest and hydrate. " + AppointmentCloser
	gen := &stubGenerator{text: answer}
	a := NewAdvisor(gen)

	got := a.HealthAdvice(context.Background(), "I have a headache", "Sunrise Clinic")

	assert.Equal(t, answer, got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Sunrise Clinic")
	assert.Contains(t, gen.prompts[0], "Patient Query: I have a headache")
	assert.Contains(t, gen.prompts[0], AppointmentCloser)
}

func TestHealthAdviceDefaultsClinicName(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	NewAdvisor(gen).HealthAdvice(context.Background(), "cough", "  ")
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "for our clinic.")
}

func TestHealthAdviceEmptyInputSkipsGenerator(t *testing.T) {
	gen := &stubGenerator{text: "unused"}
	got := NewAdvisor(gen).HealthAdvice(context.Background(), "   \n", "Clinic")
	assert.Equal(t, MsgDescribeConcern, got)
	assert.Empty(t, gen.prompts)
}

func TestHealthAdviceFailureMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"missing credential", ErrMissingCredential, MsgUnableToProcess},
		{"quota status", &googleapi.Error{Code: 429, Message: "slow down"}, MsgHighDemand},
		{"quota text", errors.New("rpc error: RESOURCE_EXHAUSTED"), MsgHighDemand},
		{"auth status", fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 403}), MsgUnableToProcess},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), MsgTakingTooLong},
		{"generic", errors.New("connection reset"), MsgCouldNotProcess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAdvisor(&stubGenerator{err: tc.err})
			assert.Equal(t, tc.want, a.HealthAdvice(context.Background(), "fever", "Clinic"))
		})
	}
}

func TestHealthAdviceNilGenerator(t *testing.T) {
	a := NewAdvisor(nil)
	assert.Equal(t, MsgUnableToProcess, a.HealthAdvice(context.Background(), "fever", "Clinic"))
	assert.Equal(t, MsgImageUnavailable, a.AnalyzeImage(context.Background(), []byte{1}, "image/png"))
}

func TestHealthAdviceEnforcesTimeout(t *testing.T) {
	a := NewAdvisor(&stubGenerator{block: true}, WithTimeouts(20*time.Millisecond, 0))

	start := time.Now()
	got := a.HealthAdvice(context.Background(), "fever", "Clinic")

	assert.Equal(t, MsgTakingTooLong, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAnalyzeImage(t *testing.T) {
	gen := &stubGenerator{text: "📋 Report Type: Blood test"}
	a := NewAdvisor(gen)

	got := a.AnalyzeImage(context.Background(), []byte{0xff, 0xd8}, "")
	assert.Equal(t, "📋 Report Type: Blood test", got)
	assert.Equal(t, "image/jpeg", gen.imageMIME)
	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.HasPrefix(gen.prompts[0], "You are an expert medical assistant"))

	assert.Equal(t, MsgImageEmpty, a.AnalyzeImage(context.Background(), nil, "image/png"))
}

func TestAnalyzeImageFailures(t *testing.T) {
	a := NewAdvisor(&stubGenerator{err: &googleapi.Error{Code: 429}})
	assert.Equal(t, MsgImageHighDemand, a.AnalyzeImage(context.Background(), []byte{1}, "image/png"))

	a = NewAdvisor(&stubGenerator{block: true}, WithTimeouts(0, 20*time.Millisecond))
	assert.Equal(t, MsgImageTakingTooLong, a.AnalyzeImage(context.Background(), []byte{1}, "image/png"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailureNone, Classify(nil))
	assert.Equal(t, FailureQuota, Classify(errors.New("Quota exceeded for model")))
	assert.Equal(t, FailureMissingCredential, Classify(errors.New("API key not valid")))
	assert.Equal(t, FailureTimeout, Classify(errors.New("request timed out")))
	assert.Equal(t, FailureGeneric, Classify(ErrEmptyResponse))
}

func TestRandomHealthTip(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Contains(t, HealthTips, RandomHealthTip())
	}
}
