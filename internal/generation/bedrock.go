package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockGenerator implements Generator over the Bedrock Converse API.
type BedrockGenerator struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockGenerator(api bedrockConverseAPI, modelID string) *BedrockGenerator {
	if api == nil {
		panic("generation: bedrock converse client cannot be nil")
	}
	return &BedrockGenerator{api: api, modelID: modelID}
}

func (g *BedrockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.converse(ctx, []brtypes.ContentBlock{
		&brtypes.ContentBlockMemberText{Value: prompt},
	}, 800, 0.8)
}

func (g *BedrockGenerator) GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	format, err := bedrockImageFormat(mimeType)
	if err != nil {
		return "", err
	}
	return g.converse(ctx, []brtypes.ContentBlock{
		&brtypes.ContentBlockMemberText{Value: prompt},
		&brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
			Format: format,
			Source: &brtypes.ImageSourceMemberBytes{Value: image},
		}},
	}, 1000, 0.5)
}

func (g *BedrockGenerator) converse(ctx context.Context, content []brtypes.ContentBlock, maxTokens int32, temperature float32) (string, error) {
	if strings.TrimSpace(g.modelID) == "" {
		return "", ErrMissingCredential
	}
	out, err := g.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.modelID),
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: content,
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(temperature),
			TopP:        aws.Float32(0.95),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation: bedrock converse: %w", err)
	}
	return bedrockText(out)
}

func bedrockText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", ErrEmptyResponse
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("generation: bedrock response did not include a message output")
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func bedrockImageFormat(mimeType string) (brtypes.ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg", "":
		return brtypes.ImageFormatJpeg, nil
	case "image/png":
		return brtypes.ImageFormatPng, nil
	case "image/webp":
		return brtypes.ImageFormatWebp, nil
	case "image/gif":
		return brtypes.ImageFormatGif, nil
	default:
		return "", fmt.Errorf("generation: unsupported image type %q", mimeType)
	}
}
