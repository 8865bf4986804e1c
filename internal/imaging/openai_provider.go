package imaging

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider generates images with DALL-E. The API offers no character
// reference mechanism, so visual consistency relies on the prompts alone and
// SupportsCharacterReference reports false.
type OpenAIProvider struct {
	client            *openaigo.Client
	promptStyleSuffix string
	logger            *zap.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a DALL-E backed image provider.
func NewOpenAIProvider(apiKey, promptStyleSuffix string, timeout time.Duration, logger *zap.Logger) *OpenAIProvider {
	cfg := openaigo.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIProvider{
		client:            openaigo.NewClientWithConfig(cfg),
		promptStyleSuffix: promptStyleSuffix,
		logger:            logger.Named("openai_image_provider"),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) SupportsCharacterReference() bool { return false }

func (p *OpenAIProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("OpenAI API is unreachable: %w", err)
	}
	return nil
}

func (p *OpenAIProvider) CreateCharacterReference(ctx context.Context, storyID, prompt string) (string, error) {
	return "", fmt.Errorf("%w: provider does not support character references", ErrImageGenerationFailed)
}

// GenerateCover renders the cover and returns DALL-E's revised prompt as the
// visual lock: it describes the character as actually drawn, which chapter
// prompts reuse verbatim.
func (p *OpenAIProvider) GenerateCover(ctx context.Context, storyID, prompt, characterRef string) (string, string, error) {
	return p.generate(ctx, prompt, openaigo.CreateImageSize1024x1792)
}

func (p *OpenAIProvider) GenerateChapterImage(ctx context.Context, storyID, prompt, characterRef, visualLock string, position int) (string, error) {
	if visualLock != "" {
		prompt = fmt.Sprintf("%s. The main character must match this description: %s", prompt, visualLock)
	}
	url, _, err := p.generate(ctx, prompt, openaigo.CreateImageSize1792x1024)
	return url, err
}

func (p *OpenAIProvider) generate(ctx context.Context, prompt, size string) (string, string, error) {
	start := time.Now()
	resp, err := p.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt + p.promptStyleSuffix,
		Model:          openaigo.CreateImageModelDallE3,
		N:              1,
		Size:           size,
		ResponseFormat: openaigo.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", "", fmt.Errorf("%w: API returned no image", ErrImageGenerationFailed)
	}

	p.logger.Info("image generated",
		zap.String("size", size),
		zap.Duration("duration", time.Since(start)))
	return resp.Data[0].URL, resp.Data[0].RevisedPrompt, nil
}
