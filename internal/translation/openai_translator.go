package translation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAITranslator translates through a general-purpose chat model. It is the
// fallback for languages the primary provider does not cover.
type OpenAITranslator struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ Provider = (*OpenAITranslator)(nil)

// NewOpenAITranslator creates a model-backed translation provider.
func NewOpenAITranslator(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *OpenAITranslator {
	cfg := openaigo.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAITranslator{
		client: openaigo.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.Named("openai_translator"),
	}
}

func (t *OpenAITranslator) Name() string { return "openai" }

func (t *OpenAITranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a translator of children's stories. Translate the user's text from %s to %s. "+
			"Keep the tone simple and warm, preserve paragraph breaks, and respond with the translation only.",
		sourceLang, targetLang)

	start := time.Now()
	resp, err := t.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model: t.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: system},
			{Role: openaigo.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("received an empty translation")
	}

	t.logger.Debug("translated text",
		zap.String("target_lang", targetLang),
		zap.Int("chars", len(text)),
		zap.Duration("duration", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}
