package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type openAIGenerator struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ StoryGenerator = (*openAIGenerator)(nil)

func (g *openAIGenerator) GenerateStory(ctx context.Context, params StoryParams) (*GeneratedStory, error) {
	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: buildSystemPrompt(params)},
		{Role: openaigo.ChatMessageRoleUser, Content: buildUserPrompt(params)},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	duration := time.Since(start)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error"}).Inc()
		g.logger.Error("content model request failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error_empty_response"}).Inc()
		return nil, fmt.Errorf("%w: received an empty response", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": g.model}).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		aiTotalTokens.With(prometheus.Labels{"model": g.model}).Observe(float64(resp.Usage.TotalTokens))
	}

	g.logger.Info("content model response received",
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	story, err := ParseGeneratedStory(resp.Choices[0].Message.Content)
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error_parse"}).Inc()
		return nil, err
	}
	return story, nil
}
