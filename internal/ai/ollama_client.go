package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"fable-server/internal/config"
)

type ollamaGenerator struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ StoryGenerator = (*ollamaGenerator)(nil)

func newOllamaGenerator(cfg *config.Config, logger *zap.Logger) (StoryGenerator, error) {
	// api.NewClient expects the server root without the /v1 suffix.
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.AIBaseURL, "/v1"), "/")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL '%s': %w", baseURL, err)
	}
	client := api.NewClient(parsedURL, &http.Client{Timeout: cfg.AITimeout})

	logger.Info("using Ollama story generator",
		zap.String("base_url", baseURL),
		zap.String("model", cfg.AIModel))
	return &ollamaGenerator{
		client:  client,
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger.Named("ollama_generator"),
	}, nil
}

func (g *ollamaGenerator) GenerateStory(ctx context.Context, params StoryParams) (*GeneratedStory, error) {
	stream := false
	req := &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: buildSystemPrompt(params)},
			{Role: "user", Content: buildUserPrompt(params)},
		},
		Format: []byte(`"json"`),
		Stream: &stream,
	}

	requestCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	var resp api.ChatResponse
	err := g.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error"}).Inc()
		g.logger.Error("content model request failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error_empty_response"}).Inc()
		return nil, fmt.Errorf("%w: received an empty response", ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": g.model}).Observe(duration.Seconds())
	if total := resp.PromptEvalCount + resp.EvalCount; total > 0 {
		aiTotalTokens.With(prometheus.Labels{"model": g.model}).Observe(float64(total))
	}

	g.logger.Info("content model response received",
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.PromptEvalCount+resp.EvalCount))

	story, err := ParseGeneratedStory(resp.Message.Content)
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"model": g.model, "status": "error_parse"}).Inc()
		return nil, err
	}
	return story, nil
}
