package imaging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"fable-server/internal/config"
)

// NewProvider selects the image provider implementation from configuration.
func NewProvider(cfg *config.Config, logger *zap.Logger) (Provider, error) {
	switch strings.ToLower(cfg.ImageProvider) {
	case "openai":
		return NewOpenAIProvider(cfg.AIAPIKey, cfg.PromptStyleSuffix, cfg.AITimeout, logger), nil
	case "sana":
		return NewSanaProvider(cfg.SanaServerURL, cfg.SanaTimeout,
			cfg.ImageSavePath, cfg.ImagePublicBaseURL, cfg.PromptStyleSuffix, logger)
	default:
		return nil, fmt.Errorf("unknown image provider: '%s'", cfg.ImageProvider)
	}
}
