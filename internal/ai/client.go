package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fable-server/internal/config"
)

// ErrGenerationFailed wraps provider-level failures of the content model.
var ErrGenerationFailed = errors.New("AI story generation failed")

// StoryParams describes one generation request to the content model. Theme,
// Language and Tone are the resolved catalog names, not ids.
type StoryParams struct {
	Theme              string
	Language           string
	Tone               string
	Synopsis           string
	ProtagonistName    string
	ProtagonistSpecies string
	ChildAge           int
	ChapterCount       int
}

// GeneratedChapter is one chapter as produced by the content model. The
// ImagePrompt feeds the illustration provider and is never shown to readers.
type GeneratedChapter struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	ImagePrompt string `json:"imagePrompt"`
}

// GeneratedStory is the structured output of one generation call.
type GeneratedStory struct {
	Title       string             `json:"title"`
	Synopsis    string             `json:"synopsis"`
	Chapters    []GeneratedChapter `json:"chapters"`
	Conclusion  string             `json:"conclusion"`
	CoverPrompt string             `json:"coverPrompt"`
}

// StoryGenerator produces a complete structured story in one call.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, params StoryParams) (*GeneratedStory, error)
}

// NewStoryGenerator selects the content model implementation from configuration.
func NewStoryGenerator(cfg *config.Config, logger *zap.Logger) (StoryGenerator, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		openaiConfig.BaseURL = cfg.AIBaseURL
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}
		logger.Info("using OpenAI story generator",
			zap.String("base_url", cfg.AIBaseURL),
			zap.String("model", cfg.AIModel))
		return &openAIGenerator{
			client: openaigo.NewClientWithConfig(openaiConfig),
			model:  cfg.AIModel,
			logger: logger.Named("openai_generator"),
		}, nil
	case "ollama":
		return newOllamaGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: '%s'", cfg.AIClientType)
	}
}

func buildSystemPrompt(params StoryParams) string {
	var b strings.Builder
	b.WriteString("You are a children's story author. Write a complete story as a single JSON object ")
	b.WriteString(`with fields: "title", "synopsis", "chapters" (array of {"title", "content", "imagePrompt"}), `)
	b.WriteString(`"conclusion" and "coverPrompt". `)
	fmt.Fprintf(&b, "The story must have exactly %d chapters. ", params.ChapterCount)
	fmt.Fprintf(&b, "Chapter titles are at most 100 characters, chapter content at most 5000 characters. ")
	fmt.Fprintf(&b, "Write in %s, for a %d year old child. ", params.Language, params.ChildAge)
	fmt.Fprintf(&b, "Theme: %s. Tone: %s. ", params.Theme, params.Tone)
	b.WriteString("Image prompts must describe the scene visually in English and keep the protagonist's appearance consistent. ")
	b.WriteString("Respond with JSON only, no markdown fences and no commentary.")
	return b.String()
}

func buildUserPrompt(params StoryParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The protagonist is %s, a %s.", params.ProtagonistName, params.ProtagonistSpecies)
	if strings.TrimSpace(params.Synopsis) != "" {
		fmt.Fprintf(&b, " The story should follow this idea: %s", params.Synopsis)
	}
	return b.String()
}
