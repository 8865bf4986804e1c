package imaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ImageRequest describes the full illustration pass for one story.
type ImageRequest struct {
	StoryID         string
	CharacterPrompt string
	CoverPrompt     string
	ChapterPrompts  []string
}

// Metadata summarizes how the illustration pass went. Chapter failures are
// recorded here rather than failing the whole pass.
type Metadata struct {
	TotalChapters          int      `json:"totalChapters"`
	SuccessfulChapters     int      `json:"successfulChapters"`
	UsedCharacterReference bool     `json:"usedCharacterReference"`
	Errors                 []string `json:"errors,omitempty"`
}

// ImageSet is the result of an illustration pass. ChapterImages is indexed by
// chapter position; a failed chapter leaves an empty string.
type ImageSet struct {
	CoverURL      string
	ChapterImages []string
	Metadata      Metadata
}

// Coordinator sequences the illustration pass: optional character reference,
// mandatory cover, partial-tolerant chapter images.
type Coordinator struct {
	provider Provider
	logger   *zap.Logger
}

// NewCoordinator wraps a provider.
func NewCoordinator(provider Provider, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		provider: provider,
		logger:   logger.Named("image_coordinator"),
	}
}

// GenerateAll runs the full pass. A cover failure fails the pass, and so does
// a character reference failure on a provider that declared the capability;
// chapter failures are collected into the metadata.
func (c *Coordinator) GenerateAll(ctx context.Context, req ImageRequest) (*ImageSet, error) {
	log := c.logger.With(
		zap.String("story_id", req.StoryID),
		zap.String("provider", c.provider.Name()))

	var characterRef string
	if c.provider.SupportsCharacterReference() && req.CharacterPrompt != "" {
		ref, err := c.provider.CreateCharacterReference(ctx, req.StoryID, req.CharacterPrompt)
		if err != nil {
			return nil, fmt.Errorf("character reference generation failed: %w", err)
		}
		characterRef = ref
		log.Info("character reference created", zap.String("reference", ref))
	}

	coverURL, visualLock, err := c.provider.GenerateCover(ctx, req.StoryID, req.CoverPrompt, characterRef)
	if err != nil {
		return nil, fmt.Errorf("cover generation failed: %w", err)
	}

	result := &ImageSet{
		CoverURL:      coverURL,
		ChapterImages: make([]string, len(req.ChapterPrompts)),
		Metadata: Metadata{
			TotalChapters:          len(req.ChapterPrompts),
			UsedCharacterReference: characterRef != "",
		},
	}

	for i, prompt := range req.ChapterPrompts {
		position := i + 1
		url, err := c.provider.GenerateChapterImage(ctx, req.StoryID, prompt, characterRef, visualLock, position)
		if err != nil {
			log.Warn("chapter image generation failed",
				zap.Int("position", position),
				zap.Error(err))
			result.Metadata.Errors = append(result.Metadata.Errors,
				fmt.Sprintf("chapter %d: %v", position, err))
			continue
		}
		result.ChapterImages[i] = url
		result.Metadata.SuccessfulChapters++
	}

	log.Info("illustration pass finished",
		zap.Int("total_chapters", result.Metadata.TotalChapters),
		zap.Int("successful_chapters", result.Metadata.SuccessfulChapters),
		zap.Bool("used_character_reference", result.Metadata.UsedCharacterReference))
	return result, nil
}
