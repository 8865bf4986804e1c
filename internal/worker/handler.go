package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/ai"
	"fable-server/internal/imaging"
	"fable-server/internal/messaging"
	"fable-server/internal/models"
	"fable-server/internal/repository"
	"fable-server/internal/translation"
)

// Translator is the slice of the translation router the handler needs.
type Translator interface {
	Route(targetLang string) translation.RouteDecision
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	TranslateBatch(ctx context.Context, items []translation.BatchItem, sourceLang string) ([]string, error)
}

// ImageCoordinator runs the illustration pass for one story.
type ImageCoordinator interface {
	GenerateAll(ctx context.Context, req imaging.ImageRequest) (*imaging.ImageSet, error)
}

// generationSourceLang is the language the content model writes in when the
// target language needs a post-hoc translation pass.
const generationSourceLang = "EN"

// Handler executes generation jobs delivered by the queue. Errors it returns
// are transient unless wrapped with messaging.Permanent.
type Handler struct {
	stories    repository.StoryRepository
	settings   repository.SettingsRepository
	generator  ai.StoryGenerator
	translator Translator
	images     ImageCoordinator
	logger     *zap.Logger
}

var _ messaging.TaskHandler = (*Handler)(nil)

// NewHandler wires the worker-side pipeline.
func NewHandler(
	stories repository.StoryRepository,
	settings repository.SettingsRepository,
	generator ai.StoryGenerator,
	translator Translator,
	images ImageCoordinator,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		stories:    stories,
		settings:   settings,
		generator:  generator,
		translator: translator,
		images:     images,
		logger:     logger.Named("generation_handler"),
	}
}

// Handle runs the full pipeline: content, translation, illustration,
// completion. The aggregate is re-loaded from storage; the payload carries
// only ids and prompt inputs.
func (h *Handler) Handle(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	start := time.Now()
	err := h.handle(ctx, payload)
	status := "success"
	if err != nil {
		status = "error"
		if messaging.IsPermanent(err) {
			status = "permanent_error"
		}
	}
	jobsTotal.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return err
}

func (h *Handler) handle(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	log := h.logger.With(
		zap.String("job_id", payload.JobID),
		zap.String("story_id", payload.StoryID))

	storyID, err := uuid.Parse(payload.StoryID)
	if err != nil {
		return messaging.Permanent(fmt.Errorf("invalid story id '%s': %w", payload.StoryID, err))
	}

	story, err := h.stories.GetByID(ctx, storyID)
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			return messaging.Permanent(err)
		}
		return err
	}

	if story.GenerationStatus.IsTerminal() {
		log.Info("story already in a terminal status, nothing to do",
			zap.String("status", string(story.GenerationStatus)))
		return nil
	}
	if story.GenerationStatus == models.GenerationPending {
		// dispatch raced the processing write; the redelivery will find it
		return fmt.Errorf("story %s is still pending, not yet handed over", storyID)
	}

	theme, language, tone, err := h.resolveCatalog(ctx, payload)
	if err != nil {
		return err
	}

	// generate natively when the model writes the target language, in the
	// source language plus a translation pass otherwise
	route := h.translator.Route(language.Code)
	generationLanguage := language.Name
	if route != translation.RouteNone {
		generationLanguage = "English"
	}

	generated, err := h.generator.GenerateStory(ctx, ai.StoryParams{
		Theme:              theme.Name,
		Language:           generationLanguage,
		Tone:               tone.Name,
		Synopsis:           payload.Synopsis,
		ProtagonistName:    payload.ProtagonistName,
		ProtagonistSpecies: payload.ProtagonistSpecies,
		ChildAge:           payload.ChildAge,
		ChapterCount:       payload.ChapterCount,
	})
	if err != nil {
		return err
	}
	if len(generated.Chapters) != story.RequestedChapters {
		return messaging.Permanent(fmt.Errorf("%w: generated %d chapters, requested %d",
			models.ErrInvalidInput, len(generated.Chapters), story.RequestedChapters))
	}

	if route != translation.RouteNone {
		if err := h.translateStory(ctx, generated, language.Code); err != nil {
			return err
		}
	}

	chapterPrompts := make([]string, len(generated.Chapters))
	for i, ch := range generated.Chapters {
		chapterPrompts[i] = ch.ImagePrompt
	}
	imageSet, err := h.images.GenerateAll(ctx, imaging.ImageRequest{
		StoryID:         story.ID.String(),
		CharacterPrompt: fmt.Sprintf("%s, a %s", payload.ProtagonistName, payload.ProtagonistSpecies),
		CoverPrompt:     generated.CoverPrompt,
		ChapterPrompts:  chapterPrompts,
	})
	if err != nil {
		return fmt.Errorf("illustration pass failed: %w", err)
	}
	if imageSet.Metadata.SuccessfulChapters < imageSet.Metadata.TotalChapters {
		log.Warn("some chapter images are missing",
			zap.Int("successful", imageSet.Metadata.SuccessfulChapters),
			zap.Int("total", imageSet.Metadata.TotalChapters),
			zap.Strings("errors", imageSet.Metadata.Errors))
	}

	chapters, err := chaptersFromGenerated(generated.Chapters, imageSet.ChapterImages)
	if err != nil {
		return messaging.Permanent(err)
	}
	if err := story.CompleteGeneration(chapters, imageSet.CoverURL, generated.Conclusion, generated.Title); err != nil {
		return messaging.Permanent(err)
	}
	if err := h.stories.UpdateGeneration(ctx, story); err != nil {
		return err
	}

	log.Info("story generation completed",
		zap.String("title", story.Title),
		zap.Int("chapters", len(story.Chapters)))
	return nil
}

// HandleFailure records the terminal failure on the aggregate. If the story
// has moved on from processing in the meantime the mismatch is logged and
// nothing is overwritten.
func (h *Handler) HandleFailure(ctx context.Context, payload messaging.GenerationTaskPayload, reason string) {
	log := h.logger.With(
		zap.String("job_id", payload.JobID),
		zap.String("story_id", payload.StoryID))

	storyID, err := uuid.Parse(payload.StoryID)
	if err != nil {
		log.Error("cannot record failure: invalid story id", zap.Error(err))
		return
	}
	story, err := h.stories.GetByID(ctx, storyID)
	if err != nil {
		log.Error("cannot record failure: story load failed", zap.Error(err))
		return
	}

	if !story.FailGeneration(reason) {
		log.Warn("failure outside processing ignored",
			zap.String("current_status", string(story.GenerationStatus)))
		return
	}
	if err := h.stories.UpdateGeneration(ctx, story); err != nil {
		log.Error("failed to persist generation failure", zap.Error(err))
		return
	}
	log.Info("generation marked failed", zap.String("reason", reason))
}

func (h *Handler) resolveCatalog(ctx context.Context, payload messaging.GenerationTaskPayload) (*models.Theme, *models.Language, *models.Tone, error) {
	themeID, err := uuid.Parse(payload.ThemeID)
	if err != nil {
		return nil, nil, nil, messaging.Permanent(fmt.Errorf("invalid theme id: %w", err))
	}
	languageID, err := uuid.Parse(payload.LanguageID)
	if err != nil {
		return nil, nil, nil, messaging.Permanent(fmt.Errorf("invalid language id: %w", err))
	}
	toneID, err := uuid.Parse(payload.ToneID)
	if err != nil {
		return nil, nil, nil, messaging.Permanent(fmt.Errorf("invalid tone id: %w", err))
	}

	theme, err := h.settings.FindThemeByID(ctx, themeID)
	if err != nil {
		return nil, nil, nil, catalogErr(err)
	}
	language, err := h.settings.FindLanguageByID(ctx, languageID)
	if err != nil {
		return nil, nil, nil, catalogErr(err)
	}
	tone, err := h.settings.FindToneByID(ctx, toneID)
	if err != nil {
		return nil, nil, nil, catalogErr(err)
	}
	return theme, language, tone, nil
}

// catalogErr marks dangling catalog references permanent; infrastructure
// errors stay retryable.
func catalogErr(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return messaging.Permanent(err)
	}
	return err
}

// translateStory rewrites the generated texts into the target language in
// place. Image prompts stay in the generation language: providers expect
// English prompts.
func (h *Handler) translateStory(ctx context.Context, generated *ai.GeneratedStory, targetLang string) error {
	title, err := h.translator.Translate(ctx, generated.Title, generationSourceLang, targetLang)
	if err != nil {
		return err
	}
	generated.Title = title

	if strings.TrimSpace(generated.Conclusion) != "" {
		conclusion, err := h.translator.Translate(ctx, generated.Conclusion, generationSourceLang, targetLang)
		if err != nil {
			return err
		}
		generated.Conclusion = conclusion
	}

	items := make([]translation.BatchItem, 0, len(generated.Chapters)*2)
	for _, ch := range generated.Chapters {
		items = append(items,
			translation.BatchItem{Text: ch.Title, TargetLang: targetLang},
			translation.BatchItem{Text: ch.Content, TargetLang: targetLang})
	}
	translated, err := h.translator.TranslateBatch(ctx, items, generationSourceLang)
	if err != nil {
		return err
	}
	for i := range generated.Chapters {
		generated.Chapters[i].Title = translated[i*2]
		generated.Chapters[i].Content = translated[i*2+1]
	}
	return nil
}

func chaptersFromGenerated(generated []ai.GeneratedChapter, imageURLs []string) ([]models.Chapter, error) {
	titles := make([]string, len(generated))
	contents := make([]string, len(generated))
	for i, ch := range generated {
		titles[i] = ch.Title
		contents[i] = ch.Content
	}
	return models.NewChapters(titles, contents, imageURLs)
}
