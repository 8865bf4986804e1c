package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/ai"
	"fable-server/internal/imaging"
	"fable-server/internal/messaging"
	"fable-server/internal/models"
	"fable-server/internal/repository"
)

// ImageCoordinator runs the illustration pass for one story.
type ImageCoordinator interface {
	GenerateAll(ctx context.Context, req imaging.ImageRequest) (*imaging.ImageSet, error)
}

// CreateStoryInput carries a creation request from the API layer.
type CreateStoryInput struct {
	OwnerID            uuid.UUID
	Role               models.Role
	Synopsis           string
	ProtagonistName    string
	ProtagonistSpecies string
	ChildAge           int
	ThemeID            uuid.UUID
	LanguageID         uuid.UUID
	ToneID             uuid.UUID
	RequestedChapters  int
	IsPublic           bool
}

// StoryService orchestrates the story lifecycle: synchronous creation,
// asynchronous generation, owner retry and reads.
type StoryService interface {
	// CreateStory generates content and illustrations inline and persists
	// a completed aggregate. Nothing persists if any step fails.
	CreateStory(ctx context.Context, input CreateStoryInput) (*models.Story, error)
	// QueueGeneration persists a pending aggregate and dispatches a
	// generation job. On dispatch failure the aggregate stays pending with
	// no job id and the error propagates.
	QueueGeneration(ctx context.Context, input CreateStoryInput) (*models.Story, error)
	// RetryGeneration re-enters the lifecycle at pending for a failed
	// story. Only the owner may retry.
	RetryGeneration(ctx context.Context, storyID, requesterID uuid.UUID) (*models.Story, error)
	GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error)
}

type storyService struct {
	stories    repository.StoryRepository
	settings   repository.SettingsRepository
	quota      QuotaChecker
	dispatcher messaging.TaskDispatcher
	events     messaging.EventPublisher
	generator  ai.StoryGenerator
	images     ImageCoordinator
	logger     *zap.Logger
}

var _ StoryService = (*storyService)(nil)

// NewStoryService wires the orchestrator.
func NewStoryService(
	stories repository.StoryRepository,
	settings repository.SettingsRepository,
	quota QuotaChecker,
	dispatcher messaging.TaskDispatcher,
	events messaging.EventPublisher,
	generator ai.StoryGenerator,
	images ImageCoordinator,
	logger *zap.Logger,
) StoryService {
	return &storyService{
		stories:    stories,
		settings:   settings,
		quota:      quota,
		dispatcher: dispatcher,
		events:     events,
		generator:  generator,
		images:     images,
		logger:     logger.Named("story_service"),
	}
}

func (s *storyService) CreateStory(ctx context.Context, input CreateStoryInput) (*models.Story, error) {
	params := input.toParams()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureQuota(ctx, input.OwnerID, input.Role); err != nil {
		return nil, err
	}

	theme, language, tone, err := s.resolveCatalog(ctx, input.ThemeID, input.LanguageID, input.ToneID)
	if err != nil {
		return nil, err
	}

	generated, err := s.generator.GenerateStory(ctx, ai.StoryParams{
		Theme:              theme.Name,
		Language:           language.Name,
		Tone:               tone.Name,
		Synopsis:           input.Synopsis,
		ProtagonistName:    input.ProtagonistName,
		ProtagonistSpecies: input.ProtagonistSpecies,
		ChildAge:           input.ChildAge,
		ChapterCount:       input.RequestedChapters,
	})
	if err != nil {
		return nil, err
	}
	if len(generated.Chapters) != input.RequestedChapters {
		return nil, fmt.Errorf("%w: generated %d chapters, requested %d",
			models.ErrInvalidInput, len(generated.Chapters), input.RequestedChapters)
	}

	// the story id is fixed before the illustration pass so stored image
	// names match the aggregate they belong to
	storyID := uuid.New()
	chapterPrompts := make([]string, len(generated.Chapters))
	for i, ch := range generated.Chapters {
		chapterPrompts[i] = ch.ImagePrompt
	}
	imageSet, err := s.images.GenerateAll(ctx, imaging.ImageRequest{
		StoryID:         storyID.String(),
		CharacterPrompt: fmt.Sprintf("%s, a %s", input.ProtagonistName, input.ProtagonistSpecies),
		CoverPrompt:     generated.CoverPrompt,
		ChapterPrompts:  chapterPrompts,
	})
	if err != nil {
		return nil, fmt.Errorf("illustration pass failed: %w", err)
	}

	chapters, err := chaptersFromGenerated(generated.Chapters, imageSet.ChapterImages)
	if err != nil {
		return nil, err
	}

	story, err := models.NewCompletedStory(params, generated.Title, chapters, imageSet.CoverURL, generated.Conclusion)
	if err != nil {
		return nil, err
	}
	story.ID = storyID
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}

	s.publish(ctx, models.StoryCreatedEvent{
		StoryID:    story.ID,
		OwnerID:    story.OwnerID,
		Title:      story.Title,
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("story created synchronously",
		zap.String("story_id", story.ID.String()),
		zap.String("owner_id", story.OwnerID.String()))
	return story, nil
}

func (s *storyService) QueueGeneration(ctx context.Context, input CreateStoryInput) (*models.Story, error) {
	params := input.toParams()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureQuota(ctx, input.OwnerID, input.Role); err != nil {
		return nil, err
	}
	// fail fast on dangling catalog references, before anything persists
	if _, _, _, err := s.resolveCatalog(ctx, input.ThemeID, input.LanguageID, input.ToneID); err != nil {
		return nil, err
	}

	story, err := models.NewPendingStory(params)
	if err != nil {
		return nil, err
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}

	if err := s.dispatchAndStart(ctx, story); err != nil {
		return nil, err
	}

	s.publish(ctx, models.StoryCreatedEvent{
		StoryID:    story.ID,
		OwnerID:    story.OwnerID,
		Title:      story.Title,
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("generation queued",
		zap.String("story_id", story.ID.String()),
		zap.Stringp("job_id", story.JobID))
	return story, nil
}

func (s *storyService) RetryGeneration(ctx context.Context, storyID, requesterID uuid.UUID) (*models.Story, error) {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: only the owner may retry a generation", models.ErrUnauthorized)
	}
	if err := story.RetryGeneration(); err != nil {
		return nil, err
	}
	// dangling catalog references surface to the caller here, before
	// anything persists, instead of asynchronously as a failed generation
	if _, _, _, err := s.resolveCatalog(ctx, story.ThemeID, story.LanguageID, story.ToneID); err != nil {
		return nil, err
	}
	if err := s.stories.UpdateGeneration(ctx, story); err != nil {
		return nil, err
	}

	if err := s.dispatchAndStart(ctx, story); err != nil {
		return nil, err
	}

	s.publish(ctx, models.RetryQueuedEvent{
		StoryID:    story.ID,
		OwnerID:    story.OwnerID,
		JobID:      *story.JobID,
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("generation retry queued",
		zap.String("story_id", story.ID.String()),
		zap.Stringp("job_id", story.JobID))
	return story, nil
}

func (s *storyService) GetStory(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	return s.stories.GetByID(ctx, storyID)
}

// dispatchAndStart publishes the job and moves the aggregate into processing.
// A dispatch failure leaves the aggregate pending with no job id: the same
// contract for first dispatch and retry re-dispatch.
func (s *storyService) dispatchAndStart(ctx context.Context, story *models.Story) error {
	payload := messaging.GenerationTaskPayload{
		TaskType:           messaging.TaskTypeStoryGeneration,
		StoryID:            story.ID.String(),
		OwnerID:            story.OwnerID.String(),
		ThemeID:            story.ThemeID.String(),
		LanguageID:         story.LanguageID.String(),
		ToneID:             story.ToneID.String(),
		Synopsis:           story.Synopsis,
		ProtagonistName:    story.ProtagonistName,
		ProtagonistSpecies: story.ProtagonistSpecies,
		ChildAge:           story.ChildAge,
		ChapterCount:       story.RequestedChapters,
	}

	jobID, err := s.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		s.logger.Error("job dispatch failed, story remains pending",
			zap.String("story_id", story.ID.String()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrDispatchFailed, err)
	}

	if err := story.StartGeneration(jobID); err != nil {
		return err
	}
	if err := s.stories.UpdateGeneration(ctx, story); err != nil {
		return err
	}
	return nil
}

func (s *storyService) ensureQuota(ctx context.Context, ownerID uuid.UUID, role models.Role) error {
	status, err := s.quota.CheckQuota(ctx, ownerID, role)
	if err != nil {
		return err
	}
	if !status.CanCreate {
		return fmt.Errorf("%w: monthly story limit reached", models.ErrQuotaExceeded)
	}
	return nil
}

func (s *storyService) resolveCatalog(ctx context.Context, themeID, languageID, toneID uuid.UUID) (*models.Theme, *models.Language, *models.Tone, error) {
	theme, err := s.settings.FindThemeByID(ctx, themeID)
	if err != nil {
		return nil, nil, nil, err
	}
	language, err := s.settings.FindLanguageByID(ctx, languageID)
	if err != nil {
		return nil, nil, nil, err
	}
	tone, err := s.settings.FindToneByID(ctx, toneID)
	if err != nil {
		return nil, nil, nil, err
	}
	return theme, language, tone, nil
}

// publish emits a domain event fire-and-forget.
func (s *storyService) publish(ctx context.Context, event models.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish domain event",
			zap.String("event", event.EventName()),
			zap.Error(err))
	}
}

func (in CreateStoryInput) toParams() models.NewStoryParams {
	return models.NewStoryParams{
		OwnerID:            in.OwnerID,
		Synopsis:           in.Synopsis,
		ProtagonistName:    in.ProtagonistName,
		ProtagonistSpecies: in.ProtagonistSpecies,
		ChildAge:           in.ChildAge,
		ThemeID:            in.ThemeID,
		LanguageID:         in.LanguageID,
		ToneID:             in.ToneID,
		RequestedChapters:  in.RequestedChapters,
		IsPublic:           in.IsPublic,
	}
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
