package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/ai"
	aiMocks "fable-server/internal/ai/mocks"
	"fable-server/internal/imaging"
	"fable-server/internal/messaging"
	msgMocks "fable-server/internal/messaging/mocks"
	"fable-server/internal/models"
	repoMocks "fable-server/internal/repository/mocks"
)

type stubQuota struct {
	canCreate bool
	err       error
}

func (s *stubQuota) CheckQuota(context.Context, uuid.UUID, models.Role) (*models.QuotaStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.QuotaStatus{CanCreate: s.canCreate}, nil
}

type fakeImages struct {
	err     error
	request imaging.ImageRequest
}

func (f *fakeImages) GenerateAll(_ context.Context, req imaging.ImageRequest) (*imaging.ImageSet, error) {
	f.request = req
	if f.err != nil {
		return nil, f.err
	}
	set := &imaging.ImageSet{
		CoverURL:      "https://img/cover.jpg",
		ChapterImages: make([]string, len(req.ChapterPrompts)),
		Metadata: imaging.Metadata{
			TotalChapters:      len(req.ChapterPrompts),
			SuccessfulChapters: len(req.ChapterPrompts),
		},
	}
	for i := range set.ChapterImages {
		set.ChapterImages[i] = fmt.Sprintf("https://img/chapter-%d.jpg", i+1)
	}
	return set, nil
}

type serviceFixture struct {
	stories    *repoMocks.MockStoryRepository
	settings   *repoMocks.MockSettingsRepository
	quota      *stubQuota
	dispatcher *msgMocks.MockTaskDispatcher
	events     *msgMocks.MockEventPublisher
	generator  *aiMocks.MockStoryGenerator
	images     *fakeImages
	service    StoryService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		stories:    new(repoMocks.MockStoryRepository),
		settings:   new(repoMocks.MockSettingsRepository),
		quota:      &stubQuota{canCreate: true},
		dispatcher: new(msgMocks.MockTaskDispatcher),
		events:     new(msgMocks.MockEventPublisher),
		generator:  new(aiMocks.MockStoryGenerator),
		images:     &fakeImages{},
	}
	f.service = NewStoryService(f.stories, f.settings, f.quota, f.dispatcher, f.events, f.generator, f.images, zap.NewNop())
	return f
}

func (f *serviceFixture) expectCatalog() {
	f.settings.On("FindThemeByID", mock.Anything, mock.Anything).
		Return(&models.Theme{ID: uuid.New(), Code: "adventure", Name: "Adventure"}, nil)
	f.settings.On("FindLanguageByID", mock.Anything, mock.Anything).
		Return(&models.Language{ID: uuid.New(), Code: "EN", Name: "English"}, nil)
	f.settings.On("FindToneByID", mock.Anything, mock.Anything).
		Return(&models.Tone{ID: uuid.New(), Code: "gentle", Name: "Gentle"}, nil)
}

func validInput() CreateStoryInput {
	return CreateStoryInput{
		OwnerID:            uuid.New(),
		Role:               models.RoleFree,
		Synopsis:           "a fox plants a garden",
		ProtagonistName:    "Milo",
		ProtagonistSpecies: "fox",
		ChildAge:           5,
		ThemeID:            uuid.New(),
		LanguageID:         uuid.New(),
		ToneID:             uuid.New(),
		RequestedChapters:  2,
	}
}

func generatedStory(chapters int) *ai.GeneratedStory {
	out := &ai.GeneratedStory{
		Title:       "Milo and the Moon Garden",
		Synopsis:    "a fox plants a garden",
		Conclusion:  "Patience makes things grow.",
		CoverPrompt: "a fox in a night garden",
	}
	for i := 0; i < chapters; i++ {
		out.Chapters = append(out.Chapters, ai.GeneratedChapter{
			Title:       "Chapter",
			Content:     "Something wonderful happened.",
			ImagePrompt: "a fox",
		})
	}
	return out
}

func TestQueueGeneration(t *testing.T) {
	f := newServiceFixture()
	f.expectCatalog()
	f.stories.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return("job-123", nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.MatchedBy(func(s *models.Story) bool {
		return s.GenerationStatus == models.GenerationProcessing && s.JobID != nil && *s.JobID == "job-123"
	})).Return(nil)
	f.events.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	story, err := f.service.QueueGeneration(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, models.GenerationProcessing, story.GenerationStatus)
	require.NotNil(t, story.JobID)
	assert.Equal(t, "job-123", *story.JobID)
	assert.Equal(t, models.PlaceholderTitle, story.Title)
	f.stories.AssertExpectations(t)
	f.dispatcher.AssertExpectations(t)
}

func TestQueueGenerationPayloadCarriesIDs(t *testing.T) {
	f := newServiceFixture()
	f.expectCatalog()
	input := validInput()

	f.stories.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(p messaging.GenerationTaskPayload) bool {
		return p.ThemeID == input.ThemeID.String() &&
			p.LanguageID == input.LanguageID.String() &&
			p.ToneID == input.ToneID.String() &&
			p.ChapterCount == input.RequestedChapters
	})).Return("job-1", nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.QueueGeneration(context.Background(), input)
	require.NoError(t, err)
	f.dispatcher.AssertExpectations(t)
}

func TestQueueGenerationQuotaExceeded(t *testing.T) {
	f := newServiceFixture()
	f.quota.canCreate = false

	_, err := f.service.QueueGeneration(context.Background(), validInput())
	assert.ErrorIs(t, err, models.ErrQuotaExceeded)
	f.stories.AssertNotCalled(t, "Create")
}

func TestQueueGenerationUnknownTheme(t *testing.T) {
	f := newServiceFixture()
	f.settings.On("FindThemeByID", mock.Anything, mock.Anything).Return(nil, models.ErrNotFound)

	_, err := f.service.QueueGeneration(context.Background(), validInput())
	assert.ErrorIs(t, err, models.ErrNotFound)
	f.stories.AssertNotCalled(t, "Create")
}

func TestQueueGenerationDispatchFailureLeavesPending(t *testing.T) {
	f := newServiceFixture()
	f.expectCatalog()
	var created *models.Story
	f.stories.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.Story)
	}).Return(nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return("", errors.New("broker unavailable"))

	_, err := f.service.QueueGeneration(context.Background(), validInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDispatchFailed)

	require.NotNil(t, created)
	assert.Equal(t, models.GenerationPending, created.GenerationStatus)
	assert.Nil(t, created.JobID)
	f.stories.AssertNotCalled(t, "UpdateGeneration")
}

func TestCreateStorySynchronous(t *testing.T) {
	f := newServiceFixture()
	f.expectCatalog()
	input := validInput()

	f.generator.On("GenerateStory", mock.Anything, mock.MatchedBy(func(p ai.StoryParams) bool {
		return p.Theme == "Adventure" && p.Language == "English" && p.ChapterCount == 2
	})).Return(generatedStory(2), nil)
	f.stories.On("Create", mock.Anything, mock.MatchedBy(func(s *models.Story) bool {
		return s.GenerationStatus == models.GenerationCompleted && len(s.Chapters) == 2
	})).Return(nil)
	f.events.On("PublishEvent", mock.Anything, mock.MatchedBy(func(e models.DomainEvent) bool {
		return e.EventName() == models.EventStoryCreated
	})).Return(nil)

	story, err := f.service.CreateStory(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "Milo and the Moon Garden", story.Title)
	assert.Equal(t, "milo-and-the-moon-garden", story.Slug)
	assert.Equal(t, models.GenerationCompleted, story.GenerationStatus)
	require.NotNil(t, story.CoverImageURL)
	assert.Equal(t, "https://img/cover.jpg", *story.CoverImageURL)
	require.Len(t, story.Chapters, 2)
	assert.Equal(t, "https://img/chapter-1.jpg", story.Chapters[0].ImageURL)
	assert.Equal(t, "https://img/chapter-2.jpg", story.Chapters[1].ImageURL)
	assert.Equal(t, story.ID.String(), f.images.request.StoryID)
	assert.Equal(t, "a fox in a night garden", f.images.request.CoverPrompt)
	f.events.AssertExpectations(t)
}

func TestCreateStoryIllustrationFailure(t *testing.T) {
	f := newServiceFixture()
	f.expectCatalog()
	f.images.err = errors.New("image backend unavailable")
	f.generator.On("GenerateStory", mock.Anything, mock.Anything).Return(generatedStory(2), nil)

	_, err := f.service.CreateStory(context.Background(), validInput())
	require.Error(t, err)
	f.stories.AssertNotCalled(t, "Create")
}

func TestCreateStoryChapterCountMismatch(t *testing.T) {
	f := newServiceFixture()
	f.expectCatalog()
	f.generator.On("GenerateStory", mock.Anything, mock.Anything).Return(generatedStory(3), nil)

	_, err := f.service.CreateStory(context.Background(), validInput())
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	f.stories.AssertNotCalled(t, "Create")
}

func TestCreateStoryInvalidInput(t *testing.T) {
	f := newServiceFixture()
	input := validInput()
	input.ChildAge = 15

	_, err := f.service.CreateStory(context.Background(), input)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	f.generator.AssertNotCalled(t, "GenerateStory")
}

func failedStory(ownerID uuid.UUID) *models.Story {
	story, _ := models.NewPendingStory(models.NewStoryParams{
		OwnerID:            ownerID,
		ProtagonistName:    "Milo",
		ProtagonistSpecies: "fox",
		ChildAge:           5,
		ThemeID:            uuid.New(),
		LanguageID:         uuid.New(),
		ToneID:             uuid.New(),
		RequestedChapters:  2,
	})
	_ = story.StartGeneration("job-old")
	story.FailGeneration("model timeout")
	story.Version = 4
	return story
}

func TestRetryGeneration(t *testing.T) {
	ownerID := uuid.New()
	story := failedStory(ownerID)

	f := newServiceFixture()
	f.expectCatalog()
	f.stories.On("GetByID", mock.Anything, story.ID).Return(story, nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.Anything).Return(nil).Twice()
	f.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return("job-new", nil)
	f.events.On("PublishEvent", mock.Anything, mock.MatchedBy(func(e models.DomainEvent) bool {
		return e.EventName() == models.EventRetryQueued
	})).Return(nil)

	result, err := f.service.RetryGeneration(context.Background(), story.ID, ownerID)
	require.NoError(t, err)

	assert.Equal(t, models.GenerationProcessing, result.GenerationStatus)
	assert.Equal(t, "job-new", *result.JobID)
	assert.Nil(t, result.LastError)
	f.stories.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestRetryGenerationNonOwner(t *testing.T) {
	story := failedStory(uuid.New())

	f := newServiceFixture()
	f.stories.On("GetByID", mock.Anything, story.ID).Return(story, nil)

	_, err := f.service.RetryGeneration(context.Background(), story.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	f.stories.AssertNotCalled(t, "UpdateGeneration")
	f.dispatcher.AssertNotCalled(t, "Dispatch")
}

func TestRetryGenerationWrongState(t *testing.T) {
	ownerID := uuid.New()
	story := failedStory(ownerID)
	story.GenerationStatus = models.GenerationCompleted

	f := newServiceFixture()
	f.stories.On("GetByID", mock.Anything, story.ID).Return(story, nil)

	_, err := f.service.RetryGeneration(context.Background(), story.ID, ownerID)
	assert.ErrorIs(t, err, models.ErrStateConflict)
	f.dispatcher.AssertNotCalled(t, "Dispatch")
}

func TestRetryGenerationDispatchFailureLeavesPending(t *testing.T) {
	ownerID := uuid.New()
	story := failedStory(ownerID)

	f := newServiceFixture()
	f.expectCatalog()
	f.stories.On("GetByID", mock.Anything, story.ID).Return(story, nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.Anything).Return(nil).Once()
	f.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return("", errors.New("broker unavailable"))

	_, err := f.service.RetryGeneration(context.Background(), story.ID, ownerID)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDispatchFailed)
	assert.Equal(t, models.GenerationPending, story.GenerationStatus)
	f.events.AssertNotCalled(t, "PublishEvent")
}

func TestRetryGenerationDanglingCatalogFailsFast(t *testing.T) {
	ownerID := uuid.New()
	story := failedStory(ownerID)

	f := newServiceFixture()
	f.stories.On("GetByID", mock.Anything, story.ID).Return(story, nil)
	// the theme was deleted since the story was created; the retry must
	// fail before anything is persisted or dispatched
	f.settings.On("FindThemeByID", mock.Anything, story.ThemeID).Return(nil, models.ErrNotFound)

	_, err := f.service.RetryGeneration(context.Background(), story.ID, ownerID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	f.stories.AssertNotCalled(t, "UpdateGeneration")
	f.dispatcher.AssertNotCalled(t, "Dispatch")
}

func TestRetryGenerationNotFound(t *testing.T) {
	f := newServiceFixture()
	id := uuid.New()
	f.stories.On("GetByID", mock.Anything, id).Return(nil, models.ErrStoryNotFound)

	_, err := f.service.RetryGeneration(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, models.ErrStoryNotFound)
}

func TestGetStory(t *testing.T) {
	ownerID := uuid.New()
	story := failedStory(ownerID)

	f := newServiceFixture()
	f.stories.On("GetByID", mock.Anything, story.ID).Return(story, nil)

	got, err := f.service.GetStory(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.ID, got.ID)
}
