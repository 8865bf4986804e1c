package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"fable-server/internal/models"
	repoMocks "fable-server/internal/repository/mocks"
	"fable-server/internal/translation"
)

type fakeTranslator struct {
	direct map[string]bool
	err    error
}

func (f *fakeTranslator) Route(targetLang string) translation.RouteDecision {
	if f.direct[strings.ToUpper(targetLang)] {
		return translation.RouteNone
	}
	return translation.RoutePrimary
}

func (f *fakeTranslator) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "[" + targetLang + "]" + text, nil
}

func (f *fakeTranslator) TranslateBatch(ctx context.Context, items []translation.BatchItem, sourceLang string) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		t, err := f.Translate(ctx, item.Text, sourceLang, item.TargetLang)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

type fakeCoordinator struct {
	err      error
	request  imaging.ImageRequest
	partials map[int]bool // chapter positions that fail
}

func (f *fakeCoordinator) GenerateAll(_ context.Context, req imaging.ImageRequest) (*imaging.ImageSet, error) {
	f.request = req
	if f.err != nil {
		return nil, f.err
	}
	set := &imaging.ImageSet{
		CoverURL:      "https://img/cover.jpg",
		ChapterImages: make([]string, len(req.ChapterPrompts)),
		Metadata:      imaging.Metadata{TotalChapters: len(req.ChapterPrompts)},
	}
	for i := range req.ChapterPrompts {
		if f.partials[i+1] {
			set.Metadata.Errors = append(set.Metadata.Errors, fmt.Sprintf("chapter %d: boom", i+1))
			continue
		}
		set.ChapterImages[i] = fmt.Sprintf("https://img/chapter-%d.jpg", i+1)
		set.Metadata.SuccessfulChapters++
	}
	return set, nil
}

type handlerFixture struct {
	stories    *repoMocks.MockStoryRepository
	settings   *repoMocks.MockSettingsRepository
	generator  *aiMocks.MockStoryGenerator
	translator *fakeTranslator
	images     *fakeCoordinator
	handler    *Handler

	story   *models.Story
	payload messaging.GenerationTaskPayload
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	themeID, languageID, toneID := uuid.New(), uuid.New(), uuid.New()
	story, err := models.NewPendingStory(models.NewStoryParams{
		OwnerID:            uuid.New(),
		Synopsis:           "a fox plants a garden",
		ProtagonistName:    "Milo",
		ProtagonistSpecies: "fox",
		ChildAge:           5,
		ThemeID:            themeID,
		LanguageID:         languageID,
		ToneID:             toneID,
		RequestedChapters:  2,
	})
	require.NoError(t, err)
	require.NoError(t, story.StartGeneration("job-1"))

	f := &handlerFixture{
		stories:    new(repoMocks.MockStoryRepository),
		settings:   new(repoMocks.MockSettingsRepository),
		generator:  new(aiMocks.MockStoryGenerator),
		translator: &fakeTranslator{direct: map[string]bool{"EN": true}},
		images:     &fakeCoordinator{},
		story:      story,
		payload: messaging.GenerationTaskPayload{
			JobID:              "job-1",
			TaskType:           messaging.TaskTypeStoryGeneration,
			StoryID:            story.ID.String(),
			OwnerID:            story.OwnerID.String(),
			ThemeID:            themeID.String(),
			LanguageID:         languageID.String(),
			ToneID:             toneID.String(),
			Synopsis:           story.Synopsis,
			ProtagonistName:    "Milo",
			ProtagonistSpecies: "fox",
			ChildAge:           5,
			ChapterCount:       2,
		},
	}
	f.handler = NewHandler(f.stories, f.settings, f.generator, f.translator, f.images, zap.NewNop())
	return f
}

func (f *handlerFixture) expectCatalog(langCode, langName string) {
	f.settings.On("FindThemeByID", mock.Anything, mock.Anything).
		Return(&models.Theme{Name: "Adventure"}, nil)
	f.settings.On("FindLanguageByID", mock.Anything, mock.Anything).
		Return(&models.Language{Code: langCode, Name: langName}, nil)
	f.settings.On("FindToneByID", mock.Anything, mock.Anything).
		Return(&models.Tone{Name: "Gentle"}, nil)
}

func generatedStory(chapters int) *ai.GeneratedStory {
	out := &ai.GeneratedStory{
		Title:       "Milo and the Moon Garden",
		Conclusion:  "Patience makes things grow.",
		CoverPrompt: "a fox in a night garden",
	}
	for i := 0; i < chapters; i++ {
		out.Chapters = append(out.Chapters, ai.GeneratedChapter{
			Title:       fmt.Sprintf("Chapter %d", i+1),
			Content:     "Something wonderful happened.",
			ImagePrompt: fmt.Sprintf("scene %d", i+1),
		})
	}
	return out
}

func TestHandleCompletesStory(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectCatalog("EN", "English")
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	f.generator.On("GenerateStory", mock.Anything, mock.MatchedBy(func(p ai.StoryParams) bool {
		return p.Language == "English" && p.ChapterCount == 2
	})).Return(generatedStory(2), nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.MatchedBy(func(s *models.Story) bool {
		return s.GenerationStatus == models.GenerationCompleted
	})).Return(nil)

	err := f.handler.Handle(context.Background(), f.payload)
	require.NoError(t, err)

	assert.Equal(t, "Milo and the Moon Garden", f.story.Title)
	require.NotNil(t, f.story.CoverImageURL)
	assert.Equal(t, "https://img/cover.jpg", *f.story.CoverImageURL)
	require.Len(t, f.story.Chapters, 2)
	assert.Equal(t, "https://img/chapter-1.jpg", f.story.Chapters[0].ImageURL)
	f.stories.AssertExpectations(t)
}

func TestHandleTranslatesNonDirectLanguage(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectCatalog("JA", "Japanese")
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	// generation runs in the source language; translation produces the target
	f.generator.On("GenerateStory", mock.Anything, mock.MatchedBy(func(p ai.StoryParams) bool {
		return p.Language == "English"
	})).Return(generatedStory(2), nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.Anything).Return(nil)

	err := f.handler.Handle(context.Background(), f.payload)
	require.NoError(t, err)

	assert.Equal(t, "[JA]Milo and the Moon Garden", f.story.Title)
	assert.Equal(t, "[JA]Chapter 1", f.story.Chapters[0].Title)
	assert.Equal(t, "[JA]Something wonderful happened.", f.story.Chapters[0].Content)
	require.NotNil(t, f.story.Conclusion)
	assert.Equal(t, "[JA]Patience makes things grow.", *f.story.Conclusion)
	// image prompts are not translated
	assert.Equal(t, "a fox in a night garden", f.images.request.CoverPrompt)
}

func TestHandleDirectLanguageSkipsTranslation(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectCatalog("EN", "English")
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	f.generator.On("GenerateStory", mock.Anything, mock.MatchedBy(func(p ai.StoryParams) bool {
		return p.Language == "English"
	})).Return(generatedStory(2), nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.Anything).Return(nil)

	err := f.handler.Handle(context.Background(), f.payload)
	require.NoError(t, err)
	assert.Equal(t, "Milo and the Moon Garden", f.story.Title)
}

func TestHandleChapterCountMismatchIsPermanent(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectCatalog("EN", "English")
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	f.generator.On("GenerateStory", mock.Anything, mock.Anything).Return(generatedStory(3), nil)

	err := f.handler.Handle(context.Background(), f.payload)
	require.Error(t, err)
	assert.True(t, messaging.IsPermanent(err))
	f.stories.AssertNotCalled(t, "UpdateGeneration")
}

func TestHandleGeneratorFailureIsTransient(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectCatalog("EN", "English")
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	f.generator.On("GenerateStory", mock.Anything, mock.Anything).Return(nil, ai.ErrGenerationFailed)

	err := f.handler.Handle(context.Background(), f.payload)
	require.Error(t, err)
	assert.False(t, messaging.IsPermanent(err))
}

func TestHandleCoverFailureIsTransient(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectCatalog("EN", "English")
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	f.generator.On("GenerateStory", mock.Anything, mock.Anything).Return(generatedStory(2), nil)
	f.images.err = imaging.ErrImageGenerationFailed

	err := f.handler.Handle(context.Background(), f.payload)
	require.Error(t, err)
	assert.False(t, messaging.IsPermanent(err))
	f.stories.AssertNotCalled(t, "UpdateGeneration")
}

func TestHandleToleratesPartialChapterImages(t *testing.T) {
	f := newHandlerFixture(t)
	f.expectCatalog("EN", "English")
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	f.generator.On("GenerateStory", mock.Anything, mock.Anything).Return(generatedStory(2), nil)
	f.images.partials = map[int]bool{2: true}
	f.stories.On("UpdateGeneration", mock.Anything, mock.Anything).Return(nil)

	err := f.handler.Handle(context.Background(), f.payload)
	require.NoError(t, err)

	assert.Equal(t, models.GenerationCompleted, f.story.GenerationStatus)
	assert.NotEmpty(t, f.story.Chapters[0].ImageURL)
	assert.Empty(t, f.story.Chapters[1].ImageURL)
}

func TestHandleUnknownStoryIsPermanent(t *testing.T) {
	f := newHandlerFixture(t)
	f.stories.On("GetByID", mock.Anything, mock.Anything).Return(nil, models.ErrStoryNotFound)

	err := f.handler.Handle(context.Background(), f.payload)
	require.Error(t, err)
	assert.True(t, messaging.IsPermanent(err))
}

func TestHandleCompletedStoryIsNoop(t *testing.T) {
	f := newHandlerFixture(t)
	f.story.GenerationStatus = models.GenerationCompleted
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)

	err := f.handler.Handle(context.Background(), f.payload)
	require.NoError(t, err)
	f.generator.AssertNotCalled(t, "GenerateStory")
}

func TestHandlePendingStoryIsTransient(t *testing.T) {
	f := newHandlerFixture(t)
	f.story.GenerationStatus = models.GenerationPending
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)

	err := f.handler.Handle(context.Background(), f.payload)
	require.Error(t, err)
	assert.False(t, messaging.IsPermanent(err))
}

func TestHandleFailureRecordsError(t *testing.T) {
	f := newHandlerFixture(t)
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)
	f.stories.On("UpdateGeneration", mock.Anything, mock.MatchedBy(func(s *models.Story) bool {
		return s.GenerationStatus == models.GenerationFailed &&
			s.LastError != nil && *s.LastError == "model timeout"
	})).Return(nil)

	f.handler.HandleFailure(context.Background(), f.payload, "model timeout")
	f.stories.AssertExpectations(t)
}

func TestHandleFailureOutsideProcessingIsNoop(t *testing.T) {
	f := newHandlerFixture(t)
	f.story.GenerationStatus = models.GenerationCompleted
	f.stories.On("GetByID", mock.Anything, f.story.ID).Return(f.story, nil)

	f.handler.HandleFailure(context.Background(), f.payload, "late failure")

	assert.Equal(t, models.GenerationCompleted, f.story.GenerationStatus)
	f.stories.AssertNotCalled(t, "UpdateGeneration")
}

func TestHandleFailureLoadErrorIsLoggedOnly(t *testing.T) {
	f := newHandlerFixture(t)
	f.stories.On("GetByID", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	// must not panic and must not write anything
	f.handler.HandleFailure(context.Background(), f.payload, "reason")
	f.stories.AssertNotCalled(t, "UpdateGeneration")
}
