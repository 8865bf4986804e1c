package imaging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeImageProvider struct {
	supportsRef  bool
	refErr       error
	coverErr     error
	visualLock   string
	failChapters map[int]error

	refCalls     []string
	chapterLocks []string
}

func (f *fakeImageProvider) Name() string { return "fake" }

func (f *fakeImageProvider) TestConnection(context.Context) error { return nil }

func (f *fakeImageProvider) SupportsCharacterReference() bool { return f.supportsRef }

func (f *fakeImageProvider) CreateCharacterReference(_ context.Context, storyID, prompt string) (string, error) {
	f.refCalls = append(f.refCalls, prompt)
	if f.refErr != nil {
		return "", f.refErr
	}
	return storyID + "-ref", nil
}

func (f *fakeImageProvider) GenerateCover(_ context.Context, storyID, _, characterRef string) (string, string, error) {
	if f.coverErr != nil {
		return "", "", f.coverErr
	}
	return fmt.Sprintf("https://img/%s-cover?ref=%s", storyID, characterRef), f.visualLock, nil
}

func (f *fakeImageProvider) GenerateChapterImage(_ context.Context, storyID, _, _, visualLock string, position int) (string, error) {
	f.chapterLocks = append(f.chapterLocks, visualLock)
	if err := f.failChapters[position]; err != nil {
		return "", err
	}
	return fmt.Sprintf("https://img/%s-chapter-%d", storyID, position), nil
}

func testRequest() ImageRequest {
	return ImageRequest{
		StoryID:         "story-1",
		CharacterPrompt: "a small orange fox",
		CoverPrompt:     "a fox in a night garden",
		ChapterPrompts:  []string{"fox finds a seed", "garden glows", "fox sleeps"},
	}
}

func TestCoordinatorFullPass(t *testing.T) {
	provider := &fakeImageProvider{supportsRef: true}
	c := NewCoordinator(provider, zap.NewNop())

	result, err := c.GenerateAll(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "https://img/story-1-cover?ref=story-1-ref", result.CoverURL)
	assert.Len(t, result.ChapterImages, 3)
	assert.Equal(t, 3, result.Metadata.SuccessfulChapters)
	assert.True(t, result.Metadata.UsedCharacterReference)
	assert.Empty(t, result.Metadata.Errors)
}

func TestCoordinatorSkipsReferenceWhenUnsupported(t *testing.T) {
	provider := &fakeImageProvider{supportsRef: false}
	c := NewCoordinator(provider, zap.NewNop())

	result, err := c.GenerateAll(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Empty(t, provider.refCalls)
	assert.False(t, result.Metadata.UsedCharacterReference)
	assert.Equal(t, "https://img/story-1-cover?ref=", result.CoverURL)
}

func TestCoordinatorReferenceFailureFailsPass(t *testing.T) {
	// the provider declared the capability, so a reference failure is a
	// provider failure, not something to paper over
	provider := &fakeImageProvider{supportsRef: true, refErr: errors.New("gpu busy")}
	c := NewCoordinator(provider, zap.NewNop())

	_, err := c.GenerateAll(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "character reference")
	assert.Empty(t, provider.chapterLocks)
}

func TestCoordinatorCoverFailureFailsPass(t *testing.T) {
	provider := &fakeImageProvider{coverErr: ErrImageGenerationFailed}
	c := NewCoordinator(provider, zap.NewNop())

	_, err := c.GenerateAll(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageGenerationFailed)
}

func TestCoordinatorThreadsVisualLockToChapters(t *testing.T) {
	provider := &fakeImageProvider{visualLock: "an orange fox with a blue scarf"}
	c := NewCoordinator(provider, zap.NewNop())

	_, err := c.GenerateAll(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, provider.chapterLocks, 3)
	for _, lock := range provider.chapterLocks {
		assert.Equal(t, "an orange fox with a blue scarf", lock)
	}
}

func TestCoordinatorToleratesChapterFailures(t *testing.T) {
	provider := &fakeImageProvider{
		failChapters: map[int]error{2: errors.New("timeout")},
	}
	c := NewCoordinator(provider, zap.NewNop())

	result, err := c.GenerateAll(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Metadata.SuccessfulChapters)
	assert.NotEmpty(t, result.ChapterImages[0])
	assert.Empty(t, result.ChapterImages[1])
	assert.NotEmpty(t, result.ChapterImages[2])
	require.Len(t, result.Metadata.Errors, 1)
	assert.Contains(t, result.Metadata.Errors[0], "chapter 2")
}
