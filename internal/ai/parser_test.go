package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validStoryJSON = `{
	"title": "Milo and the Moon Garden",
	"synopsis": "A small fox plants a garden that only blooms at night.",
	"chapters": [
		{"title": "The Seed", "content": "Milo found a silver seed.", "imagePrompt": "a small orange fox holding a glowing silver seed"},
		{"title": "The Bloom", "content": "At midnight the garden glowed.", "imagePrompt": "a moonlit garden of glowing flowers"}
	],
	"conclusion": "Milo learned that patience makes things grow.",
	"coverPrompt": "a fox in a glowing night garden under a full moon"
}`

func TestParseGeneratedStory(t *testing.T) {
	story, err := ParseGeneratedStory(validStoryJSON)
	require.NoError(t, err)

	assert.Equal(t, "Milo and the Moon Garden", story.Title)
	require.Len(t, story.Chapters, 2)
	assert.Equal(t, "The Seed", story.Chapters[0].Title)
	assert.NotEmpty(t, story.Chapters[0].ImagePrompt)
	assert.NotEmpty(t, story.CoverPrompt)
}

func TestParseGeneratedStoryStripsFences(t *testing.T) {
	fenced := "```json\n" + validStoryJSON + "\n```"

	story, err := ParseGeneratedStory(fenced)
	require.NoError(t, err)
	assert.Equal(t, "Milo and the Moon Garden", story.Title)
}

func TestParseGeneratedStoryStripsBareFences(t *testing.T) {
	fenced := "```\n" + validStoryJSON + "\n```"

	story, err := ParseGeneratedStory(fenced)
	require.NoError(t, err)
	assert.Len(t, story.Chapters, 2)
}

func TestParseGeneratedStoryRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":      "once upon a time",
		"missing title": `{"chapters": [{"title": "a", "content": "b", "imagePrompt": "c"}]}`,
		"no chapters":   `{"title": "Empty", "chapters": []}`,
		"empty chapter": `{"title": "Hollow", "chapters": [{"title": "a", "content": "", "imagePrompt": "c"}]}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGeneratedStory(input)
			assert.True(t, errors.Is(err, ErrGenerationFailed))
		})
	}
}
