package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-server/internal/models"
)

func TestDBStoryToModelRejectsUnknownStatus(t *testing.T) {
	row := dbStory{ID: uuid.New(), GenerationStatus: "archived"}

	_, err := row.toModel()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived")
}

func TestDBStoryToModelDecodesChapters(t *testing.T) {
	row := dbStory{
		ID:               uuid.New(),
		GenerationStatus: string(models.GenerationCompleted),
		Chapters:         []byte(`[{"position":1,"title":"One","content":"Something happened."}]`),
	}

	story, err := row.toModel()
	require.NoError(t, err)
	assert.Equal(t, models.GenerationCompleted, story.GenerationStatus)
	require.Len(t, story.Chapters, 1)
	assert.Equal(t, 1, story.Chapters[0].Position)
	assert.Equal(t, "One", story.Chapters[0].Title)
}

func TestEncodeChaptersNilBecomesEmptyArray(t *testing.T) {
	data, err := encodeChapters(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
