package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fable-server/internal/ai"
)

// MockStoryGenerator is a testify mock for ai.StoryGenerator.
type MockStoryGenerator struct {
	mock.Mock
}

var _ ai.StoryGenerator = (*MockStoryGenerator)(nil)

func (m *MockStoryGenerator) GenerateStory(ctx context.Context, params ai.StoryParams) (*ai.GeneratedStory, error) {
	args := m.Called(ctx, params)
	if story, ok := args.Get(0).(*ai.GeneratedStory); ok {
		return story, args.Error(1)
	}
	return nil, args.Error(1)
}
