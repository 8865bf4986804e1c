package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"fable-server/internal/models"
	"fable-server/internal/repository"
)

// MockStoryRepository is a testify mock for repository.StoryRepository.
type MockStoryRepository struct {
	mock.Mock
}

var _ repository.StoryRepository = (*MockStoryRepository)(nil)

func (m *MockStoryRepository) Create(ctx context.Context, story *models.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *MockStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, id)
	if story, ok := args.Get(0).(*models.Story); ok {
		return story, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStoryRepository) UpdateGeneration(ctx context.Context, story *models.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *MockStoryRepository) CountOwnedBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (int, error) {
	args := m.Called(ctx, ownerID, from, to)
	return args.Int(0), args.Error(1)
}

// MockSettingsRepository is a testify mock for repository.SettingsRepository.
type MockSettingsRepository struct {
	mock.Mock
}

var _ repository.SettingsRepository = (*MockSettingsRepository)(nil)

func (m *MockSettingsRepository) FindThemeByID(ctx context.Context, id uuid.UUID) (*models.Theme, error) {
	args := m.Called(ctx, id)
	if theme, ok := args.Get(0).(*models.Theme); ok {
		return theme, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSettingsRepository) FindLanguageByID(ctx context.Context, id uuid.UUID) (*models.Language, error) {
	args := m.Called(ctx, id)
	if language, ok := args.Get(0).(*models.Language); ok {
		return language, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSettingsRepository) FindToneByID(ctx context.Context, id uuid.UUID) (*models.Tone, error) {
	args := m.Called(ctx, id)
	if tone, ok := args.Get(0).(*models.Tone); ok {
		return tone, args.Error(1)
	}
	return nil, args.Error(1)
}
