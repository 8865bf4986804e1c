package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fable-server/internal/models"
)

// StoryRepository persists story aggregates. UpdateGeneration is conditional
// on the aggregate version read by the caller; a lost race surfaces as
// models.ErrVersionConflict, never as a silent overwrite.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)
	UpdateGeneration(ctx context.Context, story *models.Story) error
	CountOwnedBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (int, error)
}

// SettingsRepository resolves catalog entities referenced by id.
type SettingsRepository interface {
	FindThemeByID(ctx context.Context, id uuid.UUID) (*models.Theme, error)
	FindLanguageByID(ctx context.Context, id uuid.UUID) (*models.Language, error)
	FindToneByID(ctx context.Context, id uuid.UUID) (*models.Tone, error)
}
