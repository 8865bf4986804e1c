package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fable-server/internal/models"
)

type pgSettingsRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ SettingsRepository = (*pgSettingsRepository)(nil)

// NewPgSettingsRepository creates a PostgreSQL-backed catalog repository.
func NewPgSettingsRepository(pool *pgxpool.Pool, logger *zap.Logger) SettingsRepository {
	return &pgSettingsRepository{
		pool:   pool,
		logger: logger.Named("pg_settings_repository"),
	}
}

func (r *pgSettingsRepository) FindThemeByID(ctx context.Context, id uuid.UUID) (*models.Theme, error) {
	var theme models.Theme
	query := `SELECT id, code, name, created_at FROM themes WHERE id = $1`
	if err := pgxscan.Get(ctx, r.pool, &theme, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("theme %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find theme %s: %w", id, err)
	}
	return &theme, nil
}

func (r *pgSettingsRepository) FindLanguageByID(ctx context.Context, id uuid.UUID) (*models.Language, error) {
	var language models.Language
	query := `SELECT id, code, name, created_at FROM languages WHERE id = $1`
	if err := pgxscan.Get(ctx, r.pool, &language, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("language %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find language %s: %w", id, err)
	}
	return &language, nil
}

func (r *pgSettingsRepository) FindToneByID(ctx context.Context, id uuid.UUID) (*models.Tone, error) {
	var tone models.Tone
	query := `SELECT id, code, name, created_at FROM tones WHERE id = $1`
	if err := pgxscan.Get(ctx, r.pool, &tone, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tone %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find tone %s: %w", id, err)
	}
	return &tone, nil
}
