package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fable-server/internal/models"
)

type pgStoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ StoryRepository = (*pgStoryRepository)(nil)

// NewPgStoryRepository creates a PostgreSQL-backed story repository.
func NewPgStoryRepository(pool *pgxpool.Pool, logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		pool:   pool,
		logger: logger.Named("pg_story_repository"),
	}
}

// dbStory mirrors the stories table; chapters live in a jsonb column.
type dbStory struct {
	ID                 uuid.UUID       `db:"id"`
	OwnerID            uuid.UUID       `db:"owner_id"`
	Title              string          `db:"title"`
	Synopsis           string          `db:"synopsis"`
	ProtagonistName    string          `db:"protagonist_name"`
	ProtagonistSpecies string          `db:"protagonist_species"`
	ChildAge           int             `db:"child_age"`
	Slug               string          `db:"slug"`
	ThemeID            uuid.UUID       `db:"theme_id"`
	LanguageID         uuid.UUID       `db:"language_id"`
	ToneID             uuid.UUID       `db:"tone_id"`
	RequestedChapters  int             `db:"requested_chapters"`
	GenerationStatus   string          `db:"generation_status"`
	JobID              *string         `db:"job_id"`
	LastError          *string         `db:"last_error"`
	Chapters           json.RawMessage `db:"chapters"`
	CoverImageURL      *string         `db:"cover_image_url"`
	Conclusion         *string         `db:"conclusion"`
	IsPublic           bool            `db:"is_public"`
	PublishedAt        *time.Time      `db:"published_at"`
	Version            int64           `db:"version"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r *dbStory) toModel() (*models.Story, error) {
	status := models.GenerationStatus(r.GenerationStatus)
	if !models.IsValidGenerationStatus(status) {
		return nil, fmt.Errorf("story %s has unknown generation status %q", r.ID, r.GenerationStatus)
	}
	var chapters []models.Chapter
	if len(r.Chapters) > 0 {
		if err := json.Unmarshal(r.Chapters, &chapters); err != nil {
			return nil, fmt.Errorf("failed to decode chapters for story %s: %w", r.ID, err)
		}
	}
	return &models.Story{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		Title:              r.Title,
		Synopsis:           r.Synopsis,
		ProtagonistName:    r.ProtagonistName,
		ProtagonistSpecies: r.ProtagonistSpecies,
		ChildAge:           r.ChildAge,
		Slug:               r.Slug,
		ThemeID:            r.ThemeID,
		LanguageID:         r.LanguageID,
		ToneID:             r.ToneID,
		RequestedChapters:  r.RequestedChapters,
		GenerationStatus:   status,
		JobID:              r.JobID,
		LastError:          r.LastError,
		Chapters:           chapters,
		CoverImageURL:      r.CoverImageURL,
		Conclusion:         r.Conclusion,
		IsPublic:           r.IsPublic,
		PublishedAt:        r.PublishedAt,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}

func encodeChapters(chapters []models.Chapter) ([]byte, error) {
	if chapters == nil {
		chapters = []models.Chapter{}
	}
	data, err := json.Marshal(chapters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chapters: %w", err)
	}
	return data, nil
}

const storyColumns = `id, owner_id, title, synopsis, protagonist_name, protagonist_species,
	child_age, slug, theme_id, language_id, tone_id, requested_chapters,
	generation_status, job_id, last_error, chapters, cover_image_url, conclusion,
	is_public, published_at, version, created_at, updated_at`

func (r *pgStoryRepository) Create(ctx context.Context, story *models.Story) error {
	chapters, err := encodeChapters(story.Chapters)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO stories (` + storyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23)`
	_, err = r.pool.Exec(ctx, query,
		story.ID, story.OwnerID, story.Title, story.Synopsis,
		story.ProtagonistName, story.ProtagonistSpecies, story.ChildAge, story.Slug,
		story.ThemeID, story.LanguageID, story.ToneID, story.RequestedChapters,
		string(story.GenerationStatus), story.JobID, story.LastError, chapters,
		story.CoverImageURL, story.Conclusion, story.IsPublic, story.PublishedAt,
		story.Version, story.CreatedAt, story.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to insert story", zap.String("story_id", story.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var row dbStory
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`
	if err := pgxscan.Get(ctx, r.pool, &row, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return row.toModel()
}

// UpdateGeneration writes the generation-related fields with a compare-and-swap
// on version. On success the in-memory aggregate's version is advanced to
// match the row.
func (r *pgStoryRepository) UpdateGeneration(ctx context.Context, story *models.Story) error {
	chapters, err := encodeChapters(story.Chapters)
	if err != nil {
		return err
	}
	query := `
		UPDATE stories
		SET title = $1, slug = $2, generation_status = $3, job_id = $4,
		    last_error = $5, chapters = $6, cover_image_url = $7, conclusion = $8,
		    version = version + 1, updated_at = $9
		WHERE id = $10 AND version = $11`
	tag, err := r.pool.Exec(ctx, query,
		story.Title, story.Slug, string(story.GenerationStatus), story.JobID,
		story.LastError, chapters, story.CoverImageURL, story.Conclusion,
		story.UpdatedAt, story.ID, story.Version)
	if err != nil {
		r.logger.Error("failed to update story generation state",
			zap.String("story_id", story.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update story %s: %w", story.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stories WHERE id = $1)`, story.ID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to update story %s: %w", story.ID, checkErr)
		}
		if !exists {
			return models.ErrStoryNotFound
		}
		return models.ErrVersionConflict
	}
	story.Version++
	return nil
}

func (r *pgStoryRepository) CountOwnedBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM stories WHERE owner_id = $1 AND created_at >= $2 AND created_at < $3`
	if err := r.pool.QueryRow(ctx, query, ownerID, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stories for owner %s: %w", ownerID, err)
	}
	return count, nil
}
