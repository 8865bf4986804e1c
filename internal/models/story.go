package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Child age and chapter count bounds.
const (
	ChildAgeMin = 2
	ChildAgeMax = 12

	RequestedChaptersMin = 1
	RequestedChaptersMax = 10
)

// PlaceholderTitle is used while the asynchronous generation has not produced
// the final title yet.
const PlaceholderTitle = "Untitled Story"

// Story is the aggregate root for generation: the unit of consistency for the
// whole lifecycle. All state-mutating writes go through the repository with a
// compare-and-swap on Version.
type Story struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"ownerId"`

	Title              string `json:"title"`
	Synopsis           string `json:"synopsis"`
	ProtagonistName    string `json:"protagonistName"`
	ProtagonistSpecies string `json:"protagonistSpecies"`
	ChildAge           int    `json:"childAge"`
	Slug               string `json:"slug"`

	ThemeID    uuid.UUID `json:"themeId"`
	LanguageID uuid.UUID `json:"languageId"`
	ToneID     uuid.UUID `json:"toneId"`

	RequestedChapters int              `json:"requestedChapters"`
	GenerationStatus  GenerationStatus `json:"generationStatus"`
	JobID             *string          `json:"jobId,omitempty"`
	LastError         *string          `json:"lastError,omitempty"`

	Chapters      []Chapter `json:"chapters,omitempty"`
	CoverImageURL *string   `json:"coverImageUrl,omitempty"`
	Conclusion    *string   `json:"conclusion,omitempty"`

	IsPublic    bool       `json:"isPublic"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	// Version is the optimistic-concurrency token: incremented by the
	// repository on every successful conditional update.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewStoryParams carries the validated input for building a story aggregate.
type NewStoryParams struct {
	OwnerID            uuid.UUID
	Synopsis           string
	ProtagonistName    string
	ProtagonistSpecies string
	ChildAge           int
	ThemeID            uuid.UUID
	LanguageID         uuid.UUID
	ToneID             uuid.UUID
	RequestedChapters  int
	IsPublic           bool
}

// Validate checks the descriptive fields against their bounds.
func (p NewStoryParams) Validate() error {
	if p.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.ProtagonistName) == "" {
		return fmt.Errorf("%w: protagonist name is required", ErrInvalidInput)
	}
	if p.ChildAge < ChildAgeMin || p.ChildAge > ChildAgeMax {
		return fmt.Errorf("%w: child age %d out of range [%d, %d]", ErrInvalidInput, p.ChildAge, ChildAgeMin, ChildAgeMax)
	}
	if p.RequestedChapters < RequestedChaptersMin || p.RequestedChapters > RequestedChaptersMax {
		return fmt.Errorf("%w: chapter count %d out of range [%d, %d]",
			ErrInvalidInput, p.RequestedChapters, RequestedChaptersMin, RequestedChaptersMax)
	}
	if p.ThemeID == uuid.Nil || p.LanguageID == uuid.Nil || p.ToneID == uuid.Nil {
		return fmt.Errorf("%w: theme, language and tone are required", ErrInvalidInput)
	}
	return nil
}

// NewPendingStory builds the aggregate in its initial pending state with a
// placeholder title, before any job has been dispatched.
func NewPendingStory(p NewStoryParams) (*Story, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Story{
		ID:                 uuid.New(),
		OwnerID:            p.OwnerID,
		Title:              PlaceholderTitle,
		Synopsis:           p.Synopsis,
		ProtagonistName:    p.ProtagonistName,
		ProtagonistSpecies: p.ProtagonistSpecies,
		ChildAge:           p.ChildAge,
		Slug:               Slugify(PlaceholderTitle),
		ThemeID:            p.ThemeID,
		LanguageID:         p.LanguageID,
		ToneID:             p.ToneID,
		RequestedChapters:  p.RequestedChapters,
		GenerationStatus:   GenerationPending,
		IsPublic:           p.IsPublic,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// NewCompletedStory builds a fully generated aggregate in one shot, for the
// synchronous creation path. There is no pending phase: content is already
// present and the status is completed.
func NewCompletedStory(p NewStoryParams, title string, chapters []Chapter, coverImageURL, conclusion string) (*Story, error) {
	story, err := NewPendingStory(p)
	if err != nil {
		return nil, err
	}
	if len(chapters) != p.RequestedChapters {
		return nil, fmt.Errorf("%w: got %d chapters, requested %d", ErrInvalidInput, len(chapters), p.RequestedChapters)
	}
	if coverImageURL == "" {
		return nil, fmt.Errorf("%w: cover image is mandatory for a completed story", ErrInvalidInput)
	}
	story.Title = title
	story.Slug = Slugify(title)
	story.GenerationStatus = GenerationCompleted
	story.Chapters = chapters
	story.CoverImageURL = &coverImageURL
	if conclusion != "" {
		story.Conclusion = &conclusion
	}
	return story, nil
}

// StartGeneration moves pending -> processing, recording the dispatched job
// id. Used both on first dispatch and on retry re-dispatch.
func (s *Story) StartGeneration(jobID string) error {
	if !s.GenerationStatus.CanTransitionTo(GenerationProcessing) {
		return NewStateConflict("start generation", s.GenerationStatus, GenerationPending)
	}
	if jobID == "" {
		return fmt.Errorf("%w: job id is required to start generation", ErrInvalidInput)
	}
	s.GenerationStatus = GenerationProcessing
	s.JobID = &jobID
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// CompleteGeneration assembles the final content and moves processing ->
// completed. The chapter count must exactly equal the originally requested
// count; a mismatch rejects the call so the caller can fail the generation
// with a descriptive error instead.
func (s *Story) CompleteGeneration(chapters []Chapter, coverImageURL, conclusion, title string) error {
	if !s.GenerationStatus.CanTransitionTo(GenerationCompleted) {
		return NewStateConflict("complete generation", s.GenerationStatus, GenerationProcessing)
	}
	if len(chapters) != s.RequestedChapters {
		return fmt.Errorf("%w: generated %d chapters, requested %d", ErrInvalidInput, len(chapters), s.RequestedChapters)
	}
	if coverImageURL == "" {
		return fmt.Errorf("%w: cover image is mandatory for completion", ErrInvalidInput)
	}
	if strings.TrimSpace(title) != "" {
		s.Title = title
		s.Slug = Slugify(title)
	}
	s.Chapters = chapters
	s.CoverImageURL = &coverImageURL
	s.Conclusion = &conclusion
	s.GenerationStatus = GenerationCompleted
	s.LastError = nil
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// FailGeneration records the error and moves processing -> failed. Outside
// processing it is a no-op returning false: a mismatch here indicates a race
// and the caller must log it rather than overwrite newer state.
func (s *Story) FailGeneration(errorMessage string) bool {
	if s.GenerationStatus != GenerationProcessing {
		return false
	}
	s.GenerationStatus = GenerationFailed
	s.LastError = &errorMessage
	s.UpdatedAt = time.Now().UTC()
	return true
}

// CanRetryGeneration reports whether an owner retry is currently allowed.
func (s *Story) CanRetryGeneration() bool {
	return s.GenerationStatus == GenerationFailed
}

// RetryGeneration moves failed -> pending, clearing the last error. The old
// job id is kept until a new job is actually dispatched.
func (s *Story) RetryGeneration() error {
	if !s.CanRetryGeneration() {
		return NewStateConflict("retry generation", s.GenerationStatus, GenerationFailed)
	}
	s.GenerationStatus = GenerationPending
	s.LastError = nil
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Slugify derives a URL slug from a title: lowercase, runs of non-alphanumeric
// characters collapsed into single dashes.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
