package handler

import (
	"time"

	"github.com/google/uuid"

	"fable-server/internal/models"
)

type createStoryRequest struct {
	Synopsis           string    `json:"synopsis"`
	ProtagonistName    string    `json:"protagonistName" binding:"required"`
	ProtagonistSpecies string    `json:"protagonistSpecies" binding:"required"`
	ChildAge           int       `json:"childAge" binding:"required"`
	ThemeID            uuid.UUID `json:"themeId" binding:"required"`
	LanguageID         uuid.UUID `json:"languageId" binding:"required"`
	ToneID             uuid.UUID `json:"toneId" binding:"required"`
	RequestedChapters  int       `json:"requestedChapters" binding:"required"`
	IsPublic           bool      `json:"isPublic"`
}

type chapterResponse struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type storyResponse struct {
	ID                 uuid.UUID         `json:"id"`
	OwnerID            uuid.UUID         `json:"ownerId"`
	Title              string            `json:"title"`
	Slug               string            `json:"slug"`
	Synopsis           string            `json:"synopsis,omitempty"`
	ProtagonistName    string            `json:"protagonistName"`
	ProtagonistSpecies string            `json:"protagonistSpecies"`
	ChildAge           int               `json:"childAge"`
	ThemeID            uuid.UUID         `json:"themeId"`
	LanguageID         uuid.UUID         `json:"languageId"`
	ToneID             uuid.UUID         `json:"toneId"`
	RequestedChapters  int               `json:"requestedChapters"`
	GenerationStatus   string            `json:"generationStatus"`
	JobID              *string           `json:"jobId,omitempty"`
	LastError          *string           `json:"lastError,omitempty"`
	Chapters           []chapterResponse `json:"chapters,omitempty"`
	CoverImageURL      *string           `json:"coverImageUrl,omitempty"`
	Conclusion         *string           `json:"conclusion,omitempty"`
	IsPublic           bool              `json:"isPublic"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toStoryResponse(s *models.Story) storyResponse {
	resp := storyResponse{
		ID:                 s.ID,
		OwnerID:            s.OwnerID,
		Title:              s.Title,
		Slug:               s.Slug,
		Synopsis:           s.Synopsis,
		ProtagonistName:    s.ProtagonistName,
		ProtagonistSpecies: s.ProtagonistSpecies,
		ChildAge:           s.ChildAge,
		ThemeID:            s.ThemeID,
		LanguageID:         s.LanguageID,
		ToneID:             s.ToneID,
		RequestedChapters:  s.RequestedChapters,
		GenerationStatus:   string(s.GenerationStatus),
		JobID:              s.JobID,
		LastError:          s.LastError,
		CoverImageURL:      s.CoverImageURL,
		Conclusion:         s.Conclusion,
		IsPublic:           s.IsPublic,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
	for _, ch := range s.Chapters {
		resp.Chapters = append(resp.Chapters, chapterResponse{
			Position: ch.Position,
			Title:    ch.Title,
			Content:  ch.Content,
			ImageURL: ch.ImageURL,
		})
	}
	return resp
}
