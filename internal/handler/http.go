package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/models"
	"fable-server/internal/service"
)

// Identity headers set by the upstream gateway after authentication.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// StoryHandler exposes the story lifecycle over HTTP.
type StoryHandler struct {
	stories service.StoryService
	quota   service.QuotaChecker
	logger  *zap.Logger
}

// NewStoryHandler creates the handler.
func NewStoryHandler(stories service.StoryService, quota service.QuotaChecker, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		stories: stories,
		quota:   quota,
		logger:  logger.Named("story_handler"),
	}
}

// RegisterRoutes mounts the API under /api/v1.
func (h *StoryHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/stories", h.createStory)
		v1.POST("/stories/generate", h.queueGeneration)
		v1.POST("/stories/:id/retry", h.retryGeneration)
		v1.GET("/stories/:id", h.getStory)
		v1.GET("/quota", h.getQuota)
	}
}

func (h *StoryHandler) createStory(c *gin.Context) {
	input, ok := h.bindCreateInput(c)
	if !ok {
		return
	}
	story, err := h.stories.CreateStory(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStoryResponse(story))
}

func (h *StoryHandler) queueGeneration(c *gin.Context) {
	input, ok := h.bindCreateInput(c)
	if !ok {
		return
	}
	story, err := h.stories.QueueGeneration(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toStoryResponse(story))
}

func (h *StoryHandler) retryGeneration(c *gin.Context) {
	userID, _, ok := h.identity(c)
	if !ok {
		return
	}
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid story id"})
		return
	}
	story, err := h.stories.RetryGeneration(c.Request.Context(), storyID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toStoryResponse(story))
}

func (h *StoryHandler) getStory(c *gin.Context) {
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid story id"})
		return
	}
	story, err := h.stories.GetStory(c.Request.Context(), storyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStoryResponse(story))
}

func (h *StoryHandler) getQuota(c *gin.Context) {
	userID, role, ok := h.identity(c)
	if !ok {
		return
	}
	status, err := h.quota.CheckQuota(c.Request.Context(), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *StoryHandler) bindCreateInput(c *gin.Context) (service.CreateStoryInput, bool) {
	userID, role, ok := h.identity(c)
	if !ok {
		return service.CreateStoryInput{}, false
	}
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return service.CreateStoryInput{}, false
	}
	return service.CreateStoryInput{
		OwnerID:            userID,
		Role:               role,
		Synopsis:           req.Synopsis,
		ProtagonistName:    req.ProtagonistName,
		ProtagonistSpecies: req.ProtagonistSpecies,
		ChildAge:           req.ChildAge,
		ThemeID:            req.ThemeID,
		LanguageID:         req.LanguageID,
		ToneID:             req.ToneID,
		RequestedChapters:  req.RequestedChapters,
		IsPublic:           req.IsPublic,
	}, true
}

func (h *StoryHandler) identity(c *gin.Context) (uuid.UUID, models.Role, bool) {
	raw := c.GetHeader(headerUserID)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "missing user identity"})
		return uuid.Nil, models.RoleFree, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid user identity"})
		return uuid.Nil, models.RoleFree, false
	}
	return userID, models.ParseRole(c.GetHeader(headerUserRole)), true
}

func (h *StoryHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrStoryNotFound), errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrStateConflict), errors.Is(err, models.ErrVersionConflict):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
