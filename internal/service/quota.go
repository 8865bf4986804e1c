package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/models"
	"fable-server/internal/repository"
)

// QuotaChecker computes whether an owner may create another story this month.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, ownerID uuid.UUID, role models.Role) (*models.QuotaStatus, error)
}

type quotaService struct {
	stories repository.StoryRepository
	limit   int
	now     func() time.Time
	logger  *zap.Logger
}

var _ QuotaChecker = (*quotaService)(nil)

// NewQuotaService creates the quota gate. A nil clock uses time.Now.
func NewQuotaService(stories repository.StoryRepository, monthlyLimit int, clock func() time.Time, logger *zap.Logger) QuotaChecker {
	if clock == nil {
		clock = time.Now
	}
	return &quotaService{
		stories: stories,
		limit:   monthlyLimit,
		now:     clock,
		logger:  logger.Named("quota_service"),
	}
}

// CheckQuota recomputes the status on every call; nothing is cached across
// requests. It never blocks creation itself: callers decide on CanCreate.
func (s *quotaService) CheckQuota(ctx context.Context, ownerID uuid.UUID, role models.Role) (*models.QuotaStatus, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner id is required", models.ErrInvalidInput)
	}

	if role.IsUnlimited() {
		return &models.QuotaStatus{
			IsUnlimited: true,
			CanCreate:   true,
		}, nil
	}

	from, to := models.UTCMonthWindow(s.now())
	created, err := s.stories.CountOwnedBetween(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count stories for quota: %w", err)
	}

	limit := s.limit
	remaining := limit - created
	if remaining < 0 {
		remaining = 0
	}
	resetAt := to

	return &models.QuotaStatus{
		CreatedThisMonth: created,
		Limit:            &limit,
		Remaining:        &remaining,
		ResetAt:          &resetAt,
		IsUnlimited:      false,
		CanCreate:        created < limit,
	}, nil
}
