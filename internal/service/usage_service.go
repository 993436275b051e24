package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/repository"
)

// RollingUsage is the legacy per-day usage view: messages counted over the
// last 24 hours against the classification's daily maximum. It coexists with
// the balance scheme and is reporting-only.
type RollingUsage struct {
	MessagesLast24h   int
	MaxMessagesPerDay int
}

// UsageService serves the legacy rolling-count read path.
type UsageService interface {
	GetRollingUsage(ctx context.Context, userID string, classification Classification) (RollingUsage, error)
}

type usageService struct {
	repo     repository.UsageRepository
	resolver EntitlementResolver
	clock    Clock
	logger   zerolog.Logger
}

// NewUsageService creates a UsageService with a scoped logger.
func NewUsageService(repo repository.UsageRepository, resolver EntitlementResolver, clock Clock, logger zerolog.Logger) UsageService {
	return &usageService{
		repo:     repo,
		resolver: resolver,
		clock:    clock,
		logger:   logger.With().Str("service", "UsageService").Logger(),
	}
}

func (s *usageService) GetRollingUsage(ctx context.Context, userID string, classification Classification) (RollingUsage, error) {
	ent, err := s.resolver.Resolve(classification)
	if err != nil {
		return RollingUsage{}, err
	}
	now := s.clock.Now()
	count, err := s.repo.CountMessagesInTimeRange(ctx, userID, now.Add(-TrialResetInterval), now)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to count messages")
		return RollingUsage{}, fmt.Errorf("counting rolling usage for user %s: %w", userID, err)
	}
	return RollingUsage{MessagesLast24h: count, MaxMessagesPerDay: ent.MaxMessagesPerDay}, nil
}
