package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/plus-me/backend/internal/domain"
	"github.com/plus-me/backend/internal/metrics"
)

// voteGuard rejects a vote request before it reaches storage. Guards run in a
// fixed order so clients see stable error precedence: closure beats rate
// limiting.
type voteGuard func(ctx context.Context, question *domain.Question, userID uuid.UUID) error

func (s *Service) runVoteGuards(ctx context.Context, question *domain.Question, userID uuid.UUID) error {
	guards := []voteGuard{
		s.guardOpen,
		s.guardRateLimit,
	}
	for _, guard := range guards {
		if err := guard(ctx, question, userID); err != nil {
			return err
		}
	}
	return nil
}

// guardOpen gates on the closed flag itself; closed_date is display metadata
// and may be absent on rows closed outside the API.
func (s *Service) guardOpen(_ context.Context, question *domain.Question, _ uuid.UUID) error {
	if question.Closed {
		return domain.ErrQuestionClosed
	}
	return nil
}

func (s *Service) guardRateLimit(ctx context.Context, _ *domain.Question, userID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		return fmt.Errorf("rate limiter failed: %w", err)
	}
	if !allowed {
		metrics.VotesRateLimited.Inc()
		return domain.ErrRateLimited
	}
	return nil
}
