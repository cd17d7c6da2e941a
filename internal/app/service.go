// Package app is the application layer — the only component that references
// multiple domain components. It orchestrates all use cases and owns the
// request-layer gates (closure, rate limiting, reputation).
package app

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/plus-me/backend/internal/domain"
	"github.com/plus-me/backend/internal/logging"
	"github.com/plus-me/backend/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// ReportDeduper suppresses repeated identical report dispatches within a
// window. Nil disables deduplication.
type ReportDeduper interface {
	FirstSeen(ctx context.Context, questionID uuid.UUID, reason string) (bool, error)
}

// Service implements domain.AppService.
type Service struct {
	users     domain.UserRepository
	questions domain.QuestionRepository
	votes     domain.VoteRepository
	answers   domain.AnswerRepository
	tags      domain.TagRepository
	limiter   domain.VoteRateLimiter
	notifier  domain.ReportNotifier
	dedupe    ReportDeduper
	clock     clockwork.Clock

	// randInt picks a uniform index in [0, n); injectable for tests.
	randInt func(n int) int

	// reportGroup collapses concurrent dispatches of the same report.
	reportGroup singleflight.Group
}

// NewService creates the application layer service. limiter and dedupe may be
// nil (no rate limiting / no dedupe); notifier may be nil (reports are
// accepted but not dispatched).
func NewService(
	users domain.UserRepository,
	questions domain.QuestionRepository,
	votes domain.VoteRepository,
	answers domain.AnswerRepository,
	tags domain.TagRepository,
	limiter domain.VoteRateLimiter,
	notifier domain.ReportNotifier,
	dedupe ReportDeduper,
	clock clockwork.Clock,
) *Service {
	return &Service{
		users:     users,
		questions: questions,
		votes:     votes,
		answers:   answers,
		tags:      tags,
		limiter:   limiter,
		notifier:  notifier,
		dedupe:    dedupe,
		clock:     clock,
		randInt:   rand.IntN,
	}
}

// CreateQuestion charges the CREATE_QUESTION reputation cost, inserts the
// question, and records the creator's auto-upvote. The auto-upvote carries no
// additional reputation effect.
func (s *Service) CreateQuestion(ctx context.Context, userID uuid.UUID, text string, tagIDs []uuid.UUID) (*domain.Question, error) {
	ok, err := s.users.UpdateReputation(ctx, userID, domain.ActionCreateQuestion)
	if err != nil {
		return nil, fmt.Errorf("reputation gate failed: %w", err)
	}
	if !ok {
		metrics.ReputationGateRejections.WithLabelValues(string(domain.ActionCreateQuestion)).Inc()
		return nil, domain.ErrInsufficientReputation
	}

	question, err := s.questions.Create(ctx, domain.NewQuestion{
		UserID: userID,
		Text:   text,
		TagIDs: tagIDs,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.votes.VoteBy(ctx, question.ID, userID, true, false); err != nil {
		return nil, fmt.Errorf("failed to record creator auto-upvote: %w", err)
	}

	metrics.QuestionsCreated.Inc()

	// Re-read so the response carries the annotated score.
	return s.questions.GetByID(ctx, question.ID)
}

func (s *Service) GetQuestion(ctx context.Context, id uuid.UUID) (*domain.Question, error) {
	return s.questions.GetByID(ctx, id)
}

func (s *Service) ListQuestions(ctx context.Context, f domain.QuestionFilters) ([]domain.Question, error) {
	return s.questions.List(ctx, f)
}

func (s *Service) MyQuestions(ctx context.Context, userID uuid.UUID, f domain.QuestionFilters) ([]domain.Question, error) {
	f.OwnerID = &userID
	return s.questions.List(ctx, f)
}

// RandomUnseen picks an open question the user has not voted on, uniformly
// among all candidates. Returns domain.ErrNoQuestionsLeft when none remain.
func (s *Service) RandomUnseen(ctx context.Context, userID uuid.UUID) (*domain.Question, error) {
	count, err := s.questions.CountUnseen(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrNoQuestionsLeft
	}
	if count == 1 {
		return s.questions.UnseenAt(ctx, userID, 0)
	}
	return s.questions.UnseenAt(ctx, userID, s.randInt(count))
}

// Vote applies an up/down vote after running the ordered request gates:
// question exists, question open, rate limit. The vote itself carries the
// configured reputation effect.
func (s *Service) Vote(ctx context.Context, questionID, userID uuid.UUID, up bool) (*domain.Question, error) {
	start := s.clock.Now()

	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	if err := s.runVoteGuards(ctx, question, userID); err != nil {
		return nil, err
	}

	result, err := s.votes.VoteBy(ctx, questionID, userID, up, true)
	if err != nil {
		return nil, err
	}

	metrics.VotesProcessed.WithLabelValues(result.String()).Inc()
	metrics.VoteDuration.Observe(s.clock.Since(start).Seconds())

	// Re-read so the response carries the updated score.
	return s.questions.GetByID(ctx, questionID)
}

func (s *Service) MyVotes(ctx context.Context, userID uuid.UUID, up bool, answered *bool) ([]domain.Question, error) {
	return s.questions.List(ctx, domain.QuestionFilters{
		VoterID:  &userID,
		VoteUp:   &up,
		Answered: answered,
	})
}

// CloseQuestion marks a question closed. Only staff or the owner may close;
// the transition is irreversible.
func (s *Service) CloseQuestion(ctx context.Context, questionID, userID uuid.UUID, isStaff bool) error {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	if !isStaff && question.UserID != userID {
		return domain.ErrNotOwner
	}
	return s.questions.Close(ctx, questionID, s.clock.Now())
}

func (s *Service) QuestionAnswers(ctx context.Context, questionID uuid.UUID) ([]domain.Answer, error) {
	if _, err := s.questions.GetByID(ctx, questionID); err != nil {
		return nil, err
	}
	return s.answers.ListByQuestion(ctx, questionID)
}

func (s *Service) QuestionTags(ctx context.Context, questionID uuid.UUID) ([]domain.Tag, error) {
	if _, err := s.questions.GetByID(ctx, questionID); err != nil {
		return nil, err
	}
	return s.tags.ListByQuestion(ctx, questionID)
}

// Report renders and dispatches a moderation report. The operation never
// mutates question, vote, or user state; sink failures are invisible to the
// caller. Repeated identical reports within the dedupe window dispatch once.
func (s *Service) Report(ctx context.Context, questionID, reporterID uuid.UUID, reason string) error {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	reporter, err := s.users.GetByID(ctx, reporterID)
	if err != nil {
		return err
	}

	if s.dedupe != nil {
		first, err := s.dedupe.FirstSeen(ctx, questionID, reason)
		if err != nil {
			// Fail open: a broken dedupe store must not drop reports.
			logging.WithQuestion(questionID).Warn("Report dedupe check failed", "error", err)
		} else if !first {
			logging.WithQuestion(questionID).Info("Suppressed duplicate report")
			return nil
		}
	}

	if s.notifier == nil {
		return nil
	}

	key := questionID.String() + ":" + reason
	_, _, _ = s.reportGroup.Do(key, func() (any, error) {
		s.notifier.Report(ctx, question, reporter, reason)
		return nil, nil
	})
	return nil
}

func (s *Service) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.List(ctx)
}

func (s *Service) CreateTag(ctx context.Context, name string) (*domain.Tag, error) {
	return s.tags.Create(ctx, name)
}

func (s *Service) QuestionsByTag(ctx context.Context, tagID uuid.UUID) ([]domain.Question, error) {
	return s.questions.List(ctx, domain.QuestionFilters{TagID: &tagID})
}
