// Package domain holds the model types, repository contracts, and application
// service contract shared by the storage, notification, and HTTP layers.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// User is owned by the external auth subsystem; only the reputation balance
// is mutated here, and only through UserRepository.UpdateReputation.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Reputation int       `json:"reputation"`
	IsStaff    bool      `json:"is_staff"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Question struct {
	ID          uuid.UUID  `json:"id"`
	Text        string     `json:"text"`
	UserID      uuid.UUID  `json:"user_id"`
	Closed      bool       `json:"closed"`
	TimeCreated time.Time  `json:"time_created"`
	ClosedDate  *time.Time `json:"closed_date,omitempty"`
	// Upvotes is derived at query time (#up votes minus #down votes),
	// never stored.
	Upvotes int `json:"upvotes"`
}

type Tag struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Answer struct {
	ID          uuid.UUID `json:"id"`
	QuestionID  uuid.UUID `json:"question_id"`
	UserID      uuid.UUID `json:"user_id"`
	Text        string    `json:"text"`
	TimeCreated time.Time `json:"time_created"`
}

// Vote is the relationship row keyed by (user, question). At most one row
// exists per pair; polarity switches update the row in place.
type Vote struct {
	QuestionID uuid.UUID `json:"question_id"`
	UserID     uuid.UUID `json:"user_id"`
	Up         bool      `json:"up"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ActionKey names a row in the reputation action table. The cost/reward
// amounts are configuration data, not code.
type ActionKey string

const (
	ActionCreateQuestion ActionKey = "CREATE_QUESTION"
	ActionVoteQuestion   ActionKey = "VOTE_QUESTION"
)

// VoteResult describes what a VoteBy call did to the vote row.
type VoteResult int

const (
	// VoteCreated means a first vote was recorded for the pair.
	VoteCreated VoteResult = iota
	// VoteSwitched means an existing vote flipped polarity in place.
	VoteSwitched
	// VoteUnchanged means the same polarity was already recorded.
	VoteUnchanged
)

func (r VoteResult) String() string {
	switch r {
	case VoteCreated:
		return "created"
	case VoteSwitched:
		return "switched"
	case VoteUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ResolveVote decides the transition for a vote request against the existing
// row (nil when the pair has no vote yet). The storage layer applies the
// decision; keeping it here makes the polarity rules testable on their own.
func ResolveVote(existing *Vote, up bool) VoteResult {
	if existing == nil {
		return VoteCreated
	}
	if existing.Up == up {
		return VoteUnchanged
	}
	return VoteSwitched
}

// --- Query types ---

type Ordering string

const (
	OrderNewest     Ordering = "time_created"
	OrderUpvotes    Ordering = "upvotes"
	OrderClosedDate Ordering = "closed_date"
)

// QuestionFilters narrows a listing. Nil pointer fields apply no filter.
type QuestionFilters struct {
	// Answered: true excludes zero-answer questions, false keeps only them.
	Answered *bool
	Closed   *bool
	TagID    *uuid.UUID
	OwnerID  *uuid.UUID
	// VoterID together with VoteUp restricts to questions the user voted on
	// with the given polarity.
	VoterID  *uuid.UUID
	VoteUp   *bool
	Ordering Ordering
}

// NewQuestion carries the fields needed to insert a question.
type NewQuestion struct {
	UserID uuid.UUID
	Text   string
	TagIDs []uuid.UUID
}

// --- Repository contracts ---

// UserRepository is the reputation ledger plus a read path for display.
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	// UpdateReputation applies the configured amount for the action key.
	// Returns false (and no mutation) when the balance would go negative.
	UpdateReputation(ctx context.Context, userID uuid.UUID, action ActionKey) (bool, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, q NewQuestion) (*Question, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Question, error)
	List(ctx context.Context, f QuestionFilters) ([]Question, error)
	// CountUnseen and UnseenAt back the random-unseen selector: open
	// questions the user has not voted on, in a stable order.
	CountUnseen(ctx context.Context, userID uuid.UUID) (int, error)
	UnseenAt(ctx context.Context, userID uuid.UUID, offset int) (*Question, error)
	Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error
}

// VoteRepository enforces the at-most-one-vote-per-(user,question) invariant.
type VoteRepository interface {
	// VoteBy records, flips, or ignores a vote. When updateRep is set and a
	// new row is created, the VOTE_QUESTION reputation effect commits in the
	// same transaction as the row.
	VoteBy(ctx context.Context, questionID, userID uuid.UUID, up, updateRep bool) (VoteResult, error)
}

type AnswerRepository interface {
	ListByQuestion(ctx context.Context, questionID uuid.UUID) ([]Answer, error)
}

type TagRepository interface {
	List(ctx context.Context) ([]Tag, error)
	Create(ctx context.Context, name string) (*Tag, error)
	ListByQuestion(ctx context.Context, questionID uuid.UUID) ([]Tag, error)
}

// --- Collaborator contracts ---

// VoteRateLimiter guards the vote endpoints against abuse.
type VoteRateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ReportNotifier renders and dispatches a moderation report. Implementations
// must isolate sink failures from each other and never mutate domain state.
type ReportNotifier interface {
	Report(ctx context.Context, question *Question, reporter *User, reason string)
}

// AppService is the application layer contract — handlers route all
// operations through here.
type AppService interface {
	CreateQuestion(ctx context.Context, userID uuid.UUID, text string, tagIDs []uuid.UUID) (*Question, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error)
	ListQuestions(ctx context.Context, f QuestionFilters) ([]Question, error)
	MyQuestions(ctx context.Context, userID uuid.UUID, f QuestionFilters) ([]Question, error)
	RandomUnseen(ctx context.Context, userID uuid.UUID) (*Question, error)
	Vote(ctx context.Context, questionID, userID uuid.UUID, up bool) (*Question, error)
	MyVotes(ctx context.Context, userID uuid.UUID, up bool, answered *bool) ([]Question, error)
	CloseQuestion(ctx context.Context, questionID, userID uuid.UUID, isStaff bool) error
	QuestionAnswers(ctx context.Context, questionID uuid.UUID) ([]Answer, error)
	QuestionTags(ctx context.Context, questionID uuid.UUID) ([]Tag, error)
	Report(ctx context.Context, questionID, reporterID uuid.UUID, reason string) error
	ListTags(ctx context.Context) ([]Tag, error)
	CreateTag(ctx context.Context, name string) (*Tag, error)
	QuestionsByTag(ctx context.Context, tagID uuid.UUID) ([]Question, error)
}
