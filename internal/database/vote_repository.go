package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plus-me/backend/internal/domain"
)

// VoteRepo implements domain.VoteRepository backed by PostgreSQL. The
// (user_id, question_id) primary key is the hard backstop for the
// at-most-one-vote invariant; row locking serializes concurrent calls on the
// same pair.
type VoteRepo struct {
	pool  *pgxpool.Pool
	users *UserRepo
}

func NewVoteRepo(pool *pgxpool.Pool, users *UserRepo) *VoteRepo {
	return &VoteRepo{pool: pool, users: users}
}

// VoteBy records a first vote, flips an existing one in place, or does
// nothing when the polarity is already recorded. The vote row and its
// reputation effect commit in one transaction, so neither can land without
// the other.
func (r *VoteRepo) VoteBy(ctx context.Context, questionID, userID uuid.UUID, up, updateRep bool) (domain.VoteResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	existing, err := lockVote(ctx, tx, questionID, userID)
	if err != nil {
		return 0, err
	}

	result := domain.ResolveVote(existing, up)
	switch result {
	case domain.VoteCreated:
		created, err := r.insertVote(ctx, tx, questionID, userID, up, updateRep)
		if err != nil {
			return 0, err
		}
		if !created {
			// A concurrent first-vote won the race; the pair already has its
			// row, so this call degrades to an idempotent repeat.
			result = domain.VoteUnchanged
		}
	case domain.VoteSwitched:
		if _, err := tx.Exec(ctx, `
			UPDATE votes SET up = $3, updated_at = NOW()
			WHERE question_id = $1 AND user_id = $2
		`, questionID, userID, up); err != nil {
			return 0, fmt.Errorf("failed to switch vote: %w", err)
		}
	case domain.VoteUnchanged:
		// Idempotent repeat; nothing to write.
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// lockVote reads the pair's vote row FOR UPDATE so concurrent VoteBy calls on
// the same (user, question) serialize. Returns nil when no row exists.
func lockVote(ctx context.Context, tx pgx.Tx, questionID, userID uuid.UUID) (*domain.Vote, error) {
	var v domain.Vote
	err := tx.QueryRow(ctx, `
		SELECT question_id, user_id, up, created_at, updated_at
		FROM votes
		WHERE question_id = $1 AND user_id = $2
		FOR UPDATE
	`, questionID, userID).Scan(&v.QuestionID, &v.UserID, &v.Up, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock vote row: %w", err)
	}
	return &v, nil
}

// insertVote writes the first vote for the pair. ON CONFLICT DO NOTHING is
// the lost-update backstop: when the row did not exist yet, FOR UPDATE had
// nothing to hold, so two concurrent first-votes can both reach the insert.
// The loser reports created=false without aborting the transaction.
func (r *VoteRepo) insertVote(ctx context.Context, tx pgx.Tx, questionID, userID uuid.UUID, up, updateRep bool) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO votes (question_id, user_id, up)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, question_id) DO NOTHING
	`, questionID, userID, up)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return false, domain.ErrQuestionNotFound
		}
		return false, fmt.Errorf("failed to insert vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if updateRep {
		ok, err := r.users.UpdateReputationTx(ctx, tx, userID, domain.ActionVoteQuestion)
		if err != nil {
			return false, fmt.Errorf("failed to apply vote reputation effect: %w", err)
		}
		if !ok {
			return false, domain.ErrInsufficientReputation
		}
	}
	return true, nil
}
