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

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the ledger update
// can run standalone or inside a vote transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, email, username, reputation, is_staff, created_at, updated_at`

// UserRepo implements domain.UserRepository backed by PostgreSQL. It is the
// reputation ledger: the reputation column is only ever written here.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.Reputation,
		&user.IsStaff, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// UpdateReputation applies the configured amount for the action key as a
// single guarded statement. The WHERE clause makes the balance check and the
// write one atomic unit, so concurrent calls for the same user cannot drive
// the balance negative.
func (r *UserRepo) UpdateReputation(ctx context.Context, userID uuid.UUID, action domain.ActionKey) (bool, error) {
	return updateReputation(ctx, r.pool, userID, action)
}

// UpdateReputationTx is the same ledger update bound to an open transaction,
// used by the vote store so the vote row and its reputation effect commit
// together.
func (r *UserRepo) UpdateReputationTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, action domain.ActionKey) (bool, error) {
	return updateReputation(ctx, tx, userID, action)
}

func updateReputation(ctx context.Context, q querier, userID uuid.UUID, action domain.ActionKey) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE users u
		SET reputation = u.reputation + ra.amount, updated_at = NOW()
		FROM reputation_actions ra
		WHERE u.id = $1 AND ra.action = $2 AND u.reputation + ra.amount >= 0
	`, userID, string(action))
	if err != nil {
		return false, fmt.Errorf("failed to update reputation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows: missing user, unconfigured action, or a refused spend.
	// Only the last one is a regular gate failure.
	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return false, domain.ErrUserNotFound
	}

	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reputation_actions WHERE action = $1)`, string(action)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reputation action: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("reputation action %q is not configured", action)
	}

	return false, nil
}
