package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plus-me/backend/internal/domain"
)

// foreignKeyViolation is the PostgreSQL error code for FK failures.
const foreignKeyViolation = "23503"

// questionSelect computes the derived upvotes score (#up minus #down) as one
// aggregated query per call, never per-row iteration.
const questionSelect = `
	SELECT q.id, q.text, q.user_id, q.closed, q.time_created, q.closed_date,
	       COALESCE(SUM(CASE WHEN v.up THEN 1 ELSE -1 END), 0)::int AS upvotes
	FROM questions q
	LEFT JOIN votes v ON v.question_id = q.id`

// unseenFilter selects open questions the user has cast no vote on.
const unseenFilter = `
	q.closed = FALSE
	AND NOT EXISTS (SELECT 1 FROM votes uv WHERE uv.question_id = q.id AND uv.user_id = $1)`

// QuestionRepo implements domain.QuestionRepository backed by PostgreSQL.
type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.ID, &q.Text, &q.UserID, &q.Closed, &q.TimeCreated, &q.ClosedDate, &q.Upvotes)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepo) Create(ctx context.Context, nq domain.NewQuestion) (*domain.Question, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var q domain.Question
	err = tx.QueryRow(ctx, `
		INSERT INTO questions (text, user_id)
		VALUES ($1, $2)
		RETURNING id, text, user_id, closed, time_created, closed_date
	`, nq.Text, nq.UserID).Scan(&q.ID, &q.Text, &q.UserID, &q.Closed, &q.TimeCreated, &q.ClosedDate)
	if err != nil {
		return nil, fmt.Errorf("failed to insert question: %w", err)
	}

	for _, tagID := range nq.TagIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO question_tags (question_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, q.ID, tagID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return nil, domain.ErrTagNotFound
			}
			return nil, fmt.Errorf("failed to attach tag: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &q, nil
}

func (r *QuestionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		questionSelect+` WHERE q.id = $1 GROUP BY q.id`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// List returns annotated questions matching the filters in the requested
// order. Ties break on id so the sort is stable across calls.
func (r *QuestionRepo) List(ctx context.Context, f domain.QuestionFilters) ([]domain.Question, error) {
	var (
		conds []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Answered != nil {
		if *f.Answered {
			conds = append(conds, `EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id)`)
		} else {
			conds = append(conds, `NOT EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id)`)
		}
	}
	if f.Closed != nil {
		conds = append(conds, `q.closed = `+arg(*f.Closed))
	}
	if f.TagID != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM question_tags qt WHERE qt.question_id = q.id AND qt.tag_id = `+arg(*f.TagID)+`)`)
	}
	if f.OwnerID != nil {
		conds = append(conds, `q.user_id = `+arg(*f.OwnerID))
	}
	if f.VoterID != nil {
		cond := `EXISTS (SELECT 1 FROM votes mv WHERE mv.question_id = q.id AND mv.user_id = ` + arg(*f.VoterID)
		if f.VoteUp != nil {
			cond += ` AND mv.up = ` + arg(*f.VoteUp)
		}
		conds = append(conds, cond+`)`)
	}

	query := questionSelect
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` GROUP BY q.id ORDER BY ` + orderClause(f.Ordering)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

// orderClause builds the ORDER BY expression. Ties break through the default
// creation-time order, then the id so the result is fully deterministic.
func orderClause(o domain.Ordering) string {
	switch o {
	case domain.OrderUpvotes:
		return `upvotes DESC, q.time_created DESC, q.id`
	case domain.OrderClosedDate:
		return `q.closed_date DESC NULLS LAST, q.time_created DESC, q.id`
	default:
		return `q.time_created DESC, q.id`
	}
}

func (r *QuestionRepo) CountUnseen(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions q WHERE `+unseenFilter, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unseen questions: %w", err)
	}
	return count, nil
}

// UnseenAt fetches the candidate at the given offset in a stable order, so a
// uniformly chosen offset yields a uniformly chosen candidate.
func (r *QuestionRepo) UnseenAt(ctx context.Context, userID uuid.UUID, offset int) (*domain.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		questionSelect+` WHERE `+unseenFilter+`
		GROUP BY q.id
		ORDER BY q.time_created, q.id
		OFFSET $2 LIMIT 1`, userID, offset))
	if errors.Is(err, pgx.ErrNoRows) {
		// Candidate set shrank between count and fetch.
		return nil, domain.ErrNoQuestionsLeft
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unseen question: %w", err)
	}
	return q, nil
}

// Close marks a question closed. The transition is irreversible; closing an
// already-closed question is a no-op.
func (r *QuestionRepo) Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE questions
		SET closed = TRUE, closed_date = $2
		WHERE id = $1 AND NOT closed
	`, id, closedAt)
	if err != nil {
		return fmt.Errorf("failed to close question: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check question existence: %w", err)
	}
	if !exists {
		return domain.ErrQuestionNotFound
	}
	return nil
}
