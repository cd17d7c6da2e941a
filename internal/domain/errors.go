package domain

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrTagNotFound      = errors.New("tag not found")

	// ErrQuestionClosed rejects mutations on a closed question. Closure is a
	// request-layer gate, checked before the vote store is touched.
	ErrQuestionClosed = errors.New("question is closed")

	// ErrInsufficientReputation means the reputation gate refused the action.
	ErrInsufficientReputation = errors.New("not enough reputation")

	// ErrNoQuestionsLeft is the empty-result marker of the random selector.
	// It is not a failure; callers surface it distinctly from not-found.
	ErrNoQuestionsLeft = errors.New("no questions left")

	// ErrRateLimited means the vote rate limiter refused the request.
	ErrRateLimited = errors.New("vote rate limit exceeded")

	ErrNotOwner = errors.New("requester is neither staff nor the owner")
)
