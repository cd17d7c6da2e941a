package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/plus-me/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore backs all repository contracts with in-memory maps. Upvote counts
// are recomputed from the vote rows on every read, mirroring the derived
// aggregate in storage.
type fakeStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*domain.User
	questions map[uuid.UUID]*domain.Question
	votes     map[[2]uuid.UUID]*domain.Vote // key: [questionID, userID]
	answers   map[uuid.UUID][]domain.Answer
	tags      map[uuid.UUID]*domain.Tag
	repCosts  map[domain.ActionKey]int
	now       time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[uuid.UUID]*domain.User),
		questions: make(map[uuid.UUID]*domain.Question),
		votes:     make(map[[2]uuid.UUID]*domain.Vote),
		answers:   make(map[uuid.UUID][]domain.Answer),
		tags:      make(map[uuid.UUID]*domain.Tag),
		repCosts: map[domain.ActionKey]int{
			domain.ActionCreateQuestion: -10,
			domain.ActionVoteQuestion:   1,
		},
		now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) addUser(reputation int) uuid.UUID {
	id := uuid.New()
	s.users[id] = &domain.User{ID: id, Username: "user-" + id.String()[:8], Reputation: reputation}
	return id
}

func (s *fakeStore) addQuestion(owner uuid.UUID) uuid.UUID {
	id := uuid.New()
	s.now = s.now.Add(time.Minute)
	s.questions[id] = &domain.Question{ID: id, Text: "q " + id.String()[:8], UserID: owner, TimeCreated: s.now}
	return id
}

func (s *fakeStore) closeQuestion(id uuid.UUID) {
	q := s.questions[id]
	closedAt := s.now.Add(time.Hour)
	q.Closed = true
	q.ClosedDate = &closedAt
}

func (s *fakeStore) score(questionID uuid.UUID) int {
	score := 0
	for key, v := range s.votes {
		if key[0] != questionID {
			continue
		}
		if v.Up {
			score++
		} else {
			score--
		}
	}
	return score
}

func (s *fakeStore) annotated(q *domain.Question) *domain.Question {
	out := *q
	out.Upvotes = s.score(q.ID)
	return &out
}

// --- domain.UserRepository ---

func (s *fakeStore) GetByID(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *fakeStore) UpdateReputation(_ context.Context, userID uuid.UUID, action domain.ActionKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateReputationLocked(userID, action)
}

func (s *fakeStore) updateReputationLocked(userID uuid.UUID, action domain.ActionKey) (bool, error) {
	u, ok := s.users[userID]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	amount, ok := s.repCosts[action]
	if !ok {
		return false, errors.New("unconfigured action")
	}
	if u.Reputation+amount < 0 {
		return false, nil
	}
	u.Reputation += amount
	return true, nil
}

// --- domain.QuestionRepository ---

type questionRepoView struct{ *fakeStore }

func (s questionRepoView) GetByID(_ context.Context, id uuid.UUID) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return s.annotated(q), nil
}

func (s questionRepoView) Create(_ context.Context, nq domain.NewQuestion) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(time.Minute)
	q := &domain.Question{ID: uuid.New(), Text: nq.Text, UserID: nq.UserID, TimeCreated: s.now}
	s.questions[q.ID] = q
	return s.annotated(q), nil
}

func (s questionRepoView) List(_ context.Context, f domain.QuestionFilters) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Question
	for _, q := range s.questions {
		if f.OwnerID != nil && q.UserID != *f.OwnerID {
			continue
		}
		if f.Closed != nil && q.Closed != *f.Closed {
			continue
		}
		if f.Answered != nil && (len(s.answers[q.ID]) > 0) != *f.Answered {
			continue
		}
		if f.VoterID != nil {
			v, ok := s.votes[[2]uuid.UUID{q.ID, *f.VoterID}]
			if !ok {
				continue
			}
			if f.VoteUp != nil && v.Up != *f.VoteUp {
				continue
			}
		}
		out = append(out, *s.annotated(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeCreated.After(out[j].TimeCreated) })
	return out, nil
}

func (s questionRepoView) unseenLocked(userID uuid.UUID) []*domain.Question {
	var open []*domain.Question
	for _, q := range s.questions {
		if q.Closed {
			continue
		}
		if _, voted := s.votes[[2]uuid.UUID{q.ID, userID}]; voted {
			continue
		}
		open = append(open, q)
	}
	sort.Slice(open, func(i, j int) bool { return open[i].TimeCreated.Before(open[j].TimeCreated) })
	return open
}

func (s questionRepoView) CountUnseen(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unseenLocked(userID)), nil
}

func (s questionRepoView) UnseenAt(_ context.Context, userID uuid.UUID, offset int) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := s.unseenLocked(userID)
	if offset >= len(open) {
		return nil, domain.ErrNoQuestionsLeft
	}
	return s.annotated(open[offset]), nil
}

func (s questionRepoView) Close(_ context.Context, id uuid.UUID, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	if q.Closed {
		return nil
	}
	q.Closed = true
	q.ClosedDate = &closedAt
	return nil
}

// --- domain.VoteRepository ---

type voteRepoView struct{ *fakeStore }

func (s voteRepoView) VoteBy(_ context.Context, questionID, userID uuid.UUID, up, updateRep bool) (domain.VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[questionID]; !ok {
		return 0, domain.ErrQuestionNotFound
	}
	key := [2]uuid.UUID{questionID, userID}
	result := domain.ResolveVote(s.votes[key], up)
	switch result {
	case domain.VoteCreated:
		if updateRep {
			ok, err := s.updateReputationLocked(userID, domain.ActionVoteQuestion)
			if err != nil {
				return 0, err
			}
			if !ok {
				return 0, domain.ErrInsufficientReputation
			}
		}
		s.votes[key] = &domain.Vote{QuestionID: questionID, UserID: userID, Up: up}
	case domain.VoteSwitched:
		s.votes[key].Up = up
	}
	return result, nil
}

// --- domain.AnswerRepository / domain.TagRepository ---

type answerRepoView struct{ *fakeStore }

func (s answerRepoView) ListByQuestion(_ context.Context, questionID uuid.UUID) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[questionID], nil
}

type tagRepoView struct{ *fakeStore }

func (s tagRepoView) List(_ context.Context) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Tag
	for _, t := range s.tags {
		out = append(out, *t)
	}
	return out, nil
}

func (s tagRepoView) Create(_ context.Context, name string) (*domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &domain.Tag{ID: uuid.New(), Name: name}
	s.tags[t.ID] = t
	return t, nil
}

func (s tagRepoView) ListByQuestion(_ context.Context, _ uuid.UUID) ([]domain.Tag, error) {
	return nil, nil
}

// --- collaborator fakes ---

type fakeLimiter struct {
	mu      sync.Mutex
	allowed bool
	err     error
	calls   int
}

func (l *fakeLimiter) Allow(_ context.Context, _ uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.allowed, l.err
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []string
}

func (n *fakeNotifier) Report(_ context.Context, question *domain.Question, _ *domain.User, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, question.ID.String()+":"+reason)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}

type fakeDedupe struct {
	first bool
	err   error
}

func (d *fakeDedupe) FirstSeen(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return d.first, d.err
}

func newTestService(store *fakeStore) *Service {
	return NewService(
		store,
		questionRepoView{store},
		voteRepoView{store},
		answerRepoView{store},
		tagRepoView{store},
		&fakeLimiter{allowed: true},
		nil,
		nil,
		clockwork.NewFakeClock(),
	)
}

func TestCreateQuestion(t *testing.T) {
	t.Run("charges reputation and records auto-upvote", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		userID := store.addUser(25)

		q, err := svc.CreateQuestion(context.Background(), userID, "why is the sky blue?", nil)
		require.NoError(t, err)

		assert.Equal(t, 1, q.Upvotes, "creator auto-upvote should count")
		assert.Equal(t, 15, store.users[userID].Reputation, "only the creation cost applies, not the vote reward")
	})

	t.Run("rejects without touching state when reputation is insufficient", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		userID := store.addUser(5)

		_, err := svc.CreateQuestion(context.Background(), userID, "too poor", nil)
		require.ErrorIs(t, err, domain.ErrInsufficientReputation)
		assert.Equal(t, 5, store.users[userID].Reputation)
		assert.Empty(t, store.questions)
	})

	t.Run("unknown user", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)

		_, err := svc.CreateQuestion(context.Background(), uuid.New(), "ghost", nil)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestVote(t *testing.T) {
	setup := func(t *testing.T) (*fakeStore, *Service, uuid.UUID, uuid.UUID) {
		t.Helper()
		store := newFakeStore()
		svc := newTestService(store)
		owner := store.addUser(100)
		voter := store.addUser(10)
		questionID := store.addQuestion(owner)
		return store, svc, questionID, voter
	}

	t.Run("first vote creates row and rewards reputation", func(t *testing.T) {
		store, svc, questionID, voter := setup(t)

		q, err := svc.Vote(context.Background(), questionID, voter, true)
		require.NoError(t, err)

		assert.Equal(t, 1, q.Upvotes)
		assert.Equal(t, 11, store.users[voter].Reputation)
	})

	t.Run("polarity flip swings score by two without extra reward", func(t *testing.T) {
		store, svc, questionID, voter := setup(t)

		_, err := svc.Vote(context.Background(), questionID, voter, true)
		require.NoError(t, err)
		q, err := svc.Vote(context.Background(), questionID, voter, false)
		require.NoError(t, err)

		assert.Equal(t, -1, q.Upvotes)
		assert.Equal(t, 11, store.users[voter].Reputation, "flip must not re-apply the reward")
		assert.Len(t, store.votes, 1, "flip updates the row in place")
	})

	t.Run("same polarity twice is a no-op", func(t *testing.T) {
		store, svc, questionID, voter := setup(t)

		_, err := svc.Vote(context.Background(), questionID, voter, false)
		require.NoError(t, err)
		q, err := svc.Vote(context.Background(), questionID, voter, false)
		require.NoError(t, err)

		assert.Equal(t, -1, q.Upvotes)
		assert.Equal(t, 11, store.users[voter].Reputation)
		assert.Len(t, store.votes, 1)
	})

	t.Run("closed question rejects without mutation", func(t *testing.T) {
		store, svc, questionID, voter := setup(t)
		store.closeQuestion(questionID)

		_, err := svc.Vote(context.Background(), questionID, voter, true)
		require.ErrorIs(t, err, domain.ErrQuestionClosed)
		assert.Empty(t, store.votes)
		assert.Equal(t, 10, store.users[voter].Reputation)
	})

	t.Run("closed question without a closed date still rejects", func(t *testing.T) {
		store, svc, questionID, voter := setup(t)
		// Rows closed outside the API may carry the flag but no timestamp.
		store.questions[questionID].Closed = true

		_, err := svc.Vote(context.Background(), questionID, voter, true)
		require.ErrorIs(t, err, domain.ErrQuestionClosed)
		assert.Empty(t, store.votes)
	})

	t.Run("missing question", func(t *testing.T) {
		_, svc, _, voter := setup(t)

		_, err := svc.Vote(context.Background(), uuid.New(), voter, true)
		assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
	})

	t.Run("rate limited vote is rejected before storage", func(t *testing.T) {
		store, _, _, _ := setup(t)
		limiter := &fakeLimiter{allowed: false}
		svc := newTestService(store)
		svc.limiter = limiter
		owner := store.addUser(100)
		questionID := store.addQuestion(owner)
		voter := store.addUser(10)

		_, err := svc.Vote(context.Background(), questionID, voter, true)
		require.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Empty(t, store.votes)
		assert.Equal(t, 1, limiter.calls)
	})

	t.Run("closure check runs before the rate limiter", func(t *testing.T) {
		store, _, _, _ := setup(t)
		limiter := &fakeLimiter{allowed: false}
		svc := newTestService(store)
		svc.limiter = limiter
		owner := store.addUser(100)
		questionID := store.addQuestion(owner)
		store.closeQuestion(questionID)
		voter := store.addUser(10)

		_, err := svc.Vote(context.Background(), questionID, voter, true)
		require.ErrorIs(t, err, domain.ErrQuestionClosed)
		assert.Zero(t, limiter.calls, "closed questions must not consume rate budget")
	})

	t.Run("nil limiter disables rate limiting", func(t *testing.T) {
		store, _, _, _ := setup(t)
		svc := newTestService(store)
		svc.limiter = nil
		owner := store.addUser(100)
		questionID := store.addQuestion(owner)
		voter := store.addUser(10)

		_, err := svc.Vote(context.Background(), questionID, voter, true)
		assert.NoError(t, err)
	})
}

func TestRandomUnseen(t *testing.T) {
	t.Run("no candidates left", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		userID := store.addUser(10)

		_, err := svc.RandomUnseen(context.Background(), userID)
		assert.ErrorIs(t, err, domain.ErrNoQuestionsLeft)
	})

	t.Run("single candidate skips the random draw", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		svc.randInt = func(int) int { t.Fatal("randInt must not be called for a single candidate"); return 0 }
		owner := store.addUser(100)
		questionID := store.addQuestion(owner)
		userID := store.addUser(10)

		q, err := svc.RandomUnseen(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, questionID, q.ID)
	})

	t.Run("excludes closed and already-voted questions", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := store.addUser(100)
		voted := store.addQuestion(owner)
		closed := store.addQuestion(owner)
		open := store.addQuestion(owner)
		store.closeQuestion(closed)
		userID := store.addUser(10)
		store.votes[[2]uuid.UUID{voted, userID}] = &domain.Vote{QuestionID: voted, UserID: userID, Up: true}

		q, err := svc.RandomUnseen(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, open, q.ID)
	})

	t.Run("draws are uniform across candidates", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := store.addUser(100)
		candidates := make([]uuid.UUID, 4)
		for i := range candidates {
			candidates[i] = store.addQuestion(owner)
		}
		userID := store.addUser(10)

		// Seeded source keeps the trial counts reproducible.
		rng := rand.New(rand.NewPCG(7, 13))
		svc.randInt = rng.IntN

		const trials = 8000
		counts := make(map[uuid.UUID]int)
		for range trials {
			q, err := svc.RandomUnseen(context.Background(), userID)
			require.NoError(t, err)
			counts[q.ID]++
		}

		expected := float64(trials) / float64(len(candidates))
		for _, id := range candidates {
			assert.InDelta(t, expected, float64(counts[id]), expected*0.1,
				"candidate %s drawn %d times", id, counts[id])
		}
	})

	t.Run("draw index selects among candidates", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := store.addUser(100)
		first := store.addQuestion(owner)
		second := store.addQuestion(owner)
		userID := store.addUser(10)

		seen := make(map[uuid.UUID]bool)
		for draw := 0; draw < 2; draw++ {
			svc.randInt = func(n int) int {
				require.Equal(t, 2, n)
				return draw
			}
			q, err := svc.RandomUnseen(context.Background(), userID)
			require.NoError(t, err)
			seen[q.ID] = true
		}
		assert.True(t, seen[first])
		assert.True(t, seen[second])
	})
}

func TestMyVotes(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	owner := store.addUser(100)
	upvoted := store.addQuestion(owner)
	downvoted := store.addQuestion(owner)
	userID := store.addUser(10)
	store.votes[[2]uuid.UUID{upvoted, userID}] = &domain.Vote{QuestionID: upvoted, UserID: userID, Up: true}
	store.votes[[2]uuid.UUID{downvoted, userID}] = &domain.Vote{QuestionID: downvoted, UserID: userID, Up: false}

	ups, err := svc.MyVotes(context.Background(), userID, true, nil)
	require.NoError(t, err)
	require.Len(t, ups, 1)
	assert.Equal(t, upvoted, ups[0].ID)

	downs, err := svc.MyVotes(context.Background(), userID, false, nil)
	require.NoError(t, err)
	require.Len(t, downs, 1)
	assert.Equal(t, downvoted, downs[0].ID)
}

func TestCloseQuestion(t *testing.T) {
	t.Run("owner may close", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := store.addUser(100)
		questionID := store.addQuestion(owner)

		require.NoError(t, svc.CloseQuestion(context.Background(), questionID, owner, false))
		assert.True(t, store.questions[questionID].Closed)
		assert.NotNil(t, store.questions[questionID].ClosedDate)
	})

	t.Run("staff may close someone else's question", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := store.addUser(100)
		staff := store.addUser(0)
		questionID := store.addQuestion(owner)

		require.NoError(t, svc.CloseQuestion(context.Background(), questionID, staff, true))
		assert.True(t, store.questions[questionID].Closed)
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)
		owner := store.addUser(100)
		stranger := store.addUser(100)
		questionID := store.addQuestion(owner)

		err := svc.CloseQuestion(context.Background(), questionID, stranger, false)
		require.ErrorIs(t, err, domain.ErrNotOwner)
		assert.False(t, store.questions[questionID].Closed)
	})
}

func TestReport(t *testing.T) {
	setup := func(t *testing.T) (*fakeStore, *Service, *fakeNotifier, uuid.UUID, uuid.UUID) {
		t.Helper()
		store := newFakeStore()
		notifier := &fakeNotifier{}
		svc := newTestService(store)
		svc.notifier = notifier
		owner := store.addUser(100)
		questionID := store.addQuestion(owner)
		reporter := store.addUser(10)
		return store, svc, notifier, questionID, reporter
	}

	t.Run("dispatches and leaves state untouched", func(t *testing.T) {
		store, svc, notifier, questionID, reporter := setup(t)
		repBefore := store.users[reporter].Reputation

		require.NoError(t, svc.Report(context.Background(), questionID, reporter, "spam"))

		assert.Equal(t, 1, notifier.count())
		assert.Empty(t, store.votes)
		assert.Equal(t, repBefore, store.users[reporter].Reputation)
		assert.False(t, store.questions[questionID].Closed)
	})

	t.Run("missing question", func(t *testing.T) {
		_, svc, notifier, _, reporter := setup(t)

		err := svc.Report(context.Background(), uuid.New(), reporter, "spam")
		require.ErrorIs(t, err, domain.ErrQuestionNotFound)
		assert.Zero(t, notifier.count())
	})

	t.Run("missing reporter", func(t *testing.T) {
		_, svc, notifier, questionID, _ := setup(t)

		err := svc.Report(context.Background(), questionID, uuid.New(), "spam")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.Zero(t, notifier.count())
	})

	t.Run("duplicate within the window is suppressed", func(t *testing.T) {
		_, svc, notifier, questionID, reporter := setup(t)
		svc.dedupe = &fakeDedupe{first: false}

		require.NoError(t, svc.Report(context.Background(), questionID, reporter, "spam"))
		assert.Zero(t, notifier.count())
	})

	t.Run("broken dedupe store fails open", func(t *testing.T) {
		_, svc, notifier, questionID, reporter := setup(t)
		svc.dedupe = &fakeDedupe{err: errors.New("redis down")}

		require.NoError(t, svc.Report(context.Background(), questionID, reporter, "spam"))
		assert.Equal(t, 1, notifier.count())
	})

	t.Run("nil notifier accepts the report", func(t *testing.T) {
		_, svc, _, questionID, reporter := setup(t)
		svc.notifier = nil

		assert.NoError(t, svc.Report(context.Background(), questionID, reporter, "spam"))
	})
}

func TestQuestionSubresources(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	owner := store.addUser(100)
	questionID := store.addQuestion(owner)
	store.answers[questionID] = []domain.Answer{{ID: uuid.New(), QuestionID: questionID, Text: "because physics"}}

	answers, err := svc.QuestionAnswers(context.Background(), questionID)
	require.NoError(t, err)
	assert.Len(t, answers, 1)

	_, err = svc.QuestionAnswers(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	_, err = svc.QuestionTags(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}
