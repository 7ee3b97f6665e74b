package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"brightwords/internal/domain"
	"brightwords/internal/insight"
	"brightwords/internal/retry"
	"brightwords/internal/week"

	"golang.org/x/sync/errgroup"
)

// Service is the engine's public surface: the session lifecycle commands
// consumed from the UI layer and the read APIs exposed to reporting
// collaborators. Every store-facing call is wrapped in the retry policy.
type Service struct {
	store      Store
	aggregator *ProfileAggregator
	committer  *Coordinator
	cache      SnapshotCache

	mu        sync.Mutex
	recorders map[string]*Recorder // session id -> recorder
	active    map[string]string    // learner id -> active session id

	profileReads  *retry.Policy[*domain.LearnerProfile]
	sessionReads  *retry.Policy[[]*domain.LearningSession]
	weeklyReads   *retry.Policy[*domain.WeeklyProgress]
	profileWrites *retry.Policy[*domain.LearnerProfile]
	commitWrites  *retry.Policy[struct{}]
}

// NewService wires the engine. publisher and cache may be nil.
func NewService(store Store, publisher EventPublisher, cache SnapshotCache, retryCfg retry.Config) *Service {
	s := &Service{
		store:     store,
		cache:     cache,
		recorders: make(map[string]*Recorder),
		active:    make(map[string]string),

		profileReads:  retry.NewPolicy[*domain.LearnerProfile]("profile.get", retryCfg),
		sessionReads:  retry.NewPolicy[[]*domain.LearningSession]("sessions.recent", retryCfg),
		weeklyReads:   retry.NewPolicy[*domain.WeeklyProgress]("weekly.get", retryCfg),
		profileWrites: retry.NewPolicy[*domain.LearnerProfile]("profile.update", retryCfg),
		commitWrites:  retry.NewPolicy[struct{}]("session.commit", retryCfg),
	}
	s.aggregator = NewProfileAggregator(&retryingProfileStore{store: store, writes: s.profileWrites})
	s.committer = NewCoordinator(&retryingCommitter{store: store, writes: s.commitWrites}, publisher, cache)
	return s
}

// -----------------------------------------------------------------------------
// Write side: session lifecycle
// -----------------------------------------------------------------------------

// StartSession begins a session for a learner. A learner can have at most one
// active session; a second start fails with domain.ErrSessionInProgress.
func (s *Service) StartSession(ctx context.Context, learnerID, brainState string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sid, ok := s.active[learnerID]; ok {
		return "", fmt.Errorf("session %s: %w", sid, domain.ErrSessionInProgress)
	}

	rec := NewRecorder(s.aggregator, s.committer)
	sessionID, err := rec.Start(learnerID, brainState)
	if err != nil {
		return "", err
	}

	s.recorders[sessionID] = rec
	s.active[learnerID] = sessionID
	return sessionID, nil
}

// RecordActivity records a completed activity against an active session.
func (s *Service) RecordActivity(ctx context.Context, sessionID string, activity domain.ActivityRecord) error {
	rec, err := s.recorder(sessionID)
	if err != nil {
		return err
	}
	return rec.RecordActivity(ctx, activity)
}

// RecordSupportUsage records a support used during an active session.
func (s *Service) RecordSupportUsage(ctx context.Context, sessionID, supportType, cause, effectiveness string) error {
	rec, err := s.recorder(sessionID)
	if err != nil {
		return err
	}
	return rec.RecordSupportUsage(supportType, cause, effectiveness)
}

// RecordBreakthrough records a breakthrough moment.
func (s *Service) RecordBreakthrough(ctx context.Context, sessionID, text string) error {
	rec, err := s.recorder(sessionID)
	if err != nil {
		return err
	}
	return rec.RecordBreakthrough(text)
}

// RecordChallenge records a challenge the learner met.
func (s *Service) RecordChallenge(ctx context.Context, sessionID, text string) error {
	rec, err := s.recorder(sessionID)
	if err != nil {
		return err
	}
	return rec.RecordChallenge(text)
}

// EndSession finalizes and persists an active session. On success the session
// is fully retired. On a persist failure the learner's active slot is freed
// (the session is Ended in memory) but the recorder stays registered, so
// calling EndSession again with the same id retries the commit of the frozen
// record; it is retired only once a commit succeeds.
func (s *Service) EndSession(ctx context.Context, sessionID, endBrainState, energyLevel string) (*domain.LearningSession, error) {
	rec, err := s.recorder(sessionID)
	if err != nil {
		return nil, err
	}

	sess, endErr := rec.End(ctx, endBrainState, energyLevel)

	s.mu.Lock()
	if rec.State() == StateEnded {
		for learnerID, sid := range s.active {
			if sid == sessionID {
				delete(s.active, learnerID)
			}
		}
	}
	if endErr == nil {
		delete(s.recorders, sessionID)
	}
	s.mu.Unlock()

	if endErr != nil {
		return nil, endErr
	}
	return sess, nil
}

func (s *Service) recorder(sessionID string) (*Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recorders[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotActive)
	}
	return rec, nil
}

// -----------------------------------------------------------------------------
// Read side
// -----------------------------------------------------------------------------

// GetProfile returns a learner's profile snapshot, read through the cache
// when one is configured.
func (s *Service) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, error) {
	if s.cache != nil {
		if p, ok := s.cache.GetProfile(ctx, learnerID); ok {
			return p, nil
		}
	}

	p, err := s.profileReads.Do(ctx, func(ctx context.Context) (*domain.LearnerProfile, error) {
		return s.store.GetProfile(ctx, learnerID)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetProfile(ctx, p)
	}
	return p, nil
}

// GetRecentSessions returns a learner's sessions, most recent first.
func (s *Service) GetRecentSessions(ctx context.Context, learnerID string, limit int) ([]*domain.LearningSession, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.sessionReads.Do(ctx, func(ctx context.Context) ([]*domain.LearningSession, error) {
		return s.store.ListRecentSessions(ctx, learnerID, limit)
	})
}

// GetWeeklyProgress returns the rollup for a week, defaulting to the current
// week when weekID is empty.
func (s *Service) GetWeeklyProgress(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	if weekID == "" {
		weekID = week.FromTime(time.Now()).String()
	} else if _, err := week.Parse(weekID); err != nil {
		return nil, domain.NewValidationError("week_id", err.Error())
	}
	return s.weeklyReads.Do(ctx, func(ctx context.Context) (*domain.WeeklyProgress, error) {
		return s.store.GetWeekly(ctx, learnerID, weekID)
	})
}

// Insights is the fan-out payload handed to reporting collaborators.
type Insights struct {
	Profile        *domain.LearnerProfile    `json:"profile"`
	RecentSessions []*domain.LearningSession `json:"recent_sessions"`
	WeeklyProgress *domain.WeeklyProgress    `json:"weekly_progress"`
	Summary        insight.Summary           `json:"summary"`
}

// GetInsights runs the three reads concurrently and derives the summary.
// A missing profile or empty week is "no data yet", not a failure.
func (s *Service) GetInsights(ctx context.Context, learnerID string) (*Insights, error) {
	var out Insights

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.GetProfile(gctx, learnerID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		out.Profile = p
		return nil
	})
	g.Go(func() error {
		sessions, err := s.GetRecentSessions(gctx, learnerID, 10)
		if err != nil {
			return err
		}
		out.RecentSessions = sessions
		return nil
	})
	g.Go(func() error {
		wp, err := s.GetWeeklyProgress(gctx, learnerID, "")
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		out.WeeklyProgress = wp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Summary = insight.Summarize(out.Profile, out.RecentSessions)
	return &out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrProfileNotFound) || errors.Is(err, domain.ErrWeeklyProgressNotFound)
}

// -----------------------------------------------------------------------------
// Retry adapters
// -----------------------------------------------------------------------------

// retryingProfileStore re-runs the whole transactional read-compute-write
// when the store reports a transient failure or a losing transaction.
type retryingProfileStore struct {
	store  ProfileStore
	writes *retry.Policy[*domain.LearnerProfile]
}

func (r *retryingProfileStore) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, error) {
	return r.store.GetProfile(ctx, learnerID)
}

func (r *retryingProfileStore) UpdateProfileInTx(ctx context.Context, learnerID string, apply func(*domain.LearnerProfile) error) (*domain.LearnerProfile, error) {
	return r.writes.Do(ctx, func(ctx context.Context) (*domain.LearnerProfile, error) {
		return r.store.UpdateProfileInTx(ctx, learnerID, apply)
	})
}

// retryingCommitter replays the entire commit transaction; the session-id
// idempotency guard inside makes the replay safe after partial success.
type retryingCommitter struct {
	store  SessionCommitter
	writes *retry.Policy[struct{}]
}

func (r *retryingCommitter) CommitSession(ctx context.Context, fn func(tx CommitTx) error) error {
	_, err := r.writes.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.store.CommitSession(ctx, fn)
	})
	return err
}
