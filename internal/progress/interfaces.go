package progress

import (
	"context"

	"brightwords/internal/domain"
)

// ProfileStore reads and mutates the single profile record per learner.
// All mutation happens inside UpdateInTx so concurrent activity submissions
// for one learner serialize through the store, not through application locks.
type ProfileStore interface {
	// GetProfile returns domain.ErrProfileNotFound when no profile exists.
	GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, error)

	// UpdateProfileInTx runs apply against the current profile inside a
	// transaction. A missing profile is materialized with defaults before
	// apply runs, so first-activity-ever and normal updates share one path.
	// A losing transaction surfaces as a transient error for the retry layer.
	UpdateProfileInTx(ctx context.Context, learnerID string, apply func(*domain.LearnerProfile) error) (*domain.LearnerProfile, error)
}

// SessionStore reads persisted session records.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*domain.LearningSession, error)

	// ListRecentSessions returns a learner's sessions most recent first.
	ListRecentSessions(ctx context.Context, learnerID string, limit int) ([]*domain.LearningSession, error)
}

// WeeklyStore reads weekly rollup records.
type WeeklyStore interface {
	// GetWeekly returns domain.ErrWeeklyProgressNotFound when the learner has
	// no sessions in that week yet.
	GetWeekly(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error)
}

// CommitTx is the set of operations available inside one atomic
// session-commit transaction.
type CommitTx interface {
	// InsertSession persists the immutable session record. It reports false
	// when the session id was already persisted, which makes a retried
	// commit a no-op for the rollup and profile increments.
	InsertSession(ctx context.Context, sess *domain.LearningSession) (bool, error)

	// WeeklyForUpdate reads the week's rollup under a write lock. For a
	// fresh week an implementation either returns
	// domain.ErrWeeklyProgressNotFound or seeds and returns a zeroed
	// rollup; backends whose row locks cannot cover a missing row must
	// seed so concurrent first commits serialize.
	WeeklyForUpdate(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error)

	SaveWeekly(ctx context.Context, w *domain.WeeklyProgress) error

	// ProfileForUpdate reads the profile under a write lock. When the
	// learner has no profile yet it either returns
	// domain.ErrProfileNotFound or seeds and returns a default profile,
	// under the same locking rule as WeeklyForUpdate.
	ProfileForUpdate(ctx context.Context, learnerID string) (*domain.LearnerProfile, error)

	SaveProfile(ctx context.Context, p *domain.LearnerProfile) error
}

// SessionCommitter runs fn inside a single atomic multi-record transaction:
// either every write in fn becomes visible or none do.
type SessionCommitter interface {
	CommitSession(ctx context.Context, fn func(tx CommitTx) error) error
}

// Store is the full persistence surface the engine needs.
type Store interface {
	ProfileStore
	SessionStore
	WeeklyStore
	SessionCommitter
}

// EventPublisher announces committed sessions to downstream consumers
// (caregiver summary workers). Best effort; failures never undo a commit.
type EventPublisher interface {
	PublishSessionCompleted(ctx context.Context, ev SessionCompletedEvent) error
}

// SnapshotCache is an optional read-through cache for the read path.
type SnapshotCache interface {
	GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, bool)
	SetProfile(ctx context.Context, p *domain.LearnerProfile)
	InvalidateLearner(ctx context.Context, learnerID string)
}

// SessionCompletedEvent is published after each successful commit.
type SessionCompletedEvent struct {
	SessionID       string `json:"session_id"`
	LearnerID       string `json:"learner_id"`
	WeekID          string `json:"week_id"`
	DurationMinutes int    `json:"duration_minutes"`
	ActivityCount   int    `json:"activity_count"`
	CompletedAt     string `json:"completed_at"` // RFC 3339
}
