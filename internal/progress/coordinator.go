package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"brightwords/internal/domain"
	"brightwords/internal/week"
)

// Coordinator commits a finished session together with its weekly rollup and
// the profile's session counters as one atomic unit. A caregiver view never
// observes a session that is not reflected in its week's totals.
//
// The rollup read-modify-write runs under a row lock inside the same
// transaction as the session insert, so two near-simultaneous session ends
// for one learner serialize instead of losing an increment. The session id
// acts as the operation key: a retried commit whose session row already
// exists applies no increments.
type Coordinator struct {
	store     SessionCommitter
	publisher EventPublisher
	cache     SnapshotCache
}

// NewCoordinator creates a coordinator. publisher and cache may be nil.
func NewCoordinator(store SessionCommitter, publisher EventPublisher, cache SnapshotCache) *Coordinator {
	return &Coordinator{store: store, publisher: publisher, cache: cache}
}

// Persist commits the frozen session. All-or-nothing across the session
// record, the weekly rollup, and the profile counters.
func (c *Coordinator) Persist(ctx context.Context, sess *domain.LearningSession) error {
	wid := week.FromTime(sess.StartedAt)
	weekID := wid.String()

	err := c.store.CommitSession(ctx, func(tx CommitTx) error {
		applied, err := tx.InsertSession(ctx, sess)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if !applied {
			// Retry after a partially observed commit: everything below
			// already happened, replaying it would double count.
			slog.Info("session already persisted, skipping increments",
				"session_id", sess.ID, "learner_id", sess.LearnerID)
			return nil
		}

		wp, err := tx.WeeklyForUpdate(ctx, sess.LearnerID, weekID)
		if errors.Is(err, domain.ErrWeeklyProgressNotFound) {
			start, end := wid.Bounds()
			wp = domain.NewWeeklyProgress(sess.LearnerID, weekID, start, end)
		} else if err != nil {
			return fmt.Errorf("read weekly rollup: %w", err)
		}
		wp.Apply(sess)
		if err := tx.SaveWeekly(ctx, wp); err != nil {
			return fmt.Errorf("save weekly rollup: %w", err)
		}

		p, err := tx.ProfileForUpdate(ctx, sess.LearnerID)
		if errors.Is(err, domain.ErrProfileNotFound) {
			p = domain.NewLearnerProfile(sess.LearnerID)
		} else if err != nil {
			return fmt.Errorf("read profile: %w", err)
		}
		p.RecordSessionEnd(sess.DurationMinutes, sess.EndedAt)
		p.RecordLearningState(sess.StartingBrainState, sess.EndedAt)
		if err := tx.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("session committed",
		"session_id", sess.ID,
		"learner_id", sess.LearnerID,
		"week_id", weekID,
		"duration_minutes", sess.DurationMinutes,
		"activities", len(sess.ActivitiesCompleted),
	)

	// Side channels after the durable commit. Failures are logged, never
	// propagated; the commit already happened.
	if c.cache != nil {
		c.cache.InvalidateLearner(ctx, sess.LearnerID)
	}
	if c.publisher != nil {
		ev := SessionCompletedEvent{
			SessionID:       sess.ID,
			LearnerID:       sess.LearnerID,
			WeekID:          weekID,
			DurationMinutes: sess.DurationMinutes,
			ActivityCount:   len(sess.ActivitiesCompleted),
			CompletedAt:     sess.EndedAt.Format(time.RFC3339),
		}
		if err := c.publisher.PublishSessionCompleted(ctx, ev); err != nil {
			slog.Warn("publish session completed event", "session_id", sess.ID, "error", err)
		}
	}

	return nil
}
