package progress

import (
	"context"
	"log/slog"
	"time"

	"brightwords/internal/domain"
)

// Accuracy above this threshold counts as a demonstrated strength.
const strengthAccuracyThreshold = 85.0

// ProfileAggregator folds one activity outcome into the learner profile.
// All reads and writes for one activity happen inside a single store
// transaction; a losing transaction is retried in full by the caller.
type ProfileAggregator struct {
	profiles ProfileStore
}

// NewProfileAggregator creates an aggregator over a profile store.
func NewProfileAggregator(profiles ProfileStore) *ProfileAggregator {
	return &ProfileAggregator{profiles: profiles}
}

// ApplyActivity computes and commits the profile delta for one activity.
// The activity must already be validated; this method applies the strength,
// struggle, and reading-speed rules. Session counters are deliberately not
// touched here; they move exactly once, at session end.
func (a *ProfileAggregator) ApplyActivity(ctx context.Context, learnerID string, activity *domain.ActivityRecord) (*domain.LearnerProfile, error) {
	now := time.Now().UTC()

	updated, err := a.profiles.UpdateProfileInTx(ctx, learnerID, func(p *domain.LearnerProfile) error {
		if activity.Performance.Accuracy > strengthAccuracyThreshold {
			p.RecordStrength(activity.SkillTag(p.PreferredDifficulty), now)
		}
		for _, tag := range activity.StruggledWith {
			p.RecordStruggle(domain.SkillTag(tag), now)
		}
		if activity.Performance.WordsPerMinute > 0 {
			p.RecordReadingSpeed(activity.Performance.WordsPerMinute, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("profile updated for activity",
		"learner_id", learnerID,
		"activity_type", activity.Type,
		"accuracy", activity.Performance.Accuracy,
	)

	return updated, nil
}
