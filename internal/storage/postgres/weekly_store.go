package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"brightwords/internal/domain"
	"brightwords/internal/week"

	"github.com/jackc/pgx/v5"
)

const weeklyColumns = `learner_id, week_id, week_start, week_end,
	sessions_completed, total_learning_time, average_session_length,
	average_accuracy, accuracy_sessions, current_reading_speed,
	new_skills_acquired, celebration_moments, updated_at`

// GetWeekly retrieves the rollup for one (learner, week).
func (s *Store) GetWeekly(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	return getWeekly(ctx, s.pool, learnerID, weekID, false)
}

// WeeklyForUpdate reads the week's rollup inside the commit transaction with
// a row lock, so concurrent session ends on the same week serialize instead
// of losing increments. A fresh week has no row for FOR UPDATE to lock, and
// two first commits reading "no row" would each write an absolute rollup of
// one session; the rollup is seeded with a zeroed row first so the unique
// key serializes concurrent seeders and the second commit re-reads the
// first one's increments.
func (t *commitTx) WeeklyForUpdate(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	w, err := getWeekly(ctx, t.tx, learnerID, weekID, true)
	if !errors.Is(err, domain.ErrWeeklyProgressNotFound) {
		return w, err
	}

	wid, err := week.Parse(weekID)
	if err != nil {
		return nil, fmt.Errorf("parse week id %q: %w", weekID, err)
	}
	start, end := wid.Bounds()
	if err := seedWeekly(ctx, t.tx, domain.NewWeeklyProgress(learnerID, weekID, start, end)); err != nil {
		return nil, err
	}
	return getWeekly(ctx, t.tx, learnerID, weekID, true)
}

// seedWeekly inserts a zeroed rollup row if none exists. Counter columns take
// their schema defaults; a concurrent inserter wins the unique key and this
// insert becomes a no-op after blocking on its commit.
func seedWeekly(ctx context.Context, q queryer, w *domain.WeeklyProgress) error {
	_, err := q.Exec(ctx, `
		INSERT INTO weekly_progress (learner_id, week_id, week_start, week_end, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (learner_id, week_id) DO NOTHING`,
		w.LearnerID, w.WeekID, w.WeekStart, w.WeekEnd, w.UpdatedAt,
	)
	if err != nil {
		return markTransient(fmt.Errorf("seed weekly progress: %w", err))
	}
	return nil
}

func (t *commitTx) SaveWeekly(ctx context.Context, w *domain.WeeklyProgress) error {
	skills, err := json.Marshal(w.NewSkillsAcquired)
	if err != nil {
		return fmt.Errorf("marshal new_skills_acquired: %w", err)
	}
	celebrations, err := json.Marshal(w.CelebrationMoments)
	if err != nil {
		return fmt.Errorf("marshal celebration_moments: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO weekly_progress (`+weeklyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (learner_id, week_id) DO UPDATE SET
			sessions_completed=EXCLUDED.sessions_completed,
			total_learning_time=EXCLUDED.total_learning_time,
			average_session_length=EXCLUDED.average_session_length,
			average_accuracy=EXCLUDED.average_accuracy,
			accuracy_sessions=EXCLUDED.accuracy_sessions,
			current_reading_speed=EXCLUDED.current_reading_speed,
			new_skills_acquired=EXCLUDED.new_skills_acquired,
			celebration_moments=EXCLUDED.celebration_moments,
			updated_at=EXCLUDED.updated_at`,
		w.LearnerID, w.WeekID, w.WeekStart, w.WeekEnd,
		w.SessionsCompleted, w.TotalLearningTime, w.AverageSessionLength,
		w.AverageAccuracy, w.AccuracySessions, w.CurrentReadingSpeed,
		skills, celebrations, w.UpdatedAt,
	)
	if err != nil {
		return markTransient(fmt.Errorf("upsert weekly progress: %w", err))
	}
	return nil
}

func getWeekly(ctx context.Context, q queryer, learnerID, weekID string, forUpdate bool) (*domain.WeeklyProgress, error) {
	query := `
		SELECT ` + weeklyColumns + `
		FROM weekly_progress
		WHERE learner_id = $1 AND week_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	row := q.QueryRow(ctx, query, learnerID, weekID)

	var w domain.WeeklyProgress
	var skills, celebrations []byte

	err := row.Scan(
		&w.LearnerID, &w.WeekID, &w.WeekStart, &w.WeekEnd,
		&w.SessionsCompleted, &w.TotalLearningTime, &w.AverageSessionLength,
		&w.AverageAccuracy, &w.AccuracySessions, &w.CurrentReadingSpeed,
		&skills, &celebrations, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWeeklyProgressNotFound
		}
		return nil, markTransient(fmt.Errorf("scan weekly progress: %w", err))
	}

	if err := json.Unmarshal(skills, &w.NewSkillsAcquired); err != nil {
		return nil, fmt.Errorf("unmarshal new_skills_acquired: %w", err)
	}
	if err := json.Unmarshal(celebrations, &w.CelebrationMoments); err != nil {
		return nil, fmt.Errorf("unmarshal celebration_moments: %w", err)
	}

	return &w, nil
}
