package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"brightwords/internal/domain"
)

const weeklyColumns = `learner_id, week_id, week_start, week_end,
	sessions_completed, total_learning_time, average_session_length,
	average_accuracy, accuracy_sessions, current_reading_speed,
	new_skills_acquired, celebration_moments, updated_at`

// GetWeekly retrieves the rollup for one (learner, week).
func (s *Store) GetWeekly(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	return getWeekly(ctx, s.db, learnerID, weekID)
}

// WeeklyForUpdate reads the week's rollup inside the commit transaction.
// SQLite's immediate transaction already holds the write lock, so no
// row-level locking clause is needed.
func (t *commitTx) WeeklyForUpdate(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	return getWeekly(ctx, t.tx, learnerID, weekID)
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

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO weekly_progress (`+weeklyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, week_id) DO UPDATE SET
			sessions_completed=excluded.sessions_completed,
			total_learning_time=excluded.total_learning_time,
			average_session_length=excluded.average_session_length,
			average_accuracy=excluded.average_accuracy,
			accuracy_sessions=excluded.accuracy_sessions,
			current_reading_speed=excluded.current_reading_speed,
			new_skills_acquired=excluded.new_skills_acquired,
			celebration_moments=excluded.celebration_moments,
			updated_at=excluded.updated_at`,
		w.LearnerID, w.WeekID, w.WeekStart, w.WeekEnd,
		w.SessionsCompleted, w.TotalLearningTime, w.AverageSessionLength,
		w.AverageAccuracy, w.AccuracySessions, w.CurrentReadingSpeed,
		string(skills), string(celebrations), w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert weekly progress: %w", err)
	}
	return nil
}

func getWeekly(ctx context.Context, q dbtx, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+weeklyColumns+`
		FROM weekly_progress
		WHERE learner_id = ? AND week_id = ?`, learnerID, weekID)

	var w domain.WeeklyProgress
	var skillsJSON, celebrationsJSON string

	err := row.Scan(
		&w.LearnerID, &w.WeekID, &w.WeekStart, &w.WeekEnd,
		&w.SessionsCompleted, &w.TotalLearningTime, &w.AverageSessionLength,
		&w.AverageAccuracy, &w.AccuracySessions, &w.CurrentReadingSpeed,
		&skillsJSON, &celebrationsJSON, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWeeklyProgressNotFound
		}
		return nil, fmt.Errorf("scan weekly progress: %w", err)
	}

	if err := json.Unmarshal([]byte(skillsJSON), &w.NewSkillsAcquired); err != nil {
		return nil, fmt.Errorf("unmarshal new_skills_acquired: %w", err)
	}
	if err := json.Unmarshal([]byte(celebrationsJSON), &w.CelebrationMoments); err != nil {
		return nil, fmt.Errorf("unmarshal celebration_moments: %w", err)
	}

	return &w, nil
}
