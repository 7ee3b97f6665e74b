package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"brightwords/internal/domain"
)

const sessionColumns = `id, learner_id, started_at, ended_at, duration_minutes,
	starting_brain_state, activities, supports_used, mood,
	breakthrough_moments, challenges_met`

// GetSession retrieves a persisted session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.LearningSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListRecentSessions returns a learner's sessions most recent first.
func (s *Store) ListRecentSessions(ctx context.Context, learnerID string, limit int) ([]*domain.LearningSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE learner_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.LearningSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// InsertSession persists the immutable session record. It reports false when
// the id already exists, which makes a retried commit skip its increments.
func (t *commitTx) InsertSession(ctx context.Context, sess *domain.LearningSession) (bool, error) {
	activities, err := json.Marshal(sess.ActivitiesCompleted)
	if err != nil {
		return false, fmt.Errorf("marshal activities: %w", err)
	}
	supports, err := json.Marshal(sess.SupportsUsed)
	if err != nil {
		return false, fmt.Errorf("marshal supports_used: %w", err)
	}
	mood, err := json.Marshal(sess.Mood)
	if err != nil {
		return false, fmt.Errorf("marshal mood: %w", err)
	}
	breakthroughs, err := json.Marshal(sess.BreakthroughMoments)
	if err != nil {
		return false, fmt.Errorf("marshal breakthrough_moments: %w", err)
	}
	challenges, err := json.Marshal(sess.ChallengesMet)
	if err != nil {
		return false, fmt.Errorf("marshal challenges_met: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sess.ID, sess.LearnerID, sess.StartedAt, sess.EndedAt, sess.DurationMinutes,
		sess.StartingBrainState, string(activities), string(supports), string(mood),
		string(breakthroughs), string(challenges),
	)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.LearningSession, error) {
	var sess domain.LearningSession
	var activitiesJSON, supportsJSON, moodJSON, breakthroughsJSON, challengesJSON string

	err := row.Scan(
		&sess.ID, &sess.LearnerID, &sess.StartedAt, &sess.EndedAt, &sess.DurationMinutes,
		&sess.StartingBrainState, &activitiesJSON, &supportsJSON, &moodJSON,
		&breakthroughsJSON, &challengesJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(activitiesJSON), &sess.ActivitiesCompleted); err != nil {
		return nil, fmt.Errorf("unmarshal activities: %w", err)
	}
	if err := json.Unmarshal([]byte(supportsJSON), &sess.SupportsUsed); err != nil {
		return nil, fmt.Errorf("unmarshal supports_used: %w", err)
	}
	if err := json.Unmarshal([]byte(moodJSON), &sess.Mood); err != nil {
		return nil, fmt.Errorf("unmarshal mood: %w", err)
	}
	if err := json.Unmarshal([]byte(breakthroughsJSON), &sess.BreakthroughMoments); err != nil {
		return nil, fmt.Errorf("unmarshal breakthrough_moments: %w", err)
	}
	if err := json.Unmarshal([]byte(challengesJSON), &sess.ChallengesMet); err != nil {
		return nil, fmt.Errorf("unmarshal challenges_met: %w", err)
	}

	return &sess, nil
}
