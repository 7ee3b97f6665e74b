package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"brightwords/internal/domain"

	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, learner_id, started_at, ended_at, duration_minutes,
	starting_brain_state, activities, supports_used, mood,
	breakthrough_moments, challenges_met`

// GetSession retrieves a persisted session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.LearningSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// ListRecentSessions returns a learner's sessions most recent first.
func (s *Store) ListRecentSessions(ctx context.Context, learnerID string, limit int) ([]*domain.LearningSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE learner_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, learnerID, limit)
	if err != nil {
		return nil, markTransient(fmt.Errorf("list sessions: %w", err))
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
	if err := rows.Err(); err != nil {
		return nil, markTransient(err)
	}
	return sessions, nil
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

	tag, err := t.tx.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.LearnerID, sess.StartedAt, sess.EndedAt, sess.DurationMinutes,
		sess.StartingBrainState, activities, supports, mood,
		breakthroughs, challenges,
	)
	if err != nil {
		return false, markTransient(fmt.Errorf("insert session: %w", err))
	}
	return tag.RowsAffected() > 0, nil
}

func scanSession(row pgx.Row) (*domain.LearningSession, error) {
	var sess domain.LearningSession
	var activities, supports, mood, breakthroughs, challenges []byte

	err := row.Scan(
		&sess.ID, &sess.LearnerID, &sess.StartedAt, &sess.EndedAt, &sess.DurationMinutes,
		&sess.StartingBrainState, &activities, &supports, &mood,
		&breakthroughs, &challenges,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, markTransient(fmt.Errorf("scan session: %w", err))
	}

	if err := json.Unmarshal(activities, &sess.ActivitiesCompleted); err != nil {
		return nil, fmt.Errorf("unmarshal activities: %w", err)
	}
	if err := json.Unmarshal(supports, &sess.SupportsUsed); err != nil {
		return nil, fmt.Errorf("unmarshal supports_used: %w", err)
	}
	if err := json.Unmarshal(mood, &sess.Mood); err != nil {
		return nil, fmt.Errorf("unmarshal mood: %w", err)
	}
	if err := json.Unmarshal(breakthroughs, &sess.BreakthroughMoments); err != nil {
		return nil, fmt.Errorf("unmarshal breakthrough_moments: %w", err)
	}
	if err := json.Unmarshal(challenges, &sess.ChallengesMet); err != nil {
		return nil, fmt.Errorf("unmarshal challenges_met: %w", err)
	}
	return &sess, nil
}
