package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brightwords/internal/domain"
)

const profileColumns = `learner_id, guardian_id, display_name, age,
	current_level, current_reading_speed, preferred_difficulty,
	strengths, struggling_areas, preferred_supports, best_learning_states,
	total_active_sessions, total_learning_time, streak_days, last_active_date,
	created_at, updated_at`

// GetProfile retrieves a learner's profile.
func (s *Store) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, error) {
	return getProfile(ctx, s.db, learnerID)
}

// UpdateProfileInTx runs apply against the profile inside one transaction,
// creating a default profile first when none exists.
func (s *Store) UpdateProfileInTx(ctx context.Context, learnerID string, apply func(*domain.LearnerProfile) error) (*domain.LearnerProfile, error) {
	var updated *domain.LearnerProfile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getProfile(ctx, tx, learnerID)
		if errors.Is(err, domain.ErrProfileNotFound) {
			p = domain.NewLearnerProfile(learnerID)
		} else if err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		if err := saveProfile(ctx, tx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (t *commitTx) ProfileForUpdate(ctx context.Context, learnerID string) (*domain.LearnerProfile, error) {
	return getProfile(ctx, t.tx, learnerID)
}

func (t *commitTx) SaveProfile(ctx context.Context, p *domain.LearnerProfile) error {
	return saveProfile(ctx, t.tx, p)
}

func getProfile(ctx context.Context, q dbtx, learnerID string) (*domain.LearnerProfile, error) {
	row := q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE learner_id = ?`, learnerID)
	return scanProfile(row)
}

func saveProfile(ctx context.Context, q dbtx, p *domain.LearnerProfile) error {
	strengths, err := json.Marshal(p.Strengths)
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	struggles, err := json.Marshal(p.StrugglingAreas)
	if err != nil {
		return fmt.Errorf("marshal struggling_areas: %w", err)
	}
	supports, err := json.Marshal(p.PreferredSupports)
	if err != nil {
		return fmt.Errorf("marshal preferred_supports: %w", err)
	}
	states, err := json.Marshal(p.BestLearningStates)
	if err != nil {
		return fmt.Errorf("marshal best_learning_states: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id) DO UPDATE SET
			guardian_id=excluded.guardian_id,
			display_name=excluded.display_name,
			age=excluded.age,
			current_level=excluded.current_level,
			current_reading_speed=excluded.current_reading_speed,
			preferred_difficulty=excluded.preferred_difficulty,
			strengths=excluded.strengths,
			struggling_areas=excluded.struggling_areas,
			preferred_supports=excluded.preferred_supports,
			best_learning_states=excluded.best_learning_states,
			total_active_sessions=excluded.total_active_sessions,
			total_learning_time=excluded.total_learning_time,
			streak_days=excluded.streak_days,
			last_active_date=excluded.last_active_date,
			updated_at=excluded.updated_at`,
		p.LearnerID, p.GuardianID, p.DisplayName, p.Age,
		p.CurrentLevel, p.CurrentReadingSpeed, p.PreferredDifficulty,
		string(strengths), string(struggles), string(supports), string(states),
		p.TotalActiveSessions, p.TotalLearningTime, p.StreakDays, nullTime(p.LastActiveDate),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func scanProfile(row *sql.Row) (*domain.LearnerProfile, error) {
	var p domain.LearnerProfile
	var strengthsJSON, strugglesJSON, supportsJSON, statesJSON string
	var lastActive sql.NullTime

	err := row.Scan(
		&p.LearnerID, &p.GuardianID, &p.DisplayName, &p.Age,
		&p.CurrentLevel, &p.CurrentReadingSpeed, &p.PreferredDifficulty,
		&strengthsJSON, &strugglesJSON, &supportsJSON, &statesJSON,
		&p.TotalActiveSessions, &p.TotalLearningTime, &p.StreakDays, &lastActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if lastActive.Valid {
		p.LastActiveDate = lastActive.Time
	}
	if err := json.Unmarshal([]byte(strengthsJSON), &p.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(strugglesJSON), &p.StrugglingAreas); err != nil {
		return nil, fmt.Errorf("unmarshal struggling_areas: %w", err)
	}
	if err := json.Unmarshal([]byte(supportsJSON), &p.PreferredSupports); err != nil {
		return nil, fmt.Errorf("unmarshal preferred_supports: %w", err)
	}
	if err := json.Unmarshal([]byte(statesJSON), &p.BestLearningStates); err != nil {
		return nil, fmt.Errorf("unmarshal best_learning_states: %w", err)
	}

	return &p, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
