package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brightwords/internal/domain"

	"github.com/jackc/pgx/v5"
)

const profileColumns = `learner_id, guardian_id, display_name, age,
	current_level, current_reading_speed, preferred_difficulty,
	strengths, struggling_areas, preferred_supports, best_learning_states,
	total_active_sessions, total_learning_time, streak_days, last_active_date,
	created_at, updated_at`

// GetProfile retrieves a learner's profile.
func (s *Store) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, error) {
	return getProfile(ctx, s.pool, learnerID, false)
}

// UpdateProfileInTx runs apply against the profile inside one transaction.
// The profile row is read FOR UPDATE, so concurrent activity submissions for
// one learner serialize on the row lock; a missing profile is materialized
// with defaults inside the same transaction.
func (s *Store) UpdateProfileInTx(ctx context.Context, learnerID string, apply func(*domain.LearnerProfile) error) (*domain.LearnerProfile, error) {
	var updated *domain.LearnerProfile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := profileForUpdate(ctx, tx, learnerID)
		if err != nil {
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
	return profileForUpdate(ctx, t.tx, learnerID)
}

// profileForUpdate locks the profile row, seeding a default profile when the
// learner has none yet. FOR UPDATE locks nothing on a missing row, so two
// first-ever writes for one learner must contend on the seeded insert's
// unique key instead of both starting from defaults.
func profileForUpdate(ctx context.Context, tx pgx.Tx, learnerID string) (*domain.LearnerProfile, error) {
	p, err := getProfile(ctx, tx, learnerID, true)
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return p, err
	}
	if err := seedProfile(ctx, tx, domain.NewLearnerProfile(learnerID)); err != nil {
		return nil, err
	}
	return getProfile(ctx, tx, learnerID, true)
}

// seedProfile inserts a default profile row if none exists. The JSON and
// counter columns take their schema defaults.
func seedProfile(ctx context.Context, q queryer, p *domain.LearnerProfile) error {
	_, err := q.Exec(ctx, `
		INSERT INTO profiles (learner_id, current_level, current_reading_speed,
			preferred_difficulty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (learner_id) DO NOTHING`,
		p.LearnerID, p.CurrentLevel, p.CurrentReadingSpeed, p.PreferredDifficulty,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return markTransient(fmt.Errorf("seed profile: %w", err))
	}
	return nil
}

func (t *commitTx) SaveProfile(ctx context.Context, p *domain.LearnerProfile) error {
	return saveProfile(ctx, t.tx, p)
}

func getProfile(ctx context.Context, q queryer, learnerID string, forUpdate bool) (*domain.LearnerProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE learner_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var p domain.LearnerProfile
	var strengths, struggles, supports, states []byte
	var lastActive sql.NullTime

	err := q.QueryRow(ctx, query, learnerID).Scan(
		&p.LearnerID, &p.GuardianID, &p.DisplayName, &p.Age,
		&p.CurrentLevel, &p.CurrentReadingSpeed, &p.PreferredDifficulty,
		&strengths, &struggles, &supports, &states,
		&p.TotalActiveSessions, &p.TotalLearningTime, &p.StreakDays, &lastActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, markTransient(fmt.Errorf("scan profile: %w", err))
	}

	if lastActive.Valid {
		p.LastActiveDate = lastActive.Time
	}
	if err := json.Unmarshal(strengths, &p.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal(struggles, &p.StrugglingAreas); err != nil {
		return nil, fmt.Errorf("unmarshal struggling_areas: %w", err)
	}
	if err := json.Unmarshal(supports, &p.PreferredSupports); err != nil {
		return nil, fmt.Errorf("unmarshal preferred_supports: %w", err)
	}
	if err := json.Unmarshal(states, &p.BestLearningStates); err != nil {
		return nil, fmt.Errorf("unmarshal best_learning_states: %w", err)
	}
	return &p, nil
}

func saveProfile(ctx context.Context, q queryer, p *domain.LearnerProfile) error {
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

	_, err = q.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (learner_id) DO UPDATE SET
			guardian_id=EXCLUDED.guardian_id,
			display_name=EXCLUDED.display_name,
			age=EXCLUDED.age,
			current_level=EXCLUDED.current_level,
			current_reading_speed=EXCLUDED.current_reading_speed,
			preferred_difficulty=EXCLUDED.preferred_difficulty,
			strengths=EXCLUDED.strengths,
			struggling_areas=EXCLUDED.struggling_areas,
			preferred_supports=EXCLUDED.preferred_supports,
			best_learning_states=EXCLUDED.best_learning_states,
			total_active_sessions=EXCLUDED.total_active_sessions,
			total_learning_time=EXCLUDED.total_learning_time,
			streak_days=EXCLUDED.streak_days,
			last_active_date=EXCLUDED.last_active_date,
			updated_at=EXCLUDED.updated_at`,
		p.LearnerID, p.GuardianID, p.DisplayName, p.Age,
		p.CurrentLevel, p.CurrentReadingSpeed, p.PreferredDifficulty,
		strengths, struggles, supports, states,
		p.TotalActiveSessions, p.TotalLearningTime, p.StreakDays, nullTime(p.LastActiveDate),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return markTransient(fmt.Errorf("upsert profile: %w", err))
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
