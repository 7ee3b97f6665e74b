package domain

import (
	"time"
)

// WeeklyProgress is the additive aggregate of all sessions falling in one
// ISO calendar week. One per (learner, week), updated as sessions complete.
type WeeklyProgress struct {
	WeekID    string    `json:"week_id"` // "YYYY_Www"
	LearnerID string    `json:"learner_id"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`

	SessionsCompleted    int     `json:"sessions_completed"`
	TotalLearningTime    int     `json:"total_learning_time"` // minutes
	AverageSessionLength float64 `json:"average_session_length"`
	AverageAccuracy      float64 `json:"average_accuracy"`
	AccuracySessions     int     `json:"accuracy_sessions"` // sessions contributing to the average
	CurrentReadingSpeed  int     `json:"current_reading_speed"`

	NewSkillsAcquired  []string `json:"new_skills_acquired"`
	CelebrationMoments []string `json:"celebration_moments"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewWeeklyProgress creates a zeroed record for a learner and week span.
func NewWeeklyProgress(learnerID, weekID string, start, end time.Time) *WeeklyProgress {
	return &WeeklyProgress{
		WeekID:    weekID,
		LearnerID: learnerID,
		WeekStart: start,
		WeekEnd:   end,
	}
}

// Apply folds a completed session into the week's totals. AverageSessionLength
// is always recomputed from the two counters it derives from.
func (w *WeeklyProgress) Apply(sess *LearningSession) {
	w.SessionsCompleted++
	w.TotalLearningTime += sess.DurationMinutes
	w.AverageSessionLength = float64(w.TotalLearningTime) / float64(w.SessionsCompleted)

	if avg := sess.AverageAccuracy(); avg > 0 {
		w.AverageAccuracy = (w.AverageAccuracy*float64(w.AccuracySessions) + avg) / float64(w.AccuracySessions+1)
		w.AccuracySessions++
	}

	if wpm, ok := sess.LatestReadingSpeed(); ok {
		w.CurrentReadingSpeed = wpm
	}

	seen := make(map[string]bool, len(w.NewSkillsAcquired))
	for _, s := range w.NewSkillsAcquired {
		seen[s] = true
	}
	for _, s := range sess.MasteredSkills() {
		if !seen[s] {
			seen[s] = true
			w.NewSkillsAcquired = append(w.NewSkillsAcquired, s)
		}
	}

	w.CelebrationMoments = append(w.CelebrationMoments, sess.BreakthroughMoments...)
	w.UpdatedAt = sess.EndedAt
}
