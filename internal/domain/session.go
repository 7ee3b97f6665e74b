package domain

import (
	"time"
)

// Brain states observed at session start and end.
const (
	BrainStateCalm      = "calm"
	BrainStateEnergetic = "energetic"
	BrainStateFocused   = "focused"
	BrainStateTired     = "tired"
	BrainStateAnxious   = "anxious"
)

// PerformanceMetrics captures the measured outcome of one activity.
type PerformanceMetrics struct {
	Accuracy       float64 `json:"accuracy"` // 0-100
	WordsPerMinute int     `json:"words_per_minute"`
	HintsUsed      int     `json:"hints_used"`
	Attempts       int     `json:"attempts"`
	CompletionRate float64 `json:"completion_rate"` // 0-100
}

// ActivityRecord is one discrete learning task completed within a session.
// Immutable once recorded.
type ActivityRecord struct {
	Type           string             `json:"type"`
	Title          string             `json:"title"`
	Difficulty     string             `json:"difficulty"`
	TimeSpent      int                `json:"time_spent"` // minutes
	Performance    PerformanceMetrics `json:"performance"`
	StruggledWith  []string           `json:"struggled_with"`
	MasteredSkills []string           `json:"mastered_skills"`
}

// Validate rejects malformed activities before any side effect occurs.
func (a *ActivityRecord) Validate() error {
	if a.Type == "" {
		return NewValidationError("activity.type", "required")
	}
	if a.Title == "" {
		return NewValidationError("activity.title", "required")
	}
	if a.TimeSpent < 0 {
		return NewValidationError("activity.time_spent", "must be >= 0 minutes")
	}
	if a.Performance.Accuracy < 0 || a.Performance.Accuracy > 100 {
		return NewValidationError("activity.performance.accuracy", "must be within [0,100]")
	}
	if a.Performance.WordsPerMinute < 0 {
		return NewValidationError("activity.performance.words_per_minute", "must be >= 0")
	}
	if a.Performance.CompletionRate < 0 || a.Performance.CompletionRate > 100 {
		return NewValidationError("activity.performance.completion_rate", "must be within [0,100]")
	}
	return nil
}

// SkillTag returns the skill taxonomy tag for this activity, using the
// learner's preferred difficulty when the activity does not carry one.
func (a *ActivityRecord) SkillTag(preferredDifficulty string) SkillTag {
	difficulty := a.Difficulty
	if difficulty == "" {
		difficulty = preferredDifficulty
	}
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	return NewSkillTag(difficulty, a.Type)
}

// SupportUsage tracks one support type used during a session.
type SupportUsage struct {
	Type              string `json:"type"`
	Frequency         int    `json:"frequency"`
	TriggeringCause   string `json:"triggering_cause"`
	LastEffectiveness string `json:"last_effectiveness"`
}

// MoodSnapshot records brain state at the session's bounds.
type MoodSnapshot struct {
	StartState  string `json:"start_state"`
	EndState    string `json:"end_state"`
	EnergyLevel string `json:"energy_level"`
}

// LearningSession is one bounded learning interaction, persisted exactly once
// at session end and never mutated thereafter.
type LearningSession struct {
	ID                 string    `json:"id"`
	LearnerID          string    `json:"learner_id"`
	StartedAt          time.Time `json:"started_at"`
	EndedAt            time.Time `json:"ended_at"`
	DurationMinutes    int       `json:"duration_minutes"`
	StartingBrainState string    `json:"starting_brain_state"`

	ActivitiesCompleted []ActivityRecord        `json:"activities_completed"`
	SupportsUsed        map[string]SupportUsage `json:"supports_used"`
	Mood                MoodSnapshot            `json:"mood"`
	BreakthroughMoments []string                `json:"breakthrough_moments"`
	ChallengesMet       []string                `json:"challenges_met"`
}

// AverageAccuracy returns the mean of the session's non-zero activity
// accuracies, or 0 if there are none.
func (s *LearningSession) AverageAccuracy() float64 {
	var sum float64
	var n int
	for _, a := range s.ActivitiesCompleted {
		if a.Performance.Accuracy > 0 {
			sum += a.Performance.Accuracy
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// MasteredSkills returns the union of mastered skills across the session's
// activities, in first-seen order.
func (s *LearningSession) MasteredSkills() []string {
	seen := make(map[string]bool)
	var skills []string
	for _, a := range s.ActivitiesCompleted {
		for _, skill := range a.MasteredSkills {
			if !seen[skill] {
				seen[skill] = true
				skills = append(skills, skill)
			}
		}
	}
	return skills
}

// LatestReadingSpeed returns the last non-zero wpm observed in the session
// and whether one was observed at all.
func (s *LearningSession) LatestReadingSpeed() (int, bool) {
	for i := len(s.ActivitiesCompleted) - 1; i >= 0; i-- {
		if wpm := s.ActivitiesCompleted[i].Performance.WordsPerMinute; wpm > 0 {
			return wpm, true
		}
	}
	return 0, false
}
