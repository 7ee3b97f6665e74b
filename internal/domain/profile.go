package domain

import (
	"time"
)

// Reading levels.
const (
	LevelEmergingReader   = "emerging_reader"
	LevelDevelopingReader = "developing_reader"
	LevelFluentReader     = "fluent_reader"
)

// Defaults applied when a learner's first activity arrives before any
// profile exists.
const (
	DefaultLevel        = LevelDevelopingReader
	DefaultReadingSpeed = 120
	DefaultDifficulty   = DifficultyRegular
)

// Confidence bounds for strengths.
const (
	confidenceInitial = 6.0
	confidenceStep    = 0.5
	confidenceMax     = 10.0
)

// LearnerProfile is the durable, continuously updated summary of a learner's
// skills and patterns. One per learner, mutated only inside store transactions.
type LearnerProfile struct {
	LearnerID   string `json:"learner_id"`
	GuardianID  string `json:"guardian_id"`
	DisplayName string `json:"display_name"`
	Age         int    `json:"age"`

	CurrentLevel        string `json:"current_level"`
	CurrentReadingSpeed int    `json:"current_reading_speed"` // words per minute
	PreferredDifficulty string `json:"preferred_difficulty"`

	Strengths          map[SkillTag]Strength     `json:"strengths"`
	StrugglingAreas    map[SkillTag]StruggleArea `json:"struggling_areas"`
	PreferredSupports  map[string]SupportStat    `json:"preferred_supports"`
	BestLearningStates map[string]StateStat      `json:"best_learning_states"`

	TotalActiveSessions int       `json:"total_active_sessions"`
	TotalLearningTime   int       `json:"total_learning_time"` // minutes
	StreakDays          int       `json:"streak_days"`
	LastActiveDate      time.Time `json:"last_active_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Strength records demonstrated proficiency in one skill.
type Strength struct {
	Tag              SkillTag  `json:"tag"`
	Confidence       float64   `json:"confidence"` // 1-10
	LastDemonstrated time.Time `json:"last_demonstrated"`
}

// StruggleArea records repeated difficulty with one skill.
type StruggleArea struct {
	Tag             SkillTag  `json:"tag"`
	Frequency       int       `json:"frequency"` // >= 1
	LastStruggle    time.Time `json:"last_struggle"`
	ImprovementPlan string    `json:"improvement_plan"`
}

// SupportStat tracks usage and efficacy of one support type.
type SupportStat struct {
	Type              string    `json:"type"`
	Frequency         int       `json:"frequency"`
	TriggeringCause   string    `json:"triggering_cause"`
	LastEffectiveness string    `json:"last_effectiveness"`
	LastUsed          time.Time `json:"last_used"`
}

// StateStat tracks how often a brain state appears at session start.
type StateStat struct {
	State        string    `json:"state"`
	Sessions     int       `json:"sessions"`
	LastObserved time.Time `json:"last_observed"`
}

// NewLearnerProfile creates a profile with fixed defaults, used both for
// explicit onboarding and for the first-activity-ever path.
func NewLearnerProfile(learnerID string) *LearnerProfile {
	now := time.Now().UTC()
	return &LearnerProfile{
		LearnerID:           learnerID,
		CurrentLevel:        DefaultLevel,
		CurrentReadingSpeed: DefaultReadingSpeed,
		PreferredDifficulty: DefaultDifficulty,
		Strengths:           make(map[SkillTag]Strength),
		StrugglingAreas:     make(map[SkillTag]StruggleArea),
		PreferredSupports:   make(map[string]SupportStat),
		BestLearningStates:  make(map[string]StateStat),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// RecordStrength bumps confidence for a demonstrated skill, inserting it at
// the initial confidence when first seen. Confidence never exceeds the cap.
func (p *LearnerProfile) RecordStrength(tag SkillTag, at time.Time) {
	if p.Strengths == nil {
		p.Strengths = make(map[SkillTag]Strength)
	}
	s, ok := p.Strengths[tag]
	if !ok {
		s = Strength{Tag: tag, Confidence: confidenceInitial}
	} else {
		s.Confidence = min(confidenceMax, s.Confidence+confidenceStep)
	}
	s.LastDemonstrated = at
	p.Strengths[tag] = s
	p.UpdatedAt = at
}

// RecordStruggle increments the struggle counter for a skill, inserting it
// with frequency 1 and a deterministic improvement plan when first seen.
func (p *LearnerProfile) RecordStruggle(tag SkillTag, at time.Time) {
	if p.StrugglingAreas == nil {
		p.StrugglingAreas = make(map[SkillTag]StruggleArea)
	}
	a, ok := p.StrugglingAreas[tag]
	if !ok {
		a = StruggleArea{Tag: tag, Frequency: 1, ImprovementPlan: ImprovementPlan(tag)}
	} else {
		a.Frequency++
	}
	a.LastStruggle = at
	p.StrugglingAreas[tag] = a
	p.UpdatedAt = at
}

// RecordReadingSpeed overwrites the current reading speed. Latest observation
// wins; there is no smoothing.
func (p *LearnerProfile) RecordReadingSpeed(wpm int, at time.Time) {
	if wpm < 0 {
		return
	}
	p.CurrentReadingSpeed = wpm
	p.UpdatedAt = at
}

// RecordSupportUse merges one support usage into the preferred-supports stats.
func (p *LearnerProfile) RecordSupportUse(supportType, cause, effectiveness string, at time.Time) {
	if p.PreferredSupports == nil {
		p.PreferredSupports = make(map[string]SupportStat)
	}
	s, ok := p.PreferredSupports[supportType]
	if !ok {
		s = SupportStat{Type: supportType}
	}
	s.Frequency++
	s.TriggeringCause = cause
	s.LastEffectiveness = effectiveness
	s.LastUsed = at
	p.PreferredSupports[supportType] = s
	p.UpdatedAt = at
}

// RecordLearningState counts a session's starting brain state.
func (p *LearnerProfile) RecordLearningState(state string, at time.Time) {
	if state == "" {
		return
	}
	if p.BestLearningStates == nil {
		p.BestLearningStates = make(map[string]StateStat)
	}
	st, ok := p.BestLearningStates[state]
	if !ok {
		st = StateStat{State: state}
	}
	st.Sessions++
	st.LastObserved = at
	p.BestLearningStates[state] = st
	p.UpdatedAt = at
}

// RecordSessionEnd applies the once-per-session counter updates: session
// count, learning time, and the daily streak.
func (p *LearnerProfile) RecordSessionEnd(durationMinutes int, endedAt time.Time) {
	p.TotalActiveSessions++
	p.TotalLearningTime += durationMinutes

	today := endedAt.UTC().Truncate(24 * time.Hour)
	last := p.LastActiveDate.UTC().Truncate(24 * time.Hour)
	switch {
	case p.LastActiveDate.IsZero():
		p.StreakDays = 1
	case today.Equal(last):
		// Second session today, streak unchanged.
	case today.Equal(last.Add(24 * time.Hour)):
		p.StreakDays++
	default:
		p.StreakDays = 1
	}
	p.LastActiveDate = today
	p.UpdatedAt = endedAt
}
