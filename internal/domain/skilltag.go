package domain

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Difficulty levels for activities.
const (
	DifficultyGentle    = "gentle"
	DifficultyRegular   = "regular"
	DifficultyChallenge = "challenge"
)

// Activity types tracked by the engine.
const (
	ActivityWordBuilding  = "word_building"
	ActivityStoryReading  = "story_reading"
	ActivitySightWords    = "sight_words"
	ActivityComprehension = "comprehension"
	ActivityWorksheet     = "worksheet"
)

// SkillTag identifies a skill as "{difficulty}_{activityType}", e.g.
// "regular_word_building". Tags are unique within a profile's strengths
// and within its struggling areas.
type SkillTag string

// NewSkillTag builds the tag for a difficulty and activity type.
func NewSkillTag(difficulty, activityType string) SkillTag {
	return SkillTag(difficulty + "_" + activityType)
}

// DisplayName returns a human-readable name for the tag.
func (t SkillTag) DisplayName() string {
	if p, ok := planTable()[string(t)]; ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return strings.ReplaceAll(string(t), "_", " ")
}

// ImprovementPlan returns the deterministic improvement plan for a tag,
// falling back to a generic plan for unrecognized tags.
func ImprovementPlan(tag SkillTag) string {
	if p, ok := planTable()[string(tag)]; ok && p.Plan != "" {
		return p.Plan
	}
	return fmt.Sprintf("Practice %s in short, low-pressure bursts and celebrate each attempt.", tag.DisplayName())
}

//go:embed plans.yaml
var plansYAML []byte

type planEntry struct {
	DisplayName string `yaml:"display_name"`
	Plan        string `yaml:"plan"`
}

var (
	plansOnce sync.Once
	plans     map[string]planEntry
)

func planTable() map[string]planEntry {
	plansOnce.Do(func() {
		if err := yaml.Unmarshal(plansYAML, &plans); err != nil {
			slog.Error("parse improvement plans", "error", err)
			plans = map[string]planEntry{}
		}
	})
	return plans
}
