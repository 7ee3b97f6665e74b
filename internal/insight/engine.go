// Package insight derives summary statistics and recommendations from recent
// sessions and the learner profile. Everything here is a pure function of its
// inputs; the read path never mutates stored state.
package insight

import (
	"fmt"
	"sort"

	"brightwords/internal/domain"
)

// Trend values reported by ImprovementTrend.
const (
	TrendImproving = "improving"
	TrendSteady    = "steady"
)

// Summary is the derived portion of a caregiver-facing insights payload.
type Summary struct {
	AverageAccuracy float64  `json:"average_accuracy"`
	Trend           string   `json:"trend"`
	Recommendations []string `json:"recommendations"`
	TopStrengths    []string `json:"top_strengths"`
}

// Summarize produces the full derived summary for a profile and its recent
// sessions, most recent first.
func Summarize(profile *domain.LearnerProfile, sessions []*domain.LearningSession) Summary {
	return Summary{
		AverageAccuracy: AverageAccuracy(sessions),
		Trend:           ImprovementTrend(sessions),
		Recommendations: Recommendations(profile, sessions),
		TopStrengths:    TopStrengths(profile, 3),
	}
}

// AverageAccuracy returns the mean of all non-zero accuracy values across all
// activities in the given sessions, or 0 if there are none.
func AverageAccuracy(sessions []*domain.LearningSession) float64 {
	var sum float64
	var n int
	for _, s := range sessions {
		for _, a := range s.ActivitiesCompleted {
			if a.Performance.Accuracy > 0 {
				sum += a.Performance.Accuracy
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ImprovementTrend compares the oldest and newest of the last three sessions
// (most recent first) and reports "improving" or "steady". A coarse
// heuristic, not a statistical test.
func ImprovementTrend(sessions []*domain.LearningSession) string {
	if len(sessions) < 3 {
		return TrendSteady
	}
	newest := sessions[0].AverageAccuracy()
	oldest := sessions[2].AverageAccuracy()
	if newest > oldest {
		return TrendImproving
	}
	return TrendSteady
}

// Recommendations surfaces the highest-frequency struggle area with its
// improvement plan, and suggests more frequent practice when fewer than
// three recent sessions exist.
func Recommendations(profile *domain.LearnerProfile, sessions []*domain.LearningSession) []string {
	var recs []string

	if profile != nil && len(profile.StrugglingAreas) > 0 {
		areas := make([]domain.StruggleArea, 0, len(profile.StrugglingAreas))
		for _, a := range profile.StrugglingAreas {
			areas = append(areas, a)
		}
		sort.Slice(areas, func(i, j int) bool {
			if areas[i].Frequency != areas[j].Frequency {
				return areas[i].Frequency > areas[j].Frequency
			}
			return areas[i].Tag < areas[j].Tag
		})
		top := areas[0]
		recs = append(recs, fmt.Sprintf("Focus on %s: %s", top.Tag.DisplayName(), top.ImprovementPlan))
	}

	if len(sessions) < 3 {
		recs = append(recs, "Try a few more short practice sessions this week to build momentum.")
	}

	return recs
}

// TopStrengths returns up to n strength display names ranked by confidence,
// breaking ties by most recently demonstrated.
func TopStrengths(profile *domain.LearnerProfile, n int) []string {
	if profile == nil || len(profile.Strengths) == 0 {
		return nil
	}
	strengths := make([]domain.Strength, 0, len(profile.Strengths))
	for _, s := range profile.Strengths {
		strengths = append(strengths, s)
	}
	sort.Slice(strengths, func(i, j int) bool {
		if strengths[i].Confidence != strengths[j].Confidence {
			return strengths[i].Confidence > strengths[j].Confidence
		}
		return strengths[i].LastDemonstrated.After(strengths[j].LastDemonstrated)
	})
	if len(strengths) > n {
		strengths = strengths[:n]
	}
	names := make([]string, len(strengths))
	for i, s := range strengths {
		names[i] = s.Tag.DisplayName()
	}
	return names
}
