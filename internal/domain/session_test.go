package domain

import (
	"errors"
	"testing"
)

func validActivity() ActivityRecord {
	return ActivityRecord{
		Type:       ActivityWordBuilding,
		Title:      "Build: animals",
		Difficulty: DifficultyRegular,
		TimeSpent:  5,
		Performance: PerformanceMetrics{
			Accuracy:       90,
			WordsPerMinute: 100,
			CompletionRate: 100,
		},
	}
}

func TestActivityRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ActivityRecord)
		wantErr bool
	}{
		{"valid activity", func(a *ActivityRecord) {}, false},
		{"missing type", func(a *ActivityRecord) { a.Type = "" }, true},
		{"missing title", func(a *ActivityRecord) { a.Title = "" }, true},
		{"negative time spent", func(a *ActivityRecord) { a.TimeSpent = -1 }, true},
		{"accuracy below range", func(a *ActivityRecord) { a.Performance.Accuracy = -0.1 }, true},
		{"accuracy above range", func(a *ActivityRecord) { a.Performance.Accuracy = 100.1 }, true},
		{"accuracy at bounds", func(a *ActivityRecord) { a.Performance.Accuracy = 100 }, false},
		{"negative wpm", func(a *ActivityRecord) { a.Performance.WordsPerMinute = -5 }, true},
		{"completion rate above range", func(a *ActivityRecord) { a.Performance.CompletionRate = 101 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validActivity()
			tt.mutate(&a)

			err := a.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("error %v is not a *ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestActivityRecord_SkillTag(t *testing.T) {
	tests := []struct {
		name                string
		activityDifficulty  string
		preferredDifficulty string
		want                SkillTag
	}{
		{"activity difficulty wins", DifficultyChallenge, DifficultyGentle, "challenge_word_building"},
		{"falls back to preferred", "", DifficultyGentle, "gentle_word_building"},
		{"falls back to default", "", "", "regular_word_building"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validActivity()
			a.Difficulty = tt.activityDifficulty
			if got := a.SkillTag(tt.preferredDifficulty); got != tt.want {
				t.Errorf("SkillTag() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLearningSession_AverageAccuracy(t *testing.T) {
	sess := &LearningSession{
		ActivitiesCompleted: []ActivityRecord{
			{Performance: PerformanceMetrics{Accuracy: 80}},
			{Performance: PerformanceMetrics{Accuracy: 0}}, // untracked, excluded
			{Performance: PerformanceMetrics{Accuracy: 90}},
		},
	}
	if got := sess.AverageAccuracy(); got != 85 {
		t.Errorf("AverageAccuracy() = %v, want 85", got)
	}

	empty := &LearningSession{}
	if got := empty.AverageAccuracy(); got != 0 {
		t.Errorf("AverageAccuracy() on empty session = %v, want 0", got)
	}
}

func TestLearningSession_MasteredSkills(t *testing.T) {
	sess := &LearningSession{
		ActivitiesCompleted: []ActivityRecord{
			{MasteredSkills: []string{"cat", "dog"}},
			{MasteredSkills: []string{"dog", "fish"}},
		},
	}
	got := sess.MasteredSkills()
	want := []string{"cat", "dog", "fish"}
	if len(got) != len(want) {
		t.Fatalf("MasteredSkills() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MasteredSkills()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLearningSession_LatestReadingSpeed(t *testing.T) {
	sess := &LearningSession{
		ActivitiesCompleted: []ActivityRecord{
			{Performance: PerformanceMetrics{WordsPerMinute: 90}},
			{Performance: PerformanceMetrics{WordsPerMinute: 110}},
			{Performance: PerformanceMetrics{WordsPerMinute: 0}}, // no reading
		},
	}
	wpm, ok := sess.LatestReadingSpeed()
	if !ok || wpm != 110 {
		t.Errorf("LatestReadingSpeed() = %d, %v; want 110, true", wpm, ok)
	}

	none := &LearningSession{}
	if _, ok := none.LatestReadingSpeed(); ok {
		t.Error("expected no reading speed for empty session")
	}
}
