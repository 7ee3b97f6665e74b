package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"brightwords/internal/domain"
	"brightwords/internal/retry"
	"brightwords/internal/week"
)

func testService(store *fakeStore, publisher EventPublisher, cache SnapshotCache) *Service {
	cfg := retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return NewService(store, publisher, cache, cfg)
}

func TestService_OneActiveSessionPerLearner(t *testing.T) {
	ctx := context.Background()
	svc := testService(newFakeStore(), nil, nil)

	first, err := svc.StartSession(ctx, "learner-1", domain.BrainStateCalm)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	if _, err := svc.StartSession(ctx, "learner-1", domain.BrainStateCalm); !errors.Is(err, domain.ErrSessionInProgress) {
		t.Errorf("second StartSession = %v, want ErrSessionInProgress", err)
	}

	// A different learner is unaffected.
	if _, err := svc.StartSession(ctx, "learner-2", domain.BrainStateTired); err != nil {
		t.Errorf("other learner StartSession = %v", err)
	}

	// Ending frees the slot.
	if _, err := svc.EndSession(ctx, first, domain.BrainStateCalm, "high"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if _, err := svc.StartSession(ctx, "learner-1", domain.BrainStateFocused); err != nil {
		t.Errorf("StartSession after end = %v", err)
	}
}

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := testService(store, nil, nil)

	id, err := svc.StartSession(ctx, "learner-1", domain.BrainStateCalm)
	if err != nil {
		t.Fatal(err)
	}

	activity := wordBuildingActivity(100)
	activity.MasteredSkills = []string{"cat", "dog"}
	if err := svc.RecordActivity(ctx, id, activity); err != nil {
		t.Fatalf("RecordActivity() error = %v", err)
	}
	if err := svc.RecordBreakthrough(ctx, id, "read 'caterpillar' unaided"); err != nil {
		t.Fatal(err)
	}

	sess, err := svc.EndSession(ctx, id, domain.BrainStateEnergetic, "high")
	if err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	// Accuracy 100 exceeds the strength threshold.
	p, err := svc.GetProfile(ctx, "learner-1")
	if err != nil {
		t.Fatal(err)
	}
	tag := domain.NewSkillTag(domain.DifficultyRegular, domain.ActivityWordBuilding)
	if got := p.Strengths[tag].Confidence; got != 6.0 {
		t.Errorf("strength confidence = %v, want initial 6.0", got)
	}
	if p.TotalActiveSessions != 1 {
		t.Errorf("TotalActiveSessions = %d, want 1", p.TotalActiveSessions)
	}

	weekID := week.FromTime(sess.StartedAt).String()
	wp, err := svc.GetWeeklyProgress(ctx, "learner-1", weekID)
	if err != nil {
		t.Fatal(err)
	}
	if wp.SessionsCompleted != 1 {
		t.Errorf("SessionsCompleted = %d, want 1", wp.SessionsCompleted)
	}
	if len(wp.NewSkillsAcquired) != 2 {
		t.Errorf("NewSkillsAcquired = %v, want [cat dog]", wp.NewSkillsAcquired)
	}
	if len(wp.CelebrationMoments) != 1 {
		t.Errorf("CelebrationMoments = %v, want the breakthrough", wp.CelebrationMoments)
	}

	sessions, err := svc.GetRecentSessions(ctx, "learner-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != sess.ID {
		t.Errorf("GetRecentSessions = %v, want the ended session", sessions)
	}
}

func TestService_OperationsOnUnknownSession(t *testing.T) {
	ctx := context.Background()
	svc := testService(newFakeStore(), nil, nil)

	if err := svc.RecordActivity(ctx, "nope", wordBuildingActivity(90)); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Errorf("RecordActivity = %v, want ErrSessionNotActive", err)
	}
	if _, err := svc.EndSession(ctx, "nope", "", ""); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Errorf("EndSession = %v, want ErrSessionNotActive", err)
	}
}

func TestService_GetProfile_CacheReadThrough(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := newFakeCache()
	svc := testService(store, nil, cache)

	store.profiles["learner-1"] = domain.NewLearnerProfile("learner-1")

	// First read misses the cache and fills it.
	if _, err := svc.GetProfile(ctx, "learner-1"); err != nil {
		t.Fatal(err)
	}
	if cache.misses != 1 || cache.hits != 0 {
		t.Errorf("after first read: hits=%d misses=%d", cache.hits, cache.misses)
	}

	// Second read is served from the cache.
	if _, err := svc.GetProfile(ctx, "learner-1"); err != nil {
		t.Fatal(err)
	}
	if cache.hits != 1 {
		t.Errorf("after second read: hits=%d, want 1", cache.hits)
	}
}

func TestService_GetProfile_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := testService(newFakeStore(), nil, nil)

	if _, err := svc.GetProfile(ctx, "ghost"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("GetProfile = %v, want ErrProfileNotFound", err)
	}
}

func TestService_GetWeeklyProgress_Validation(t *testing.T) {
	ctx := context.Background()
	svc := testService(newFakeStore(), nil, nil)

	if _, err := svc.GetWeeklyProgress(ctx, "learner-1", "2026-W35"); !domain.IsValidation(err) {
		t.Errorf("malformed week id = %v, want validation error", err)
	}

	// Empty id means current week; an empty week is not found, not invalid.
	if _, err := svc.GetWeeklyProgress(ctx, "learner-1", ""); !errors.Is(err, domain.ErrWeeklyProgressNotFound) {
		t.Errorf("current-week read = %v, want ErrWeeklyProgressNotFound", err)
	}
}

func TestService_GetInsights(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := testService(store, nil, nil)

	// A brand-new learner has no profile, sessions, or rollups. Insights
	// must still come back, with a suggestion to practice more.
	ins, err := svc.GetInsights(ctx, "new-learner")
	if err != nil {
		t.Fatalf("GetInsights() error = %v", err)
	}
	if ins.Profile != nil || ins.WeeklyProgress != nil {
		t.Errorf("expected empty insights, got %+v", ins)
	}
	if len(ins.Summary.Recommendations) == 0 {
		t.Error("expected a recommendation for a learner with no sessions")
	}
}

func TestService_GetInsights_WithData(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := testService(store, nil, nil)

	id, err := svc.StartSession(ctx, "learner-1", domain.BrainStateCalm)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordActivity(ctx, id, wordBuildingActivity(95)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EndSession(ctx, id, "", ""); err != nil {
		t.Fatal(err)
	}

	ins, err := svc.GetInsights(ctx, "learner-1")
	if err != nil {
		t.Fatal(err)
	}
	if ins.Profile == nil {
		t.Fatal("expected a profile in insights")
	}
	if len(ins.RecentSessions) != 1 {
		t.Errorf("RecentSessions = %d, want 1", len(ins.RecentSessions))
	}
	if ins.Summary.AverageAccuracy != 95 {
		t.Errorf("AverageAccuracy = %v, want 95", ins.Summary.AverageAccuracy)
	}
}

func TestService_EndSessionPersistFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := testService(store, nil, nil)

	id, err := svc.StartSession(ctx, "learner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	store.failInsertSession = errStorageDown
	if _, err := svc.EndSession(ctx, id, "", ""); err == nil {
		t.Fatal("expected EndSession to fail")
	}

	// The learner can start a new session; the failed one is retired from
	// the active slot even though its record was not persisted.
	if _, err := svc.StartSession(ctx, "learner-1", ""); err != nil {
		t.Errorf("StartSession after failed end = %v", err)
	}
}

func TestService_EndSessionRetryAfterPersistFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := testService(store, nil, nil)

	id, err := svc.StartSession(ctx, "learner-1", "")
	if err != nil {
		t.Fatal(err)
	}

	store.failInsertSession = errStorageDown
	if _, err := svc.EndSession(ctx, id, "", ""); err == nil {
		t.Fatal("expected EndSession to fail")
	}

	// The recorder stays registered, so the same session id can be ended
	// again once storage recovers.
	store.failInsertSession = nil
	sess, err := svc.EndSession(ctx, id, "", "")
	if err != nil {
		t.Fatalf("retried EndSession error = %v", err)
	}
	if _, err := store.GetSession(ctx, sess.ID); err != nil {
		t.Errorf("session not stored after retried end: %v", err)
	}

	// A successful commit retires the recorder for good.
	if _, err := svc.EndSession(ctx, id, "", ""); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Errorf("EndSession after retirement = %v, want ErrSessionNotActive", err)
	}
}
