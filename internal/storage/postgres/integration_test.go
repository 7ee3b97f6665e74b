//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"brightwords/internal/domain"
	"brightwords/internal/progress"
	"brightwords/internal/storage/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://test:test@%s:%s/test?sslmode=disable", host, port.Port())
	pool, err := postgres.Connect(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return pool
}

func endedTestSession(id string, startedAt time.Time, minutes int) *domain.LearningSession {
	return &domain.LearningSession{
		ID:                 id,
		LearnerID:          "learner-1",
		StartedAt:          startedAt,
		EndedAt:            startedAt.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes:    minutes,
		StartingBrainState: domain.BrainStateCalm,
	}
}

// Concurrent session ends for a learner whose week and profile rows do not
// exist yet must serialize on the seeded rows; no increment may be lost to
// a stale read of "no row".
func TestIntegration_ConcurrentFirstCommitsOfAWeek(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t)
	store := postgres.NewStore(pool)
	coord := progress.NewCoordinator(store, nil, nil)

	const sessions = 4
	start := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC) // Monday, week 35

	var g errgroup.Group
	for i := 0; i < sessions; i++ {
		sess := endedTestSession(fmt.Sprintf("sess-%d", i), start.Add(time.Duration(i)*time.Hour), 10)
		g.Go(func() error {
			return coord.Persist(ctx, sess)
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Persist error = %v", err)
	}

	wp, err := store.GetWeekly(ctx, "learner-1", "2026_W35")
	if err != nil {
		t.Fatalf("GetWeekly() error = %v", err)
	}
	if wp.SessionsCompleted != sessions {
		t.Errorf("SessionsCompleted = %d, want %d", wp.SessionsCompleted, sessions)
	}
	if wp.TotalLearningTime != sessions*10 {
		t.Errorf("TotalLearningTime = %d, want %d", wp.TotalLearningTime, sessions*10)
	}
	if wp.WeekStart.IsZero() || wp.WeekEnd.IsZero() {
		t.Errorf("rollup lost its week bounds: %v .. %v", wp.WeekStart, wp.WeekEnd)
	}

	p, err := store.GetProfile(ctx, "learner-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.TotalActiveSessions != sessions {
		t.Errorf("TotalActiveSessions = %d, want %d", p.TotalActiveSessions, sessions)
	}
}

func TestIntegration_ConcurrentFirstProfileUpdates(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t)
	store := postgres.NewStore(pool)

	const updates = 4
	var g errgroup.Group
	for i := 0; i < updates; i++ {
		g.Go(func() error {
			_, err := store.UpdateProfileInTx(ctx, "learner-2", func(p *domain.LearnerProfile) error {
				p.TotalLearningTime += 5
				return nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent UpdateProfileInTx error = %v", err)
	}

	p, err := store.GetProfile(ctx, "learner-2")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.TotalLearningTime != updates*5 {
		t.Errorf("TotalLearningTime = %d, want %d", p.TotalLearningTime, updates*5)
	}
}
