package progress

import (
	"context"
	"errors"
	"sort"
	"sync"

	"brightwords/internal/domain"
	"brightwords/internal/week"
)

// fakeStore is an in-memory Store with transactional commit semantics:
// writes inside CommitSession stage against copies and only merge on success.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.LearnerProfile
	sessions map[string]*domain.LearningSession
	weekly   map[string]*domain.WeeklyProgress // learnerID + "/" + weekID

	// failure injection
	failInsertSession error
	failSaveWeekly    error
	failSaveProfile   error
	failUpdateProfile error

	// seedMissingRows mimics backends whose ForUpdate reads seed and
	// return zeroed records instead of reporting not-found.
	seedMissingRows bool

	commitCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*domain.LearnerProfile),
		sessions: make(map[string]*domain.LearningSession),
		weekly:   make(map[string]*domain.WeeklyProgress),
	}
}

func weeklyKey(learnerID, weekID string) string { return learnerID + "/" + weekID }

func (f *fakeStore) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[learnerID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdateProfileInTx(ctx context.Context, learnerID string, apply func(*domain.LearnerProfile) error) (*domain.LearnerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failUpdateProfile != nil {
		return nil, f.failUpdateProfile
	}

	p, ok := f.profiles[learnerID]
	if !ok {
		p = domain.NewLearnerProfile(learnerID)
	}
	cp := *p
	if err := apply(&cp); err != nil {
		return nil, err
	}
	f.profiles[learnerID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*domain.LearningSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListRecentSessions(ctx context.Context, learnerID string, limit int) ([]*domain.LearningSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.LearningSession
	for _, s := range f.sessions {
		if s.LearnerID == learnerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetWeekly(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.weekly[weeklyKey(learnerID, weekID)]
	if !ok {
		return nil, domain.ErrWeeklyProgressNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeStore) CommitSession(ctx context.Context, fn func(tx CommitTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commitCalls++
	tx := &fakeTx{store: f}
	if err := fn(tx); err != nil {
		return err
	}
	tx.merge()
	return nil
}

// fakeTx stages writes until merge.
type fakeTx struct {
	store          *fakeStore
	stagedSessions map[string]*domain.LearningSession
	stagedWeekly   map[string]*domain.WeeklyProgress
	stagedProfiles map[string]*domain.LearnerProfile
}

func (t *fakeTx) InsertSession(ctx context.Context, sess *domain.LearningSession) (bool, error) {
	if err := t.store.failInsertSession; err != nil {
		return false, err
	}
	if _, exists := t.store.sessions[sess.ID]; exists {
		return false, nil
	}
	if t.stagedSessions == nil {
		t.stagedSessions = make(map[string]*domain.LearningSession)
	}
	cp := *sess
	t.stagedSessions[sess.ID] = &cp
	return true, nil
}

func (t *fakeTx) WeeklyForUpdate(ctx context.Context, learnerID, weekID string) (*domain.WeeklyProgress, error) {
	w, ok := t.store.weekly[weeklyKey(learnerID, weekID)]
	if !ok {
		if t.store.seedMissingRows {
			wid, err := week.Parse(weekID)
			if err != nil {
				return nil, err
			}
			start, end := wid.Bounds()
			return domain.NewWeeklyProgress(learnerID, weekID, start, end), nil
		}
		return nil, domain.ErrWeeklyProgressNotFound
	}
	cp := *w
	return &cp, nil
}

func (t *fakeTx) SaveWeekly(ctx context.Context, w *domain.WeeklyProgress) error {
	if err := t.store.failSaveWeekly; err != nil {
		return err
	}
	if t.stagedWeekly == nil {
		t.stagedWeekly = make(map[string]*domain.WeeklyProgress)
	}
	cp := *w
	t.stagedWeekly[weeklyKey(w.LearnerID, w.WeekID)] = &cp
	return nil
}

func (t *fakeTx) ProfileForUpdate(ctx context.Context, learnerID string) (*domain.LearnerProfile, error) {
	p, ok := t.store.profiles[learnerID]
	if !ok {
		if t.store.seedMissingRows {
			return domain.NewLearnerProfile(learnerID), nil
		}
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *fakeTx) SaveProfile(ctx context.Context, p *domain.LearnerProfile) error {
	if err := t.store.failSaveProfile; err != nil {
		return err
	}
	if t.stagedProfiles == nil {
		t.stagedProfiles = make(map[string]*domain.LearnerProfile)
	}
	cp := *p
	t.stagedProfiles[p.LearnerID] = &cp
	return nil
}

func (t *fakeTx) merge() {
	for id, s := range t.stagedSessions {
		t.store.sessions[id] = s
	}
	for k, w := range t.stagedWeekly {
		t.store.weekly[k] = w
	}
	for id, p := range t.stagedProfiles {
		t.store.profiles[id] = p
	}
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []SessionCompletedEvent
	fail   error
}

func (p *fakePublisher) PublishSessionCompleted(ctx context.Context, ev SessionCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, ev)
	return nil
}

// fakeCache records invalidations and serves one learner's snapshot.
type fakeCache struct {
	mu           sync.Mutex
	snapshots    map[string]*domain.LearnerProfile
	invalidated  []string
	hits, misses int
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string]*domain.LearnerProfile)}
}

func (c *fakeCache) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.snapshots[learnerID]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	cp := *p
	return &cp, true
}

func (c *fakeCache) SetProfile(ctx context.Context, p *domain.LearnerProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.snapshots[p.LearnerID] = &cp
}

func (c *fakeCache) InvalidateLearner(ctx context.Context, learnerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, learnerID)
	c.invalidated = append(c.invalidated, learnerID)
}

var errStorageDown = errors.New("storage down")
