package progress

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"brightwords/internal/domain"

	"github.com/google/uuid"
)

// State is the recorder lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateActive     State = "active"
	StateEnded      State = "ended"
)

// Recorder accumulates one session's state in memory between Start and End.
// It is owned by a single caller flow; it is not designed for concurrent
// mutation of the same session by independent callers, though its methods
// are locked so a retry racing a fresh call cannot corrupt it.
type Recorder struct {
	mu         sync.Mutex
	state      State
	aggregator *ProfileAggregator
	committer  *Coordinator

	sess *domain.LearningSession

	// persisted distinguishes an Ended session that committed from one
	// whose commit failed and may be re-driven through End.
	persisted bool

	// now is replaceable in tests.
	now func() time.Time
}

// NewRecorder creates a recorder in the NotStarted state.
func NewRecorder(aggregator *ProfileAggregator, committer *Coordinator) *Recorder {
	return &Recorder{
		state:      StateNotStarted,
		aggregator: aggregator,
		committer:  committer,
		now:        time.Now,
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start transitions NotStarted -> Active, allocating a unique session id and
// resetting all accumulators.
func (r *Recorder) Start(learnerID, brainState string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateActive:
		return "", domain.ErrSessionInProgress
	case StateEnded:
		return "", domain.ErrSessionAlreadyEnded
	}
	if learnerID == "" {
		return "", domain.NewValidationError("learner_id", "required")
	}

	now := r.now().UTC()
	r.sess = &domain.LearningSession{
		ID:                 uuid.New().String(),
		LearnerID:          learnerID,
		StartedAt:          now,
		StartingBrainState: brainState,
		SupportsUsed:       make(map[string]domain.SupportUsage),
		Mood:               domain.MoodSnapshot{StartState: brainState},
	}
	r.state = StateActive
	return r.sess.ID, nil
}

// RecordActivity validates the activity, applies the profile delta through
// the aggregator, then appends it to the in-memory session. A validation
// failure occurs before any side effect; an aggregator failure leaves the
// session's activity list unchanged so session and profile stay consistent.
func (r *Recorder) RecordActivity(ctx context.Context, activity domain.ActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireActive(); err != nil {
		return err
	}
	if err := activity.Validate(); err != nil {
		return err
	}

	if _, err := r.aggregator.ApplyActivity(ctx, r.sess.LearnerID, &activity); err != nil {
		return fmt.Errorf("apply activity to profile: %w", err)
	}

	r.sess.ActivitiesCompleted = append(r.sess.ActivitiesCompleted, activity)
	return nil
}

// RecordSupportUsage merges one support usage into the per-type counter.
func (r *Recorder) RecordSupportUsage(supportType, cause, effectiveness string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireActive(); err != nil {
		return err
	}
	if supportType == "" {
		return domain.NewValidationError("support.type", "required")
	}

	u, ok := r.sess.SupportsUsed[supportType]
	if !ok {
		u = domain.SupportUsage{Type: supportType}
	}
	u.Frequency++
	u.TriggeringCause = cause
	u.LastEffectiveness = effectiveness
	r.sess.SupportsUsed[supportType] = u
	return nil
}

// RecordBreakthrough appends a breakthrough moment.
func (r *Recorder) RecordBreakthrough(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireActive(); err != nil {
		return err
	}
	r.sess.BreakthroughMoments = append(r.sess.BreakthroughMoments, text)
	return nil
}

// RecordChallenge appends a challenge the learner met.
func (r *Recorder) RecordChallenge(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireActive(); err != nil {
		return err
	}
	r.sess.ChallengesMet = append(r.sess.ChallengesMet, text)
	return nil
}

// End transitions Active -> Ended, freezes the session, and hands it to the
// coordinator for the atomic session+rollup commit. If the commit fails the
// recorder stays Ended with the frozen record retrievable via Session(), and
// a later End call retries the commit of the record exactly as frozen (the
// end state arguments are ignored then). The session id makes that replay
// idempotent even when the earlier attempt committed but its result was
// lost. Once a commit succeeds, End returns domain.ErrSessionAlreadyEnded.
func (r *Recorder) End(ctx context.Context, endBrainState, energyLevel string) (*domain.LearningSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateActive:
		now := r.now().UTC()
		if now.Before(r.sess.StartedAt) {
			return nil, domain.NewValidationError("session.ended_at", "end time precedes start time")
		}
		r.sess.EndedAt = now
		r.sess.DurationMinutes = int(math.Round(now.Sub(r.sess.StartedAt).Minutes()))
		r.sess.Mood.EndState = endBrainState
		r.sess.Mood.EnergyLevel = energyLevel
		r.state = StateEnded
	case StateEnded:
		if r.persisted {
			return nil, domain.ErrSessionAlreadyEnded
		}
	default:
		return nil, domain.ErrSessionNotActive
	}

	frozen := r.sess
	if err := r.committer.Persist(ctx, frozen); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", frozen.ID, err)
	}
	r.persisted = true
	return frozen, nil
}

// Session returns the frozen record after End, or nil before it.
func (r *Recorder) Session() *domain.LearningSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateEnded {
		return nil
	}
	return r.sess
}

func (r *Recorder) requireActive() error {
	switch r.state {
	case StateActive:
		return nil
	case StateEnded:
		return domain.ErrSessionAlreadyEnded
	default:
		return domain.ErrSessionNotActive
	}
}
