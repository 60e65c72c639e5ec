package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
)

// Run lifecycle states.
const (
	RunStateRunning   = "RUNNING"
	RunStateCompleted = "COMPLETED"
	RunStateFailed    = "FAILED"
	RunStateCancelled = "CANCELLED"
)

// Errors returned by the run manager.
var (
	ErrRunNotFound    = errors.New("onboarding: run not found")
	ErrRunNotFinished = errors.New("onboarding: run not finished")
)

// Run is one tracked onboarding run. All fields except Stream and Token are
// guarded by the manager lock; callers only ever see RunView copies.
type Run struct {
	ID         string
	State      string
	Stream     *onboarding.Stream
	Token      *onboarding.CancelToken
	Outcome    *Outcome
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunView is an immutable copy of a run taken under the manager lock. Stream
// and Token are shared but internally synchronized.
type RunView struct {
	ID         string
	State      string
	Stream     *onboarding.Stream
	Token      *onboarding.CancelToken
	Outcome    *Outcome
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// view copies the run. Must be called with the manager lock held. The rule
// slice is copied because ToggleRule replaces it in place; the outcome's
// other slices are write-once before the outcome is published.
func (r *Run) view() RunView {
	v := RunView{
		ID:         r.ID,
		State:      r.State,
		Stream:     r.Stream,
		Token:      r.Token,
		Err:        r.Err,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Outcome != nil {
		outcome := *r.Outcome
		outcome.Rules = append([]rules.GeneratedRule(nil), r.Outcome.Rules...)
		v.Outcome = &outcome
	}
	return v
}

// Manager starts onboarding runs, tracks them by id and retains finished
// runs for a grace window so clients can fetch results and commit rules.
type Manager struct {
	orchestrator *Orchestrator
	ruleStore    RuleStore
	logger       *zap.Logger
	clock        Clock
	retention    time.Duration

	mu   sync.RWMutex
	runs map[string]*Run

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// ManagerOption configures the run manager.
type ManagerOption func(*Manager)

// WithRunRetention sets how long finished runs stay fetchable.
func WithRunRetention(retention time.Duration) ManagerOption {
	return func(m *Manager) {
		if retention > 0 {
			m.retention = retention
		}
	}
}

// WithManagerLogger attaches a logger.
func WithManagerLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClock overrides the clock.
func WithManagerClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager constructs a run manager. ruleStore may be nil when rule commit
// is disabled.
func NewManager(orchestrator *Orchestrator, ruleStore RuleStore, opts ...ManagerOption) (*Manager, error) {
	if orchestrator == nil {
		return nil, errors.New("onboarding: nil orchestrator")
	}
	m := &Manager{
		orchestrator: orchestrator,
		ruleStore:    ruleStore,
		logger:       zap.NewNop(),
		clock:        systemClock{},
		retention:    30 * time.Minute,
		runs:         make(map[string]*Run),
		stopSweep:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m, nil
}

// Start launches a run in the background and returns its initial view
// immediately. The view's Stream delivers progress; Get resolves the outcome.
func (m *Manager) Start(ctx context.Context, draft onboarding.DeviceDraft, asset onboarding.DocumentationAsset) (RunView, error) {
	if m == nil {
		return RunView{}, errors.New("onboarding: nil manager")
	}
	run := &Run{
		ID:        uuid.NewString(),
		State:     RunStateRunning,
		Stream:    onboarding.NewStream(),
		Token:     onboarding.NewCancelToken(),
		StartedAt: m.clock.Now(),
	}
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	// Copy before the goroutine can touch the run.
	view := run.view()

	go func() {
		// Detach from the request context: the run outlives the HTTP call.
		runCtx := context.WithoutCancel(ctx)
		outcome, err := m.orchestrator.Run(runCtx, RunParams{
			RunID: run.ID,
			Draft: draft,
			Asset: asset,
			Sink:  run.Stream,
			Token: run.Token,
		})
		m.mu.Lock()
		run.Outcome = outcome
		run.Err = err
		run.FinishedAt = m.clock.Now()
		switch {
		case err != nil:
			run.State = RunStateFailed
		case outcome.Result.Cancelled:
			run.State = RunStateCancelled
		default:
			run.State = RunStateCompleted
		}
		m.mu.Unlock()
		run.Stream.Close()
		if err != nil {
			m.logger.Warn("onboarding_run_failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	return view, nil
}

// Get returns a copy of the run by id, consistent at the time of the call.
func (m *Manager) Get(runID string) (RunView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return RunView{}, ErrRunNotFound
	}
	return run.view(), nil
}

// Cancel requests cooperative cancellation. Idempotent; cancelling a
// finished run is a no-op.
func (m *Manager) Cancel(runID string) error {
	m.mu.RLock()
	run, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return ErrRunNotFound
	}
	run.Token.Cancel()
	return nil
}

// ToggleRule flips the selection flag of one generated rule on a finished
// run and returns the updated set.
func (m *Manager) ToggleRule(runID, ruleID string) ([]rules.GeneratedRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	if run.State == RunStateRunning || run.Outcome == nil {
		return nil, ErrRunNotFinished
	}
	run.Outcome.Rules = rules.ToggleSelection(run.Outcome.Rules, ruleID)
	out := make([]rules.GeneratedRule, len(run.Outcome.Rules))
	copy(out, run.Outcome.Rules)
	return out, nil
}

// CommitRules validates and persists the selected rules of a finished run.
// Validation failures are returned per rule id; nothing is persisted unless
// every selected rule validates.
func (m *Manager) CommitRules(ctx context.Context, runID string) ([]rules.Rule, map[string]rules.ValidationErrors, error) {
	m.mu.Lock()
	run, ok := m.runs[runID]
	if !ok {
		m.mu.Unlock()
		return nil, nil, ErrRunNotFound
	}
	if run.State == RunStateRunning || run.Outcome == nil {
		m.mu.Unlock()
		return nil, nil, ErrRunNotFinished
	}
	selected := rules.CommitSelected(run.Outcome.Rules)
	m.mu.Unlock()

	invalid := make(map[string]rules.ValidationErrors)
	committed := make([]rules.Rule, 0, len(selected))
	for _, g := range selected {
		r := g.ToRule()
		if errs := rules.Validate(r); !errs.Valid() {
			invalid[g.ID] = errs
			continue
		}
		committed = append(committed, r)
	}
	if len(invalid) > 0 {
		return nil, invalid, nil
	}
	if m.ruleStore != nil && len(committed) > 0 {
		if err := m.ruleStore.SaveAll(ctx, committed); err != nil {
			return nil, nil, err
		}
	}
	return committed, nil, nil
}

// Close stops the retention sweeper.
func (m *Manager) Close() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := m.clock.Now().Add(-m.retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, run := range m.runs {
		if run.State != RunStateRunning && !run.FinishedAt.IsZero() && run.FinishedAt.Before(cutoff) {
			delete(m.runs, id)
		}
	}
}
