package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const defaultShutdownGrace = 30 * time.Second

// CycleRunner performs one model's cycle (prompt build → LLM call →
// decision apply → persist); the Scheduler only owns the state machine
// and the at-most-one-concurrent-cycle lock around it. report is
// called as the cycle advances through CycleState for observability.
type CycleRunner interface {
	RunCycle(ctx context.Context, modelID string, scope ExecuteScope, report func(CycleState)) error
}

type modelEntry struct {
	cycleLock sync.Mutex // held for the whole cycle; TryLock enforces Busy

	statusMu  sync.RWMutex
	enabled   bool
	running   bool
	state     CycleState
	lastRunAt time.Time
}

// Scheduler is the Per-Model Scheduler (C9): a driver goroutine wakes
// on frequency and enqueues a cycle for every enabled, non-running,
// due model; manual Execute calls enqueue directly and return Busy on
// contention rather than queuing.
type Scheduler struct {
	runner    CycleRunner
	frequency time.Duration
	grace     time.Duration

	mu     sync.RWMutex
	models map[string]*modelEntry

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithShutdownGrace overrides the default 30s shutdown grace period.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Scheduler) { s.grace = d }
}

// New constructs a Scheduler that drives runner on the given trading
// frequency (settings.tradingFrequencyMinutes, converted to a Duration
// by the caller).
func New(runner CycleRunner, frequency time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		frequency: frequency,
		grace:     defaultShutdownGrace,
		models:    make(map[string]*modelEntry),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterModel adds or updates a model's scheduling eligibility. A
// model must be registered before the driver will ever enqueue it.
func (s *Scheduler) RegisterModel(modelID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.models[modelID]
	if !ok {
		entry = &modelEntry{state: StateIdle}
		s.models[modelID] = entry
	}
	entry.statusMu.Lock()
	entry.enabled = enabled
	entry.statusMu.Unlock()
}

// SetEnabled toggles a model's eligibility. Disabling a model mid-cycle
// does not cancel the running cycle; it only prevents the next one
// from starting, per spec.
func (s *Scheduler) SetEnabled(modelID string, enabled bool) error {
	entry, err := s.entry(modelID)
	if err != nil {
		return err
	}
	entry.statusMu.Lock()
	entry.enabled = enabled
	entry.statusMu.Unlock()
	return nil
}

// Status returns the current scheduling state of one model.
func (s *Scheduler) Status(modelID string) (ModelStatus, error) {
	entry, err := s.entry(modelID)
	if err != nil {
		return ModelStatus{}, err
	}
	entry.statusMu.RLock()
	defer entry.statusMu.RUnlock()
	return ModelStatus{
		ModelID:   modelID,
		Enabled:   entry.enabled,
		Running:   entry.running,
		State:     entry.state,
		LastRunAt: entry.lastRunAt,
	}, nil
}

func (s *Scheduler) entry(modelID string) (*modelEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.models[modelID]
	if !ok {
		return nil, fmt.Errorf("scheduler: unknown model %q", modelID)
	}
	return entry, nil
}

func (s *Scheduler) registeredModelIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.models))
	for id := range s.models {
		ids = append(ids, id)
	}
	return ids
}

// Execute enqueues a cycle for modelID directly, bypassing the driver's
// frequency gate. busy=true means a cycle for this model was already
// running and nothing new was started.
func (s *Scheduler) Execute(ctx context.Context, modelID string, scope ExecuteScope) (busy bool, err error) {
	entry, err := s.entry(modelID)
	if err != nil {
		return false, err
	}
	return !s.tryRunCycle(ctx, modelID, entry, scope), nil
}

// Run starts the driver loop; it blocks until Stop is called or ctx is
// cancelled. Suspension point: the ticker wait itself.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	logx.Infof("scheduler: driver starting frequency=%s", s.frequency)

	for {
		select {
		case <-ctx.Done():
			logx.Infof("scheduler: driver stopping (context): %v", ctx.Err())
			return
		case <-s.stopChan:
			logx.Infof("scheduler: driver stopping (stop signal)")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	for _, modelID := range s.registeredModelIDs() {
		entry, err := s.entry(modelID)
		if err != nil {
			continue
		}
		entry.statusMu.RLock()
		due := entry.enabled && !entry.running && now.Sub(entry.lastRunAt) >= s.frequency
		entry.statusMu.RUnlock()
		if due {
			s.tryRunCycle(ctx, modelID, entry, ScopeFull)
		}
	}
}

// tryRunCycle attempts to start a cycle for modelID; it returns false
// (and starts nothing) if one is already running.
func (s *Scheduler) tryRunCycle(ctx context.Context, modelID string, entry *modelEntry, scope ExecuteScope) (started bool) {
	if !entry.cycleLock.TryLock() {
		return false
	}

	entry.statusMu.Lock()
	entry.running = true
	entry.state = StateIdle
	entry.statusMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer entry.cycleLock.Unlock()
		defer func() {
			entry.statusMu.Lock()
			entry.running = false
			entry.lastRunAt = time.Now()
			entry.statusMu.Unlock()
		}()

		report := func(st CycleState) {
			entry.statusMu.Lock()
			entry.state = st
			entry.statusMu.Unlock()
		}

		if err := s.runner.RunCycle(ctx, modelID, scope, report); err != nil {
			report(StateFailed)
			logx.Errorf("scheduler: model %s cycle failed scope=%s: %v", modelID, scope, err)
			return
		}
		report(StateDone)
	}()
	return true
}

// Stop signals the driver to stop enqueueing new cycles and waits up
// to the configured grace period for in-flight cycles to finish and
// commit. After grace elapses it returns without cancelling those
// cycles itself — the caller's ctx cancellation is what actually
// aborts in-flight outbound calls.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.grace):
		logx.Infof("scheduler: shutdown grace period (%s) elapsed with cycles still running", s.grace)
	}
}
