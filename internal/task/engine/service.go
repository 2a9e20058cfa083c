package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hackbot/internal/eventbus"
	rtsup "hackbot/internal/runtime/supervisor"
	logx "hackbot/pkg/logx"
)

// Service executes tasks one at a time from a bounded queue.
type Service struct {
	mu     sync.Mutex
	cfg    Config
	log    logx.Logger
	bus    eventbus.Bus
	parent context.Context

	q   chan queuedTask
	sup *rtsup.Supervisor

	stateMu sync.Mutex
	states  map[string]*RunState

	inFlight atomic.Bool

	hmu     sync.Mutex
	history []HistoryItem

	idSeq   uint64
	skipped uint64
	dropped uint64
}

type queuedTask struct {
	task       Task
	enqueuedAt time.Time
	timeout    time.Duration
	state      *RunState
	done       chan error // nil for fire-and-forget
}

func (qt queuedTask) finish(err error) {
	if qt.state != nil {
		qt.state.release()
	}
	if qt.done != nil {
		qt.done <- err
	}
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		log:    log,
		bus:    bus,
		states: make(map[string]*RunState),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) running() bool { return s.q != nil }

// Start launches the worker. It is a no-op when disabled or already running.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parent = ctx
	if !s.cfg.Enabled || s.running() {
		return
	}

	q := make(chan queuedTask, s.cfg.QueueSize)
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log))
	sup.GoRestart("worker", func(c context.Context) error {
		s.worker(c, q)
		if c.Err() != nil {
			return c.Err()
		}
		return errors.New("worker exited unexpectedly")
	}, 250*time.Millisecond, 10*time.Second)

	s.q, s.sup = q, sup
	s.log.Info("task engine started", logx.Int("queue", s.cfg.QueueSize), logx.Duration("default_timeout", s.cfg.DefaultTimeout))
}

// Stop cancels the worker, waits for it (bounded by ctx) and fails every task
// still queued with ErrStopped.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	q, sup := s.q, s.sup
	s.q, s.sup = nil, nil
	s.mu.Unlock()
	if sup == nil {
		return
	}

	sup.Cancel()
	if err := sup.Wait(ctx); errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("task engine stop timed out", logx.Err(err))
	}
	for {
		select {
		case qt := <-q:
			qt.finish(ErrStopped)
		default:
			s.log.Info("task engine stopped")
			return
		}
	}
}

// Apply swaps the config, restarting the worker when the queue size or the
// enabled flag changed.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.running()
	parent := s.parent
	s.mu.Unlock()

	if parent == nil {
		return
	}
	switch {
	case running && !cfg.Enabled:
		s.Stop(ctx)
	case running && prev.QueueSize != cfg.QueueSize:
		s.Stop(ctx)
		s.Start(parent)
	case !running && cfg.Enabled:
		s.Start(parent)
	}
}

// Enqueue queues t without blocking.
func (s *Service) Enqueue(t Task) error {
	_, err := s.enqueue(t, false)
	return err
}

// Do queues t and waits for its result or ctx.
func (s *Service) Do(ctx context.Context, t Task) error {
	done, err := s.enqueue(t, true)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) enqueue(t Task, wait bool) (<-chan error, error) {
	if t.Run == nil {
		return nil, errors.New("task Run is nil")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, errors.New("task Name is required")
	}
	now := time.Now()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = fmt.Sprintf("tsk-%x-%x", now.UnixNano(), atomic.AddUint64(&s.idSeq, 1))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	if !s.running() {
		return nil, ErrStopped
	}

	var st *RunState
	if !t.AllowOverlap {
		st = t.State
		if st == nil {
			st = s.stateFor(t.Name)
		}
		if !st.tryAcquire() {
			atomic.AddUint64(&s.skipped, 1)
			s.publish(eventbus.TaskSkipped, TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "overlap_skip"})
			s.log.Warn("task skipped: previous run still in flight", logx.String("task", t.Name), logx.String("id", t.ID))
			return nil, ErrOverlapSkip
		}
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	qt := queuedTask{task: t, enqueuedAt: now, timeout: timeout, state: st}
	if wait {
		qt.done = make(chan error, 1)
	}

	select {
	case s.q <- qt:
		return qt.done, nil
	default:
		if st != nil {
			st.release()
		}
		atomic.AddUint64(&s.dropped, 1)
		s.publish(eventbus.TaskSkipped, TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "queue_full"})
		s.log.Warn("task dropped: queue full", logx.String("task", t.Name), logx.Int("queue_cap", cap(s.q)))
		return nil, ErrQueueFull
	}
}

func (s *Service) stateFor(name string) *RunState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st := s.states[name]
	if st == nil {
		st = &RunState{}
		s.states[name] = st
	}
	return st
}

func (s *Service) publish(typ string, ev TaskEvent) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
	}
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
	s.hmu.Unlock()
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	snap := Snapshot{Enabled: cfg.Enabled, Running: s.running(), DefaultTimeout: cfg.DefaultTimeout}
	if s.q != nil {
		snap.QueueLen, snap.QueueCap = len(s.q), cap(s.q)
	}
	s.mu.Unlock()

	snap.InFlight = s.inFlight.Load()
	snap.Skipped = atomic.LoadUint64(&s.skipped)
	snap.Dropped = atomic.LoadUint64(&s.dropped)

	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}
