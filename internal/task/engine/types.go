package engine

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultQueueSize   = 8
	DefaultHistorySize = 50
)

// Config controls the task engine. The app maps config.task_engine into it.
type Config struct {
	Enabled   bool
	QueueSize int

	// DefaultTimeout is used when Task.Timeout is 0. Zero means no deadline.
	DefaultTimeout time.Duration

	HistorySize int
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

// RunState gates overlapping executions of one task. A task counts as in
// flight from the moment it is queued until its run returns.
type RunState struct {
	mu       sync.Mutex
	inflight bool
}

func (s *RunState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *RunState) release() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

// Running reports whether the task is queued or executing.
func (s *RunState) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Task is a unit of work executed by the engine.
type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error

	// AllowOverlap disables the skip-if-running guard.
	AllowOverlap bool
	// State overrides the per-name overlap state.
	State *RunState
}

type HistoryItem struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// TaskEvent is the payload of task.* bus events.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

type Snapshot struct {
	Enabled        bool
	Running        bool
	QueueLen       int
	QueueCap       int
	InFlight       bool
	DefaultTimeout time.Duration

	Skipped uint64
	Dropped uint64

	History []HistoryItem
}
