package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"hackbot/internal/task/engine"
	logx "hackbot/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

var ErrUnknownSchedule = errors.New("unknown schedule")

// AddSchedule parses schedule (see ParseSchedule) and registers job under name,
// replacing any schedule with the same name. Runs of one schedule never overlap:
// a firing while the previous run is queued or running is skipped.
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return "", err
	}
	return s.AddCron(name, ps.Spec(), timeout, job)
}

// AddWeekly registers job for weekday at HH:MM in the scheduler timezone.
func (s *Service) AddWeekly(name string, weekday time.Weekday, atHHMM string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return "", err
	}
	return s.AddCron(name, weeklyCron(weekday, h, m), timeout, job)
}

func (s *Service) AddCron(name, spec string, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name required")
	}
	if job == nil {
		return "", errors.New("job required")
	}
	if _, err := specParser.Parse(spec); err != nil {
		return "", fmt.Errorf("invalid spec %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a replaced schedule keeps its run state so an in-flight run still blocks overlap
	state := &engine.RunState{}
	if prev, ok := s.findLocked(name); ok {
		state = prev.state
	}
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{
		name:    name,
		spec:    spec,
		timeout: timeout,
		job:     job,
		state:   state,
	})
	if s.c == nil {
		// registered on Start
		return name, nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(d); err != nil {
		return name, err
	}
	s.log.Debug("schedule registered",
		logx.String("name", name),
		logx.String("spec", spec),
		logx.Time("next", s.c.Entry(d.entryID).Next),
	)
	return name, nil
}

// Remove unregisters name. It reports whether a schedule existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(strings.TrimSpace(name))
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// Trigger enqueues name immediately, outside its schedule. The overlap guard
// still applies.
func (s *Service) Trigger(name string) error {
	s.mu.Lock()
	d, ok := s.findLocked(name)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, name)
	}
	return s.enqueue(d)
}

// Next returns the next firing time of name, or zero when unknown or stopped.
func (s *Service) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.findLocked(name)
	if !ok || s.c == nil || d.entryID == 0 {
		return time.Time{}
	}
	return s.c.Entry(d.entryID).Next
}

func (s *Service) findLocked(name string) (scheduleDef, bool) {
	for _, d := range s.defs {
		if d.name == name {
			return d, true
		}
	}
	return scheduleDef{}, false
}

func (s *Service) removeLocked(name string) bool {
	n := 0
	removed := false
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	def := *d
	eid, err := s.c.AddJob(d.spec, cron.FuncJob(func() {
		if err := s.enqueue(def); err != nil {
			s.reportEnqueueError(def.name, err)
		}
	}))
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

func (s *Service) enqueue(d scheduleDef) error {
	if s.engine == nil {
		return engine.ErrStopped
	}
	return s.engine.Enqueue(engine.Task{
		Name:    d.name,
		Timeout: d.timeout,
		Run:     d.job,
		State:   d.state,
	})
}

// reportEnqueueError logs a failed firing, at most once per throttle window per
// schedule. Overlap skips are already logged by the engine.
func (s *Service) reportEnqueueError(name string, err error) {
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("schedule firing skipped", logx.String("schedule", name))
		return
	}
	now := s.now()
	s.enqMu.Lock()
	last := s.lastEnqWarn[name]
	throttled := !last.IsZero() && now.Sub(last) < enqueueWarnThrottle
	if !throttled {
		s.lastEnqWarn[name] = now
	}
	s.enqMu.Unlock()
	if !throttled {
		s.log.Warn("schedule failed to enqueue task", logx.String("schedule", name), logx.Err(err))
	}
}
