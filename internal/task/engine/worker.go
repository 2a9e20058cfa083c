package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"hackbot/internal/eventbus"
	logx "hackbot/pkg/logx"
)

// slowTask is the duration above which completions are logged at info.
const slowTask = 750 * time.Millisecond

func (s *Service) worker(ctx context.Context, queue chan queuedTask) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case qt := <-queue:
			if ctx.Err() != nil {
				qt.finish(ErrStopped)
				return
			}
			s.inFlight.Store(true)
			qt.finish(s.execOne(ctx, qt))
			s.inFlight.Store(false)
		}
	}
}

func (s *Service) execOne(ctx context.Context, qt queuedTask) (err error) {
	start := time.Now()
	queueDelay := start.Sub(qt.enqueuedAt)
	if queueDelay < 0 {
		queueDelay = 0
	}
	t := qt.task
	log := s.log.With(logx.String("task", t.Name), logx.String("id", t.ID))

	log.Debug("task started", logx.Duration("queue_delay", queueDelay))
	s.publish(eventbus.TaskStarted, TaskEvent{ID: t.ID, Name: t.Name, Started: start, QueueDelay: queueDelay})

	runCtx := ctx
	if qt.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, qt.timeout)
		defer cancel()
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				log.Error("task panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		err = t.Run(runCtx)
	}()

	dur := time.Since(start)
	item := HistoryItem{ID: t.ID, Name: t.Name, Started: start, QueueDelay: queueDelay, Duration: dur}
	ev := TaskEvent{ID: t.ID, Name: t.Name, Started: start, QueueDelay: queueDelay, Duration: dur}
	switch {
	case err != nil:
		item.Error, ev.Error = err.Error(), err.Error()
		log.Warn("task failed", logx.Err(err), logx.Duration("dur", dur))
		s.publish(eventbus.TaskFailed, ev)
	case dur >= slowTask:
		log.Info("task completed", logx.Duration("dur", dur))
		s.publish(eventbus.TaskFinished, ev)
	default:
		log.Debug("task completed", logx.Duration("dur", dur))
		s.publish(eventbus.TaskFinished, ev)
	}
	s.record(item)
	return err
}
