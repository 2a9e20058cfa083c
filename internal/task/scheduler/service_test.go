package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackbot/internal/task/engine"
	logx "hackbot/pkg/logx"
)

func newTestScheduler(t *testing.T) (*Service, *engine.Service) {
	t.Helper()
	eng := engine.New(engine.Config{Enabled: true}, logx.Nop(), nil)
	eng.Start(context.Background())
	s := New(Config{Enabled: true, Timezone: "UTC"}, eng, logx.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
		eng.Stop(ctx)
	})
	return s, eng
}

func TestAddScheduleAndTrigger(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	ran := make(chan struct{}, 1)
	_, err := s.AddSchedule("roundup", "weekly:sun@18:00", 0, func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	s.Start(context.Background())
	next := s.Next("roundup")
	require.False(t, next.IsZero())
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.Equal(t, 18, next.Hour())

	require.NoError(t, s.Trigger("roundup"))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered job did not run")
	}

	require.ErrorIs(t, s.Trigger("missing"), ErrUnknownSchedule)
}

func TestTriggerSkipsOverlap(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	release := make(chan struct{})
	started := make(chan struct{})
	_, err := s.AddCron("slow", "0 18 * * 0", 0, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	s.Start(context.Background())

	require.NoError(t, s.Trigger("slow"))
	<-started
	require.ErrorIs(t, s.Trigger("slow"), engine.ErrOverlapSkip)

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.True(t, snap.Schedules[0].Running)
	close(release)
}

func TestAddReplacesByName(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	noop := func(context.Context) error { return nil }
	_, err := s.AddCron("job", "0 18 * * 0", 0, noop)
	require.NoError(t, err)
	_, err = s.AddWeekly("job", time.Monday, "09:00", 0, noop)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "0 9 * * 1", snap.Schedules[0].Spec)

	assert.True(t, s.Remove("job"))
	assert.False(t, s.Remove("job"))
}

func TestAddRejectsBadInput(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	noop := func(context.Context) error { return nil }
	_, err := s.AddCron("", "0 18 * * 0", 0, noop)
	require.Error(t, err)
	_, err = s.AddCron("x", "bogus", 0, noop)
	require.Error(t, err)
	_, err = s.AddSchedule("x", "weekly:sun@99:00", 0, noop)
	require.Error(t, err)
	_, err = s.AddCron("x", "0 18 * * 0", 0, nil)
	require.Error(t, err)
}

func TestApplyTimezoneKeepsSchedules(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	_, err := s.AddCron("job", "0 18 * * 0", 0, func(context.Context) error { return nil })
	require.NoError(t, err)
	s.Start(context.Background())
	utcNext := s.Next("job")

	s.Apply(Config{Enabled: true, Timezone: "America/Chicago"})
	snap := s.Snapshot()
	assert.Equal(t, "America/Chicago", snap.Timezone)
	chiNext := s.Next("job")
	require.False(t, chiNext.IsZero())
	assert.Equal(t, 18, chiNext.Hour())
	assert.False(t, utcNext.Equal(chiNext))

	s.Apply(Config{Enabled: false, Timezone: "America/Chicago"})
	assert.False(t, s.Snapshot().Started)
	assert.True(t, s.Next("job").IsZero())
}

func TestReportEnqueueErrorThrottles(t *testing.T) {
	t.Parallel()

	s := New(Config{}, nil, logx.Nop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.reportEnqueueError("job", errors.New("queue full"))
	first := s.lastEnqWarn["job"]
	now = now.Add(time.Second)
	s.reportEnqueueError("job", errors.New("queue full"))
	assert.Equal(t, first, s.lastEnqWarn["job"], "second warning inside the window is suppressed")
	now = now.Add(enqueueWarnThrottle)
	s.reportEnqueueError("job", errors.New("queue full"))
	assert.Equal(t, now, s.lastEnqWarn["job"])
}

func TestReplaceKeepsRunState(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	release := make(chan struct{})
	started := make(chan struct{})
	job := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	_, err := s.AddCron("job", "0 18 * * 0", 0, job)
	require.NoError(t, err)
	s.Start(context.Background())
	require.NoError(t, s.Trigger("job"))
	<-started

	_, err = s.AddCron("job", "0 19 * * 0", 0, job)
	require.NoError(t, err)
	require.ErrorIs(t, s.Trigger("job"), engine.ErrOverlapSkip)
	close(release)
}
