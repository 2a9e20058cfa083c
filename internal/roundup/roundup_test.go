package roundup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackbot/internal/chat"
	"hackbot/internal/eventbus"
	logx "hackbot/pkg/logx"
	"hackbot/pkg/snowflake"
)

var fixedNow = time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ChannelID = "chan-1"
	cfg.AwardRoleID = "role-award"
	return cfg
}

func newTestService(p chat.Platform, cfg Config, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(cfg, p, logx.Nop(), opts...)
}

// happyPlatform has one photo thread with X posting two images and Y one,
// while Z holds the award from last week.
func happyPlatform() *fakePlatform {
	p := newFakePlatform()
	p.threads = []chat.Thread{
		{ID: "old", ParentID: "chan-1", Name: DefaultThreadPrefix + "Feb 28", CreatedAt: fixedNow.Add(-8 * 24 * time.Hour)},
		{ID: "thread-1", ParentID: "chan-1", Name: DefaultThreadPrefix + "Mar 7", CreatedAt: fixedNow.Add(-24 * time.Hour)},
	}
	p.messages = []chat.Message{msg("m1", "X", 2), msg("m2", "Y", 1), msg("m3", "Y", 0)}
	p.starter = chat.Message{ID: "thread-1", ChannelID: "chan-1", Pinned: true}
	p.addMember("X")
	p.addMember("Y")
	p.addMember("Z", "role-award")
	return p
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	p := happyPlatform()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	rep, err := newTestService(p, testConfig(), WithBus(bus)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, rep.Outcome)
	assert.Equal(t, "thread-1", rep.ThreadID)
	assert.Equal(t, 3, rep.Attachments)
	assert.Len(t, rep.ImageURLs, 3)
	assert.True(t, rep.Announced)
	assert.NotEmpty(t, rep.RunID)

	require.Len(t, p.sent, 4)
	assert.Equal(t, "thread-1", p.sent[0].ReplyTo)
	assert.Contains(t, p.sent[0].Content, "3 pictures")
	assert.Equal(t, "chan-1", p.sent[1].ChannelID)
	assert.Less(t, strings.Index(p.sent[1].Content, "<@X>"), strings.Index(p.sent[1].Content, "<@Y>"))
	assert.Contains(t, p.sent[1].Content, "#1: <@X> - 2")
	assert.Contains(t, p.sent[2].Content, "Congratulations to <@X>")
	assert.Contains(t, p.sent[2].Content, DefaultAwardName)
	assert.Equal(t, signOffText, p.sent[3].Content)

	assert.Equal(t, []string{"Reply", "Send", "Unpin", "SetThreadLocked", "SetThreadArchived", "RemoveRole", "AddRole", "Send", "Send"}, p.mutations())
	assert.Equal(t, []string{"X"}, p.holders("role-award"))
	assert.Equal(t, Rotation{Removed: []string{"Z"}, Added: "X"}, rep.Rotation)

	w, ok := rep.Winner.Get()
	require.True(t, ok)
	assert.Equal(t, "X", w.UserID)

	select {
	case ev := <-events:
		assert.Equal(t, eventbus.RoundupCompleted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestRunUsesWindowCursor(t *testing.T) {
	t.Parallel()

	p := happyPlatform()
	cfg := testConfig()
	rep, err := newTestService(p, cfg).Run(context.Background())
	require.NoError(t, err)

	want := snowflake.Cursor(fixedNow.Add(-DefaultWindow))
	assert.Equal(t, want, p.lastCur)
	assert.Equal(t, want, rep.Cursor)
}

func TestRunSkips(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(p *fakePlatform)
		reason Reason
	}{
		{"channel missing", func(p *fakePlatform) { p.channelErr = chat.ErrNotFound }, ReasonChannelNotFound},
		{"not sendable", func(p *fakePlatform) { p.channel.Sendable = false }, ReasonChannelNotSendable},
		{"wrong kind", func(p *fakePlatform) { p.channel.Kind = chat.KindOther }, ReasonChannelNotText},
		{"threads unavailable", func(p *fakePlatform) { p.threads = nil }, ReasonThreadsUnavailable},
		{"no matching thread", func(p *fakePlatform) {
			p.threads = []chat.Thread{{ID: "t", Name: "Random", CreatedAt: fixedNow}}
		}, ReasonThreadNotFound},
		{"messages unavailable", func(p *fakePlatform) { p.messageErr = chat.ErrNotFound }, ReasonMessagesUnavailable},
		{"no attachments", func(p *fakePlatform) {
			p.messages = []chat.Message{msg("m1", "X", 0)}
		}, ReasonNoAttachments},
		{"starter missing", func(p *fakePlatform) { p.starterErr = chat.ErrNotFound }, ReasonStarterUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := happyPlatform()
			tc.mutate(p)
			rep, err := newTestService(p, testConfig()).Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeSkipped, rep.Outcome)
			assert.Equal(t, tc.reason, rep.Reason)
			assert.Empty(t, p.mutations(), "a skipped run must not touch the server")
			assert.Equal(t, []string{"Z"}, p.holders("role-award"))
		})
	}
}

func TestRunAnnouncementsDisabled(t *testing.T) {
	t.Parallel()

	p := happyPlatform()
	cfg := testConfig()
	cfg.AnnounceLeaderboard = false
	rep, err := newTestService(p, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, rep.Announced)
	assert.Equal(t, []string{"Unpin", "SetThreadLocked", "SetThreadArchived", "RemoveRole", "AddRole", "Send", "Send"}, p.mutations())
	require.Len(t, p.sent, 2)
	assert.Contains(t, p.sent[0].Content, "Congratulations")
	assert.Equal(t, signOffText, p.sent[1].Content)
}

func TestRunPlatformErrorFails(t *testing.T) {
	t.Parallel()

	p := happyPlatform()
	p.failOn["SetThreadLocked"] = errors.New("503")
	rep, err := newTestService(p, testConfig()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "lock thread")
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.NotContains(t, p.mutations(), "SetThreadArchived")
}

func TestRunPartialRotation(t *testing.T) {
	t.Parallel()

	p := happyPlatform()
	p.addMember("W", "role-award")
	p.failOn["RemoveRole:Z"] = errors.New("missing permissions")

	rep, err := newTestService(p, testConfig()).Run(context.Background())
	require.Error(t, err)

	var rerr *RotationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "remove role", rerr.Step)
	assert.Equal(t, "Z", rerr.UserID)
	assert.True(t, rerr.Partial())
	assert.Equal(t, []string{"W"}, rerr.Done.Removed)
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.NotContains(t, p.mutations(), "AddRole")
}

func TestSetAwardHolderIdempotent(t *testing.T) {
	t.Parallel()

	p := newFakePlatform()
	p.addMember("X", "role-award")
	p.addMember("Y", "role-award")

	rot, err := setAwardHolder(context.Background(), p, logx.Nop(), "guild-1", "role-award", "X")
	require.NoError(t, err)
	assert.True(t, rot.Kept)
	assert.Equal(t, []string{"Y"}, rot.Removed)
	assert.Empty(t, rot.Added)

	before := len(p.mutations())
	rot, err = setAwardHolder(context.Background(), p, logx.Nop(), "guild-1", "role-award", "X")
	require.NoError(t, err)
	assert.Equal(t, Rotation{Kept: true}, rot)
	assert.Len(t, p.mutations(), before, "second call makes no changes")
	assert.Equal(t, []string{"X"}, p.holders("role-award"))
}

func TestSetAwardHolderWinnerGone(t *testing.T) {
	t.Parallel()

	p := newFakePlatform()
	p.addMember("Z", "role-award")

	rot, err := setAwardHolder(context.Background(), p, logx.Nop(), "guild-1", "role-award", "ghost")
	require.NoError(t, err)
	assert.True(t, rot.WinnerGone)
	assert.Equal(t, []string{"Z"}, rot.Removed)
	assert.Empty(t, p.holders("role-award"))
}

func TestApplySwapsConfig(t *testing.T) {
	t.Parallel()

	s := newTestService(newFakePlatform(), testConfig())
	cfg := testConfig()
	cfg.ThreadPrefix = ""
	cfg.LeaderboardSize = 3
	s.Apply(cfg)

	got := s.Config()
	assert.Equal(t, DefaultThreadPrefix, got.ThreadPrefix)
	assert.Equal(t, 3, got.LeaderboardSize)
}
