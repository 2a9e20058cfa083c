package discord

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackbot/internal/chat"
	logx "hackbot/pkg/logx"
	"hackbot/pkg/snowflake"
)

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "boom"},
	}
}

func TestMapErr(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"http 404", restErr(http.StatusNotFound, 0), true},
		{"unknown channel", restErr(http.StatusBadRequest, discordgo.ErrCodeUnknownChannel), true},
		{"unknown message", restErr(http.StatusBadRequest, discordgo.ErrCodeUnknownMessage), true},
		{"unknown member", restErr(http.StatusBadRequest, discordgo.ErrCodeUnknownMember), true},
		{"wrapped 404", fmt.Errorf("outer: %w", restErr(http.StatusNotFound, 0)), true},
		{"forbidden", restErr(http.StatusForbidden, 50013), false},
		{"plain", errors.New("dial tcp: timeout"), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := mapErr("op", tc.err)
			require.Error(t, err)
			assert.Equal(t, tc.notFound, errors.Is(err, chat.ErrNotFound))
			assert.True(t, strings.HasPrefix(err.Error(), "op: "))
		})
	}
	assert.NoError(t, mapErr("op", nil))
}

func TestCanSend(t *testing.T) {
	t.Parallel()

	assert.True(t, canSend(discordgo.PermissionViewChannel|discordgo.PermissionSendMessages))
	assert.True(t, canSend(discordgo.PermissionAdministrator))
	assert.False(t, canSend(discordgo.PermissionViewChannel))
	assert.False(t, canSend(discordgo.PermissionSendMessages))
	assert.False(t, canSend(0))
}

func TestToChannelKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, chat.KindGuildText, toChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildText}).Kind)
	assert.Equal(t, chat.KindThread, toChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildPublicThread}).Kind)
	assert.Equal(t, chat.KindOther, toChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildVoice}).Kind)
}

func TestThreadsOfFiltersParentAndDecodesTime(t *testing.T) {
	t.Parallel()

	id := "175928847299117063"
	chans := []*discordgo.Channel{
		{ID: id, ParentID: "p1", Name: "mine", ThreadMetadata: &discordgo.ThreadMetadata{Locked: true}},
		{ID: "2", ParentID: "p2", Name: "other"},
		nil,
	}
	threads := threadsOf(chans, "p1")
	require.Len(t, threads, 1)
	assert.Equal(t, "mine", threads[0].Name)
	assert.True(t, threads[0].Locked)

	want, err := snowflake.Timestamp(id)
	require.NoError(t, err)
	assert.True(t, want.Equal(threads[0].CreatedAt))

	assert.NotNil(t, threadsOf(nil, "p1"))
}

func TestToMessage(t *testing.T) {
	t.Parallel()

	m := toMessage(&discordgo.Message{
		ID: "m", ChannelID: "c", Author: &discordgo.User{ID: "u"}, Pinned: true,
		Attachments: []*discordgo.MessageAttachment{{ID: "a1", URL: "https://x/1.png", Filename: "1.png"}, nil},
	})
	assert.Equal(t, "u", m.AuthorID)
	assert.True(t, m.Pinned)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "https://x/1.png", m.Attachments[0].URL)

	assert.Equal(t, chat.Message{}, toMessage(nil))
	assert.Empty(t, toMessage(&discordgo.Message{ID: "n"}).AuthorID)
}

func TestWithRole(t *testing.T) {
	t.Parallel()

	members := []*discordgo.Member{
		{User: &discordgo.User{ID: "a"}, Roles: []string{"r1", "award"}},
		{User: &discordgo.User{ID: "b"}, Roles: []string{"r1"}},
		{Roles: []string{"award"}},
		nil,
	}
	got := withRole(members, "award")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].UserID)
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"short"}, splitText("short", 10))
	assert.Equal(t, []string{""}, splitText("", 10))

	long := strings.Repeat("line\n", 10)
	chunks := splitText(long, 12)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 12)
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, strings.Count(long, "line"), strings.Count(strings.Join(chunks, "\n"), "line"))
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Token: "  "}, logx.Nop())
	require.Error(t, err)

	a, err := New(Config{Token: "abc"}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "Bot abc", a.Session().Token)
	assert.Equal(t, defaultIntents, a.Session().Identify.Intents)
}
