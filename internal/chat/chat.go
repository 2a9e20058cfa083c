// Package chat defines the platform-neutral view of a community chat server
// that hackbot's jobs operate on, and the capabilities they need from it.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (possibly wrapped) when a requested resource does not exist
// or is not visible to the bot.
var ErrNotFound = errors.New("chat: not found")

type ChannelKind int

const (
	KindOther ChannelKind = iota
	KindGuildText
	KindThread
)

func (k ChannelKind) String() string {
	switch k {
	case KindGuildText:
		return "guild_text"
	case KindThread:
		return "thread"
	default:
		return "other"
	}
}

type Channel struct {
	ID      string
	GuildID string
	Name    string
	Kind    ChannelKind
	// Sendable reports whether the bot may post messages here.
	Sendable bool
}

type Thread struct {
	ID       string
	ParentID string
	GuildID  string
	Name     string
	// CreatedAt is zero when the platform does not expose it.
	CreatedAt time.Time
	Locked    bool
	Archived  bool
}

type Attachment struct {
	ID          string
	URL         string
	Filename    string
	ContentType string
}

type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	AuthorID    string
	Content     string
	Attachments []Attachment
	Pinned      bool
}

type Member struct {
	UserID  string
	RoleIDs []string
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, r := range m.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

// Platform is the set of chat-server capabilities the roundup consumes.
//
// Lookups that find nothing return an error wrapping ErrNotFound; every other
// error is a transport or permission failure.
type Platform interface {
	Channel(ctx context.Context, channelID string) (Channel, error)
	ActiveThreads(ctx context.Context, channel Channel) ([]Thread, error)
	MessagesAfter(ctx context.Context, channelID, afterID string, limit int) ([]Message, error)
	StarterMessage(ctx context.Context, thread Thread) (Message, error)

	Reply(ctx context.Context, to Message, content string) (Message, error)
	Send(ctx context.Context, channelID, content string) (Message, error)
	Unpin(ctx context.Context, msg Message) error
	SetThreadLocked(ctx context.Context, threadID string, locked bool) error
	SetThreadArchived(ctx context.Context, threadID string, archived bool) error

	RoleMembers(ctx context.Context, guildID, roleID string) ([]Member, error)
	Member(ctx context.Context, guildID, userID string) (Member, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}

// Mention renders a user mention in the platform's markup.
func Mention(userID string) string { return "<@" + userID + ">" }
