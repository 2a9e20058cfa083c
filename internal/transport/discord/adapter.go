package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"hackbot/internal/chat"
	logx "hackbot/pkg/logx"
	"hackbot/pkg/snowflake"
)

// Intents needed to read threads and members of the configured guild.
const defaultIntents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildMessages

// guildMembersPage is the maximum page size Discord accepts for member listing.
const guildMembersPage = 1000

type Config struct {
	Token       string
	HTTPTimeout time.Duration
}

// Adapter implements chat.Platform on a discordgo session.
type Adapter struct {
	cfg Config
	log logx.Logger
	s   *discordgo.Session

	runMu    sync.Mutex
	running  bool
	offReady func()

	meMu sync.Mutex
	meID string
}

var _ chat.Platform = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if cfg.HTTPTimeout > 0 {
		s.Client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	s.Identify.Intents = defaultIntents
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, s: s}, nil
}

// Session exposes the underlying discordgo session.
func (a *Adapter) Session() *discordgo.Session { return a.s }

// Start opens the gateway connection and waits for the Ready event or ctx.
func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	var once sync.Once
	a.offReady = a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			a.setBotID(r.User.ID)
		}
		a.log.Info("gateway ready", logx.String("user", userName(r.User)), logx.Int("guilds", len(r.Guilds)))
		once.Do(func() { close(ready) })
	})
	if err := a.s.Open(); err != nil {
		a.offReady()
		a.runMu.Unlock()
		return fmt.Errorf("open discord gateway: %w", err)
	}
	a.running = true
	a.runMu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the gateway connection. REST calls keep working after Stop.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	if a.offReady != nil {
		a.offReady()
		a.offReady = nil
	}

	done := make(chan error, 1)
	go func() { done <- a.s.Close() }()
	select {
	case err := <-done:
		a.log.Info("gateway closed")
		return err
	case <-ctx.Done():
		a.log.Warn("discord close timed out", logx.Err(ctx.Err()))
		return nil
	}
}

func (a *Adapter) setBotID(id string) {
	a.meMu.Lock()
	a.meID = id
	a.meMu.Unlock()
}

func (a *Adapter) botID(ctx context.Context) (string, error) {
	a.meMu.Lock()
	defer a.meMu.Unlock()
	if a.meID != "" {
		return a.meID, nil
	}
	u, err := a.s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetch bot user: %w", err)
	}
	a.meID = u.ID
	return a.meID, nil
}

func (a *Adapter) Channel(ctx context.Context, channelID string) (chat.Channel, error) {
	ch, err := a.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Channel{}, mapErr("channel "+channelID, err)
	}
	out := toChannel(ch)

	me, err := a.botID(ctx)
	if err != nil {
		return chat.Channel{}, err
	}
	perms, err := a.s.UserChannelPermissions(me, ch.ID, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Channel{}, mapErr("channel permissions", err)
	}
	out.Sendable = canSend(perms)
	return out, nil
}

func (a *Adapter) ActiveThreads(ctx context.Context, parent chat.Channel) ([]chat.Thread, error) {
	list, err := a.s.GuildThreadsActive(parent.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr("active threads", err)
	}
	if list == nil {
		return []chat.Thread{}, nil
	}
	return threadsOf(list.Threads, parent.ID), nil
}

func (a *Adapter) MessagesAfter(ctx context.Context, channelID, afterID string, limit int) ([]chat.Message, error) {
	msgs, err := a.s.ChannelMessages(channelID, limit, "", afterID, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr("messages", err)
	}
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return out, nil
}

// StarterMessage fetches the message a thread was opened from. It shares the
// thread's ID and lives in the parent channel.
func (a *Adapter) StarterMessage(ctx context.Context, t chat.Thread) (chat.Message, error) {
	m, err := a.s.ChannelMessage(t.ParentID, t.ID, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Message{}, mapErr("starter message", err)
	}
	return toMessage(m), nil
}

func (a *Adapter) Reply(ctx context.Context, to chat.Message, content string) (chat.Message, error) {
	ref := &discordgo.MessageReference{MessageID: to.ID, ChannelID: to.ChannelID, GuildID: to.GuildID}
	chunks := splitText(content, discordTextLimit)
	first, err := a.s.ChannelMessageSendReply(to.ChannelID, chunks[0], ref, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Message{}, mapErr("reply", err)
	}
	for _, chunk := range chunks[1:] {
		if _, err := a.s.ChannelMessageSend(to.ChannelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return toMessage(first), mapErr("reply", err)
		}
	}
	return toMessage(first), nil
}

func (a *Adapter) Send(ctx context.Context, channelID, content string) (chat.Message, error) {
	var first *discordgo.Message
	for _, chunk := range splitText(content, discordTextLimit) {
		m, err := a.s.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx))
		if err != nil {
			if first != nil {
				return toMessage(first), mapErr("send", err)
			}
			return chat.Message{}, mapErr("send", err)
		}
		if first == nil {
			first = m
		}
	}
	return toMessage(first), nil
}

func (a *Adapter) Unpin(ctx context.Context, m chat.Message) error {
	return mapErr("unpin", a.s.ChannelMessageUnpin(m.ChannelID, m.ID, discordgo.WithContext(ctx)))
}

func (a *Adapter) SetThreadLocked(ctx context.Context, threadID string, locked bool) error {
	_, err := a.s.ChannelEdit(threadID, &discordgo.ChannelEdit{Locked: &locked}, discordgo.WithContext(ctx))
	return mapErr("lock thread", err)
}

func (a *Adapter) SetThreadArchived(ctx context.Context, threadID string, archived bool) error {
	_, err := a.s.ChannelEdit(threadID, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(ctx))
	return mapErr("archive thread", err)
}

// RoleMembers pages through the guild member list and keeps holders of roleID.
func (a *Adapter) RoleMembers(ctx context.Context, guildID, roleID string) ([]chat.Member, error) {
	var out []chat.Member
	after := ""
	for {
		page, err := a.s.GuildMembers(guildID, after, guildMembersPage, discordgo.WithContext(ctx))
		if err != nil {
			return nil, mapErr("guild members", err)
		}
		out = append(out, withRole(page, roleID)...)
		if len(page) < guildMembersPage {
			return out, nil
		}
		last := page[len(page)-1]
		if last.User == nil {
			return out, nil
		}
		after = last.User.ID
	}
}

func (a *Adapter) Member(ctx context.Context, guildID, userID string) (chat.Member, error) {
	m, err := a.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Member{}, mapErr("member "+userID, err)
	}
	return toMember(m), nil
}

func (a *Adapter) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return mapErr("add role", a.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (a *Adapter) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return mapErr("remove role", a.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

// notFoundCodes are Discord JSON error codes for unknown resources.
var notFoundCodes = map[int]bool{
	discordgo.ErrCodeUnknownChannel: true,
	discordgo.ErrCodeUnknownMessage: true,
	discordgo.ErrCodeUnknownMember:  true,
}

// mapErr wraps err with op and folds unknown-resource errors into chat.ErrNotFound.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("%s: %w (%v)", op, chat.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil && notFoundCodes[rerr.Message.Code] {
		return true
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}

func canSend(perms int64) bool {
	need := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&need == need
}

func toChannel(ch *discordgo.Channel) chat.Channel {
	out := chat.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name, Kind: chat.KindOther}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText:
		out.Kind = chat.KindGuildText
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		out.Kind = chat.KindThread
	}
	return out
}

func threadsOf(channels []*discordgo.Channel, parentID string) []chat.Thread {
	out := make([]chat.Thread, 0, len(channels))
	for _, ch := range channels {
		if ch == nil || ch.ParentID != parentID {
			continue
		}
		out = append(out, toThread(ch))
	}
	return out
}

func toThread(ch *discordgo.Channel) chat.Thread {
	t := chat.Thread{ID: ch.ID, ParentID: ch.ParentID, GuildID: ch.GuildID, Name: ch.Name}
	if ts, err := snowflake.Timestamp(ch.ID); err == nil {
		t.CreatedAt = ts
	}
	if md := ch.ThreadMetadata; md != nil {
		t.Locked = md.Locked
		t.Archived = md.Archived
	}
	return t
}

func toMessage(m *discordgo.Message) chat.Message {
	if m == nil {
		return chat.Message{}
	}
	out := chat.Message{ID: m.ID, ChannelID: m.ChannelID, GuildID: m.GuildID, Content: m.Content, Pinned: m.Pinned}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out.Attachments = append(out.Attachments, chat.Attachment{
			ID: a.ID, URL: a.URL, Filename: a.Filename, ContentType: a.ContentType,
		})
	}
	return out
}

func toMember(m *discordgo.Member) chat.Member {
	out := chat.Member{RoleIDs: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.UserID = m.User.ID
	}
	return out
}

func withRole(members []*discordgo.Member, roleID string) []chat.Member {
	var out []chat.Member
	for _, m := range members {
		if m == nil || m.User == nil {
			continue
		}
		cm := toMember(m)
		if cm.HasRole(roleID) {
			out = append(out, cm)
		}
	}
	return out
}

func userName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
