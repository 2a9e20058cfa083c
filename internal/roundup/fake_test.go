package roundup

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"hackbot/internal/chat"
)

// fakePlatform is an in-memory chat.Platform that records every call.
type fakePlatform struct {
	mu sync.Mutex

	channel    chat.Channel
	channelErr error
	threads    []chat.Thread
	threadsErr error
	messages   []chat.Message
	messageErr error
	starter    chat.Message
	starterErr error
	members    map[string]*chat.Member // by user id

	// failOn makes the named call return an error.
	failOn map[string]error

	calls   []string
	sent    []sentMessage
	lastCur string
}

type sentMessage struct {
	ChannelID string
	ReplyTo   string
	Content   string
}

var mutatingCalls = map[string]bool{
	"Reply": true, "Send": true, "Unpin": true, "SetThreadLocked": true,
	"SetThreadArchived": true, "AddRole": true, "RemoveRole": true,
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channel: chat.Channel{ID: "chan-1", GuildID: "guild-1", Name: "hack-night", Kind: chat.KindGuildText, Sendable: true},
		members: map[string]*chat.Member{},
		failOn:  map[string]error{},
	}
}

func (f *fakePlatform) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakePlatform) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if mutatingCalls[c] {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakePlatform) addMember(userID string, roles ...string) {
	f.members[userID] = &chat.Member{UserID: userID, RoleIDs: roles}
}

func (f *fakePlatform) Channel(_ context.Context, channelID string) (chat.Channel, error) {
	if err := f.record("Channel"); err != nil {
		return chat.Channel{}, err
	}
	if f.channelErr != nil {
		return chat.Channel{}, f.channelErr
	}
	return f.channel, nil
}

func (f *fakePlatform) ActiveThreads(context.Context, chat.Channel) ([]chat.Thread, error) {
	if err := f.record("ActiveThreads"); err != nil {
		return nil, err
	}
	return f.threads, f.threadsErr
}

func (f *fakePlatform) MessagesAfter(_ context.Context, _ string, afterID string, _ int) ([]chat.Message, error) {
	f.lastCur = afterID
	if err := f.record("MessagesAfter"); err != nil {
		return nil, err
	}
	return f.messages, f.messageErr
}

func (f *fakePlatform) StarterMessage(context.Context, chat.Thread) (chat.Message, error) {
	if err := f.record("StarterMessage"); err != nil {
		return chat.Message{}, err
	}
	return f.starter, f.starterErr
}

func (f *fakePlatform) Reply(_ context.Context, to chat.Message, content string) (chat.Message, error) {
	if err := f.record("Reply"); err != nil {
		return chat.Message{}, err
	}
	f.sent = append(f.sent, sentMessage{ChannelID: to.ChannelID, ReplyTo: to.ID, Content: content})
	return chat.Message{ChannelID: to.ChannelID, Content: content}, nil
}

func (f *fakePlatform) Send(_ context.Context, channelID, content string) (chat.Message, error) {
	if err := f.record("Send"); err != nil {
		return chat.Message{}, err
	}
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Content: content})
	return chat.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakePlatform) Unpin(context.Context, chat.Message) error { return f.record("Unpin") }

func (f *fakePlatform) SetThreadLocked(context.Context, string, bool) error {
	return f.record("SetThreadLocked")
}

func (f *fakePlatform) SetThreadArchived(context.Context, string, bool) error {
	return f.record("SetThreadArchived")
}

func (f *fakePlatform) RoleMembers(_ context.Context, _, roleID string) ([]chat.Member, error) {
	if err := f.record("RoleMembers"); err != nil {
		return nil, err
	}
	var out []chat.Member
	for _, id := range f.sortedMemberIDs() {
		if m := f.members[id]; m.HasRole(roleID) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakePlatform) Member(_ context.Context, _, userID string) (chat.Member, error) {
	if err := f.record("Member"); err != nil {
		return chat.Member{}, err
	}
	m, ok := f.members[userID]
	if !ok {
		return chat.Member{}, fmt.Errorf("member %s: %w", userID, chat.ErrNotFound)
	}
	return *m, nil
}

func (f *fakePlatform) AddRole(_ context.Context, _, userID, roleID string) error {
	if err := f.record("AddRole"); err != nil {
		return err
	}
	m := f.members[userID]
	m.RoleIDs = append(m.RoleIDs, roleID)
	return nil
}

func (f *fakePlatform) RemoveRole(_ context.Context, _, userID, roleID string) error {
	if err := f.record("RemoveRole"); err != nil {
		return err
	}
	if err := f.failOn["RemoveRole:"+userID]; err != nil {
		return err
	}
	m := f.members[userID]
	kept := m.RoleIDs[:0]
	for _, r := range m.RoleIDs {
		if r != roleID {
			kept = append(kept, r)
		}
	}
	m.RoleIDs = kept
	return nil
}

func (f *fakePlatform) sortedMemberIDs() []string {
	ids := make([]string, 0, len(f.members))
	for id := range f.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakePlatform) holders(roleID string) []string {
	var out []string
	for _, id := range f.sortedMemberIDs() {
		if f.members[id].HasRole(roleID) {
			out = append(out, id)
		}
	}
	return out
}

func msg(id, author string, attachments int) chat.Message {
	m := chat.Message{ID: id, ChannelID: "thread-1", AuthorID: author}
	for i := 0; i < attachments; i++ {
		m.Attachments = append(m.Attachments, chat.Attachment{
			ID:  fmt.Sprintf("%s-a%d", id, i),
			URL: fmt.Sprintf("https://cdn.example/%s/%d.jpg", id, i),
		})
	}
	return m
}
