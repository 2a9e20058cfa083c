package roundup

import (
	"sort"

	"github.com/samber/mo"

	"hackbot/internal/chat"
)

// Contribution is one member's attachment count for the window.
type Contribution struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// Tally counts attachments per author. It remembers the order in which
// authors were first seen so ranking ties stay deterministic.
type Tally struct {
	order []string
	count map[string]int
}

func NewTally() *Tally {
	return &Tally{count: map[string]int{}}
}

// Add credits n attachments to userID. Non-positive n is ignored.
func (t *Tally) Add(userID string, n int) {
	if n <= 0 {
		return
	}
	if _, ok := t.count[userID]; !ok {
		t.order = append(t.order, userID)
	}
	t.count[userID] += n
}

func (t *Tally) Count(userID string) int { return t.count[userID] }

func (t *Tally) Len() int { return len(t.order) }

// Total is the sum of all counts.
func (t *Tally) Total() int {
	total := 0
	for _, n := range t.count {
		total += n
	}
	return total
}

// Ranked returns contributions by descending count; ties keep first-seen order.
func (t *Tally) Ranked() []Contribution {
	out := make([]Contribution, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, Contribution{UserID: id, Count: t.count[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Top returns at most n ranked contributions.
func (t *Tally) Top(n int) []Contribution {
	r := t.Ranked()
	if n >= 0 && len(r) > n {
		r = r[:n]
	}
	return r
}

// Winner is the top-ranked contribution, or None for an empty tally.
func (t *Tally) Winner() mo.Option[Contribution] {
	r := t.Ranked()
	if len(r) == 0 {
		return mo.None[Contribution]()
	}
	return mo.Some(r[0])
}

// BuildTally credits each message's attachments to its author and returns the
// flattened attachments of every message that had at least one.
func BuildTally(messages []chat.Message) (*Tally, []chat.Attachment) {
	t := NewTally()
	var attachments []chat.Attachment
	for _, m := range messages {
		if len(m.Attachments) == 0 {
			continue
		}
		t.Add(m.AuthorID, len(m.Attachments))
		attachments = append(attachments, m.Attachments...)
	}
	return t, attachments
}
