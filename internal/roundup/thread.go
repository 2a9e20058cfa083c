package roundup

import (
	"sort"
	"strings"

	"hackbot/internal/chat"
)

// SelectLatestThread picks the newest thread whose name starts with prefix.
//
// Threads with an unknown creation time compare equal to every other thread,
// so the stable sort leaves them where they were; among equals the first one
// encountered wins.
func SelectLatestThread(threads []chat.Thread, prefix string) (chat.Thread, bool) {
	matches := make([]chat.Thread, 0, len(threads))
	for _, t := range threads {
		if strings.HasPrefix(t.Name, prefix) {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return chat.Thread{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].CreatedAt, matches[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return false
		}
		return a.After(b)
	})
	return matches[0], true
}
