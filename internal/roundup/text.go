package roundup

import (
	"fmt"
	"strings"

	"hackbot/internal/chat"
)

const signOffText = "Happy hacking, and see you next time! :D"

// PicturesText renders "1 picture" or "N pictures".
func PicturesText(n int) string {
	if n == 1 {
		return "1 picture"
	}
	return fmt.Sprintf("%d pictures", n)
}

func thanksText(eventName string, pictures int) string {
	return fmt.Sprintf("Thanks for coming to %s! We took %s :D", eventName, PicturesText(pictures))
}

// LeaderboardText renders the 1-indexed top contributor list.
func LeaderboardText(top []Contribution) string {
	var b strings.Builder
	b.WriteString("Our top contributors this week are:\n")
	for i, c := range top {
		fmt.Fprintf(&b, "\n#%d: %s - %d", i+1, chat.Mention(c.UserID), c.Count)
	}
	return b.String()
}

func congratsText(awardName, userID string) string {
	return fmt.Sprintf("Congratulations to %s for winning the %s! :D", chat.Mention(userID), awardName)
}
