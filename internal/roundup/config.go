package roundup

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultThreadPrefix    = "Hack Night Images - "
	DefaultWindow          = 46 * time.Hour
	DefaultFetchLimit      = 100
	DefaultLeaderboardSize = 5
	DefaultEventName       = "Hack Night"
	DefaultAwardName       = "Hack Night Photography Award"

	maxFetchLimit = 100
)

type Config struct {
	ChannelID   string
	AwardRoleID string

	ThreadPrefix    string
	Window          time.Duration
	FetchLimit      int
	LeaderboardSize int

	// AnnounceLeaderboard posts the picture count and the top contributors.
	AnnounceLeaderboard bool

	EventName string
	AwardName string
}

// DefaultConfig returns the stock settings with announcements enabled.
func DefaultConfig() Config {
	return Config{
		ThreadPrefix:        DefaultThreadPrefix,
		Window:              DefaultWindow,
		FetchLimit:          DefaultFetchLimit,
		LeaderboardSize:     DefaultLeaderboardSize,
		AnnounceLeaderboard: true,
		EventName:           DefaultEventName,
		AwardName:           DefaultAwardName,
	}
}

// withDefaults fills zero values. AnnounceLeaderboard is left alone; callers
// that want the default start from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ThreadPrefix == "" {
		c.ThreadPrefix = d.ThreadPrefix
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = d.FetchLimit
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = d.LeaderboardSize
	}
	if strings.TrimSpace(c.EventName) == "" {
		c.EventName = d.EventName
	}
	if strings.TrimSpace(c.AwardName) == "" {
		c.AwardName = d.AwardName
	}
	return c
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ChannelID) == "" {
		errs = append(errs, errors.New("channel_id required"))
	}
	if strings.TrimSpace(c.AwardRoleID) == "" {
		errs = append(errs, errors.New("award_role_id required"))
	}
	if c.FetchLimit < 0 || c.FetchLimit > maxFetchLimit {
		errs = append(errs, fmt.Errorf("fetch_limit must be between 1 and %d", maxFetchLimit))
	}
	if c.LeaderboardSize < 0 {
		errs = append(errs, errors.New("leaderboard_size must be >= 0"))
	}
	if c.Window < 0 {
		errs = append(errs, errors.New("window must be >= 0"))
	}
	return errors.Join(errs...)
}
