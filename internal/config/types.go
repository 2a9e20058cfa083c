package config

import "strings"

// EnvDiscordToken overrides discord.token when set.
const EnvDiscordToken = "DISCORD_BOT_TOKEN"

type Config struct {
	Discord    DiscordConfig    `json:"discord"`
	Logging    LoggingConfig    `json:"logging"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Roundup    RoundupConfig    `json:"roundup"`
}

type DiscordConfig struct {
	// Token is the bot token. Prefer the DISCORD_BOT_TOKEN env var; never logged.
	Token string `json:"token,omitempty"`
	// HTTPTimeout is a Go duration string for REST calls (default: discordgo's 20s).
	HTTPTimeout string `json:"http_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingDiscord mirrors log lines at or above MinLevel into a Discord channel.
type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone is an IANA name used to evaluate cron specs (default: local).
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls job execution.
//
// Defaults (when fields are omitted/zero):
//   - queue_size: 8
//   - default_timeout: "0s" (disabled)
//   - history_size: 50
type TaskEngineConfig struct {
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// RoundupConfig controls the weekly photo roundup.
type RoundupConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec or "weekly:sun@18:00".
	Schedule string `json:"schedule"`

	ChannelID   string `json:"channel_id"`
	AwardRoleID string `json:"award_role_id"`

	ThreadPrefix    string `json:"thread_prefix,omitempty"`
	Window          string `json:"window,omitempty"`
	FetchLimit      int    `json:"fetch_limit,omitempty"`
	LeaderboardSize int    `json:"leaderboard_size,omitempty"`

	// AnnounceLeaderboard is a pointer so an omitted key means true.
	AnnounceLeaderboard *bool `json:"announce_leaderboard,omitempty"`

	EventName string `json:"event_name,omitempty"`
	AwardName string `json:"award_name,omitempty"`
}

const DefaultRoundupSchedule = "0 18 * * 0"

// Announce reports the effective announce_leaderboard value.
func (r RoundupConfig) Announce() bool {
	return r.AnnounceLeaderboard == nil || *r.AnnounceLeaderboard
}

// EffectiveSchedule returns the schedule with the default applied.
func (r RoundupConfig) EffectiveSchedule() string {
	if s := strings.TrimSpace(r.Schedule); s != "" {
		return s
	}
	return DefaultRoundupSchedule
}
