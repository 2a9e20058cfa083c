package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	logx "hackbot/pkg/logx"
)

// Validate checks cfg for values that can be verified without network access.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Discord.Token) == "" {
		add(fmt.Errorf("discord.token: required (or set %s)", EnvDiscordToken))
	}
	_, err := ParseDurationField("discord.http_timeout", cfg.Discord.HTTPTimeout)
	add(err)

	lg := cfg.Logging
	if lg.Level != "" && !logx.ValidLevel(lg.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", lg.Level))
	}
	if lg.File.Enabled && strings.TrimSpace(lg.File.Path) == "" {
		add(errors.New("logging.file.path: required when file logging is enabled"))
	}
	if lg.Discord.Enabled {
		if strings.TrimSpace(lg.Discord.ChannelID) == "" {
			add(errors.New("logging.discord.channel_id: required when enabled"))
		}
		if lg.Discord.MinLevel != "" && !logx.ValidLevel(lg.Discord.MinLevel) {
			add(fmt.Errorf("logging.discord.min_level: unknown level %q", lg.Discord.MinLevel))
		}
	}
	if lg.Discord.RatePerSec < 0 {
		add(errors.New("logging.discord.rate_per_sec: must be >= 0"))
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	te := cfg.TaskEngine
	if te.QueueSize < 0 {
		add(errors.New("task_engine.queue_size: must be >= 0"))
	}
	if te.HistorySize < 0 {
		add(errors.New("task_engine.history_size: must be >= 0"))
	}
	_, err = ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	add(err)

	if r := cfg.Roundup; r.Enabled {
		if strings.TrimSpace(r.ChannelID) == "" {
			add(errors.New("roundup.channel_id: required"))
		}
		if strings.TrimSpace(r.AwardRoleID) == "" {
			add(errors.New("roundup.award_role_id: required"))
		}
		if r.FetchLimit < 0 || r.FetchLimit > 100 {
			add(errors.New("roundup.fetch_limit: must be between 1 and 100"))
		}
		if r.LeaderboardSize < 0 {
			add(errors.New("roundup.leaderboard_size: must be >= 0"))
		}
		_, err := ParseDurationField("roundup.window", r.Window)
		add(err)
	}
	return errors.Join(errs...)
}
