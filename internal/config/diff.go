package config

import (
	"sort"
	"strings"

	logx "hackbot/pkg/logx"
)

// SummarizeConfigChange lists the changed sections and returns log fields
// describing their new values. Secrets are reported only as "set" flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	od, nd := oldCfg.Discord, newCfg.Discord
	if od.Token != nd.Token || strings.TrimSpace(od.HTTPTimeout) != strings.TrimSpace(nd.HTTPTimeout) {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.token_set", strings.TrimSpace(nd.Token) != ""),
			logx.Bool("discord.token_changed", od.Token != nd.Token),
			logx.String("discord.http_timeout", strings.TrimSpace(nd.HTTPTimeout)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		lg := newCfg.Logging
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", lg.Level),
			logx.Bool("logging.console", lg.Console),
			logx.Bool("logging.file_enabled", lg.File.Enabled),
			logx.Bool("logging.discord_enabled", lg.Discord.Enabled),
			logx.String("logging.discord_min_level", lg.Discord.MinLevel),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	if oldCfg.TaskEngine != newCfg.TaskEngine {
		te := newCfg.TaskEngine
		changed = append(changed, "task_engine")
		attrs = append(attrs,
			logx.Int("task_engine.queue_size", te.QueueSize),
			logx.String("task_engine.default_timeout", strings.TrimSpace(te.DefaultTimeout)),
			logx.Int("task_engine.history_size", te.HistorySize),
		)
	}

	or, nr := oldCfg.Roundup, newCfg.Roundup
	if !roundupEqual(or, nr) {
		changed = append(changed, "roundup")
		attrs = append(attrs,
			logx.Bool("roundup.enabled", nr.Enabled),
			logx.String("roundup.schedule", nr.EffectiveSchedule()),
			logx.String("roundup.channel_id", nr.ChannelID),
			logx.Bool("roundup.announce_leaderboard", nr.Announce()),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func roundupEqual(a, b RoundupConfig) bool {
	if a.Announce() != b.Announce() {
		return false
	}
	a.AnnounceLeaderboard, b.AnnounceLeaderboard = nil, nil
	return a == b
}
