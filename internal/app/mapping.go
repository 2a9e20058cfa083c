package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hackbot/internal/config"
	"hackbot/internal/roundup"
	"hackbot/internal/task/engine"
	"hackbot/internal/task/scheduler"
	"hackbot/internal/transport/discord"
	logx "hackbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	lg := cfg.Logging
	return logx.Config{
		Level:   lg.Level,
		Console: lg.Console,
		File: logx.FileConfig{
			Enabled: lg.File.Enabled,
			Path:    lg.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    lg.Discord.Enabled,
			ChannelID:  lg.Discord.ChannelID,
			MinLevel:   lg.Discord.MinLevel,
			RatePerSec: lg.Discord.RatePerSec,
		},
	}
}

func mapDiscordConfig(cfg *config.Config) (discord.Config, error) {
	timeout, err := config.ParseDurationField("discord.http_timeout", cfg.Discord.HTTPTimeout)
	if err != nil {
		return discord.Config{}, err
	}
	return discord.Config{Token: cfg.Discord.Token, HTTPTimeout: timeout}, nil
}

// mapTaskEngineConfig always enables the engine; --run-now needs it even when
// the scheduler is off.
func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	timeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        true,
		QueueSize:      te.QueueSize,
		DefaultTimeout: timeout,
		HistorySize:    te.HistorySize,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.Scheduler.Timezone,
	}
}

func mapRoundupConfig(cfg *config.Config) (roundup.Config, error) {
	r := cfg.Roundup
	window, err := config.ParseDurationOrDefault("roundup.window", r.Window, roundup.DefaultWindow)
	if err != nil {
		return roundup.Config{}, err
	}
	return roundup.Config{
		ChannelID:           r.ChannelID,
		AwardRoleID:         r.AwardRoleID,
		ThreadPrefix:        r.ThreadPrefix,
		Window:              window,
		FetchLimit:          r.FetchLimit,
		LeaderboardSize:     r.LeaderboardSize,
		AnnounceLeaderboard: r.Announce(),
		EventName:           r.EventName,
		AwardName:           r.AwardName,
	}, nil
}

// validateConfig extends config.Validate with checks that need the service
// packages. It is also the hot-reload validator.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if !cfg.Roundup.Enabled {
		return nil
	}
	var errs []error
	if _, err := scheduler.ParseSchedule(cfg.Roundup.EffectiveSchedule()); err != nil {
		errs = append(errs, fmt.Errorf("roundup.schedule: %w", err))
	}
	rc, err := mapRoundupConfig(cfg)
	if err == nil {
		err = rc.Validate()
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("roundup: %w", err))
	}
	return errors.Join(errs...)
}

// LoadConfig parses and validates path without starting anything.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(context.Background(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

const roundupJob = "roundup"

// stopBudget bounds each shutdown step.
var stopBudget = map[string]time.Duration{
	"scheduler":  2 * time.Second,
	"taskengine": 5 * time.Second,
	"discord":    2 * time.Second,
	"supervisor": 2 * time.Second,
}
