package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hackbot/internal/config"
	"hackbot/internal/eventbus"
	"hackbot/internal/roundup"
	rtsup "hackbot/internal/runtime/supervisor"
	"hackbot/internal/task/engine"
	"hackbot/internal/task/scheduler"
	"hackbot/internal/transport/discord"
	logx "hackbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	discord *discord.Adapter

	engine  *engine.Service
	sched   *scheduler.Service
	roundup *roundup.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Parse()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfgm.Commit(cfg)

	// the Discord sink is attached once the session exists
	logSvc, log := logx.New(mapLogConfig(cfg), nil)
	appLog := log.With(logx.String("comp", "app"))

	dcfg, err := mapDiscordConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := discord.New(dcfg, log.With(logx.String("comp", "discord")))
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(discord.NewLogSink(ad))

	bus := eventbus.New()

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg), engineSvc, log.With(logx.String("comp", "scheduler")))

	rcfg, err := mapRoundupConfig(cfg)
	if err != nil {
		return nil, err
	}
	roundupSvc := roundup.New(rcfg, ad, log.With(logx.String("comp", "roundup")), roundup.WithBus(bus))

	a := &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		discord: ad,
		engine:  engineSvc,
		sched:   schedSvc,
		roundup: roundupSvc,
	}
	if err := a.registerRoundup(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// registerRoundup adds, replaces or removes the roundup schedule to match cfg.
func (a *App) registerRoundup(cfg *config.Config) error {
	if !cfg.Roundup.Enabled {
		if a.sched.Remove(roundupJob) {
			a.log.Info("roundup schedule removed")
		}
		return nil
	}
	spec := cfg.Roundup.EffectiveSchedule()
	if _, err := a.sched.AddSchedule(roundupJob, spec, 0, a.roundup.Job); err != nil {
		return fmt.Errorf("register roundup schedule: %w", err)
	}
	a.log.Info("roundup scheduled", logx.String("schedule", spec), logx.Time("next", a.sched.Next(roundupJob)))
	return nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)

	if err := a.discord.Start(a.sup.Context()); err != nil {
		return err
	}

	a.engine.Start(a.sup.Context())
	a.sched.Start(a.sup.Context())
	if next := a.sched.Next(roundupJob); !next.IsZero() {
		a.log.Info("next roundup", logx.Time("at", next))
	}

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(64)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// RunOnce runs the roundup immediately through the task engine and waits for
// it. The gateway is not needed; every call is REST.
func (a *App) RunOnce(ctx context.Context) (roundup.Report, error) {
	a.engine.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopBudget["taskengine"])
		defer cancel()
		a.engine.Stop(stopCtx)
	}()

	var rep roundup.Report
	err := a.engine.Do(ctx, engine.Task{
		Name: roundupJob,
		Run: func(c context.Context) error {
			var err error
			rep, err = a.roundup.Run(c)
			return err
		},
	})
	return rep, err
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		a.sup.Cancel()
	}

	// run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, fn func(context.Context) error) {
		start := time.Now()
		budget := stopBudget[name]
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < budget {
				budget = rem
			}
		}
		if budget <= 0 {
			a.log.Warn("stop step skipped: deadline reached", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, budget)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// scheduler first so nothing new is queued while the engine drains
	step("scheduler", func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", func(c context.Context) error { a.engine.Stop(c); return nil })
	step("discord", a.discord.Stop)
	if a.sup != nil {
		step("supervisor", a.sup.Wait)
	}

	a.log.Info("stopped")
	return a.logs.Close()
}
