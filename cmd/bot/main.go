package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"hackbot/internal/app"
)

type Options struct {
	Config   string `short:"c" long:"config" default:"./config.yaml" description:"path to config file (yaml or json)"`
	EnvFile  string `long:"env-file" default:".env" description:"dotenv file loaded before the config (missing file is ignored)"`
	RunNow   bool   `long:"run-now" description:"run the roundup once and exit"`
	Validate bool   `long:"validate" description:"parse and validate the config, then exit"`
}

const stopTimeout = 10 * time.Second

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "fatal: load %s: %v\n", opts.EnvFile, err)
		os.Exit(1)
	}

	if opts.Validate {
		if _, err := app.LoadConfig(opts.Config); err != nil {
			fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("config ok:", opts.Config)
		return
	}

	a, err := app.NewApp(opts.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.RunNow {
		os.Exit(runOnce(ctx, cancel, a, sigCh))
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		stop(a, app.StopFatalError)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		reason = reasonFor(sig)
	case <-a.Done():
		reason = app.StopFatalError
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stop(a, reason)
	if err := a.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, cancel context.CancelFunc, a *app.App, sigCh <-chan os.Signal) int {
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	rep, err := a.RunOnce(ctx)
	stop(a, app.StopRunOnce)
	if err != nil {
		fmt.Fprintln(os.Stderr, "roundup failed:", err)
		return 1
	}
	fmt.Printf("roundup %s", rep.Outcome)
	if rep.Reason != "" {
		fmt.Printf(" (%s)", rep.Reason)
	}
	fmt.Println()
	return 0
}

func stop(a *app.App, reason app.StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = a.Stop(ctx, reason)
}

func reasonFor(sig os.Signal) app.StopReason {
	switch sig {
	case os.Interrupt:
		return app.StopSIGINT
	case syscall.SIGTERM:
		return app.StopSIGTERM
	default:
		return app.StopUnknown
	}
}
