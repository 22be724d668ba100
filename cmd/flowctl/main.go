// Command flowctl validates, describes and interactively drives flows
// declared in YAML against a generic object subject.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amp-labs/amp-flow/cli"
	"github.com/amp-labs/amp-flow/config"
	"github.com/amp-labs/amp-flow/logger"
	"github.com/amp-labs/amp-flow/shutdown"
	"github.com/amp-labs/amp-flow/telemetry"
)

const appName = "flowctl"

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, handler := shutdown.NewHandler(context.Background())
	defer handler.Shutdown(ctx)

	var s settings

	err := config.Load(&s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 1
	}

	_, err = logger.ConfigureLogging(appName, logger.WithOutput(os.Stderr))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 1
	}

	ctx = logger.WithSubsystem(ctx, appName)

	tcfg, err := telemetry.LoadConfigFromEnv(ctx, s.Environment)
	if err != nil {
		logger.Get(ctx).ErrorContext(ctx, "Failed to load telemetry config", "error", err)

		return 1
	}

	err = telemetry.Initialize(ctx, tcfg)
	if err != nil {
		logger.Get(ctx).ErrorContext(ctx, "Failed to initialize telemetry", "error", err)

		return 1
	}

	handler.BeforeShutdown(func(ctx context.Context) {
		err := telemetry.Shutdown(ctx)
		if err != nil {
			logger.Get(ctx).ErrorContext(ctx, "Failed to shut down telemetry", "error", err)
		}
	})

	if h := telemetry.LogHandler(); h != nil {
		_, err = logger.ConfigureLogging(appName, logger.WithOutput(os.Stderr), logger.WithTee(h))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)

			return 1
		}
	}

	a := &app{
		out:     os.Stdout,
		chooser: cli.Prompter{},
		args:    cli.PromptArgs,
		plain:   s.Plain,
		width:   s.Width,
	}

	err = a.run(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		return 1
	}

	return 0
}
