// Command portfolio-jobs runs the portfolio job workers and scheduler, and
// submits and inspects jobs from the shell.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/jdziat/portfolio-jobs/internal/bootstrap"
	"github.com/jdziat/portfolio-jobs/internal/config"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

func main() {
	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2)
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2)
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	if err := cmd.run(cmdCtx, os.Args[2:]); err != nil {
		logger.Error("command failed", "command", cmdName, "error", err)
		os.Exit(1)
	}
}

func commands() map[string]command {
	return map[string]command{
		"worker": {
			name:        "worker",
			description: "Run a worker with its lost-claim reaper and retention purger",
			run:         runWorker,
		},
		"scheduler": {
			name:        "scheduler",
			description: "Submit the recurring portfolio jobs on their schedule",
			run:         runScheduler,
		},
		"fetch-market-data": {
			name:        "fetch-market-data",
			description: "Fetch price history for --symbols over --period",
			run:         runFetchMarketData,
		},
		"update-prices": {
			name:        "update-prices",
			description: "Refresh current prices for held assets (--user-id, default all users)",
			run:         runUpdatePrices,
		},
		"fetch-asset-info": {
			name:        "fetch-asset-info",
			description: "Fetch descriptive data for --ticker",
			run:         runFetchAssetInfo,
		},
		"calculate-performance": {
			name:        "calculate-performance",
			description: "Calculate performance for --user-id over --days",
			run:         runCalculatePerformance,
		},
		"create-snapshot": {
			name:        "create-snapshot",
			description: "Create today's portfolio snapshot (--user-id, default all users)",
			run:         runCreateSnapshot,
		},
		"submit": {
			name:        "submit",
			description: "Submit a job by kind name with JSON args: submit <kind> [json]",
			run:         runSubmit,
		},
		"status": {
			name:        "status",
			description: "Show the status of a job: status <job_id>",
			run:         runStatus,
		},
		"cancel": {
			name:        "cancel",
			description: "Revoke a queued or running job: cancel <job_id>",
			run:         runCancel,
		},
		"list-active": {
			name:        "list-active",
			description: "List jobs currently executing on a worker",
			run:         runListActive,
		},
		"worker-stats": {
			name:        "worker-stats",
			description: "Summarize live workers and their active tasks",
			run:         runWorkerStats,
		},
		"purge": {
			name:        "purge",
			description: "Delete finished jobs and expired results older than --retention",
			run:         runPurge,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: portfolio-jobs <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-24s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmdCtx *commandContext, role bootstrap.Role, fn func(app *bootstrap.App) error) (err error) {
	app, err := bootstrap.New(cmdCtx.Ctx, cmdCtx.Config, role, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close failed", "error", closeErr)
		}
	}()
	return fn(app)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
