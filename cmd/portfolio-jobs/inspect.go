package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jdziat/portfolio-jobs/internal/bootstrap"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
)

func jobIDArg(name string, args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("usage: %s <job_id>", name)
	}
	return args[0], nil
}

func runStatus(cmdCtx *commandContext, args []string) error {
	id, err := jobIDArg("status", args)
	if err != nil {
		return err
	}
	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		return printJSON(cmdCtx.Out, app.Manager.Status(cmdCtx.Ctx, id))
	})
}

func runCancel(cmdCtx *commandContext, args []string) error {
	id, err := jobIDArg("cancel", args)
	if err != nil {
		return err
	}
	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		if !app.Manager.Cancel(cmdCtx.Ctx, id) {
			return fmt.Errorf("cancel %s: broker unavailable", id)
		}
		return writef(cmdCtx.Out, "revoke requested: %s\n", id)
	})
}

func runListActive(cmdCtx *commandContext, _ []string) error {
	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		report := app.Manager.ListActive(cmdCtx.Ctx)
		if report.Error != "" {
			return errors.New(report.Error)
		}
		return printActive(cmdCtx.Out, report)
	})
}

func runWorkerStats(cmdCtx *commandContext, _ []string) error {
	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		stats := app.Manager.WorkerStats(cmdCtx.Ctx)
		if stats.Error != "" {
			return errors.New(stats.Error)
		}
		return printWorkerStats(cmdCtx.Out, stats)
	})
}

func runPurge(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet("purge")
	retention := fs.Duration("retention", cmdCtx.Config.Results.Retention, "Keep finished jobs newer than this")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *retention < 0 {
		return errors.New("--retention must not be negative")
	}
	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		report := app.Manager.Purge(cmdCtx.Ctx, *retention)
		if report.Error != "" {
			return errors.New(report.Error)
		}
		return writef(cmdCtx.Out, "purged %d jobs, %d results\n", report.Jobs, report.Results)
	})
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return writef(w, "%s\n", out)
}

func printActive(w io.Writer, report manager.ActiveReport) error {
	if len(report.Jobs) == 0 {
		return writef(w, "no active jobs\n")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tKIND\tWORKER\tSTARTED\tARGS\n"); err != nil {
		return err
	}
	for _, j := range report.Jobs {
		started := "-"
		if j.StartedAt != nil {
			started = j.StartedAt.UTC().Format(time.RFC3339)
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Kind, j.WorkerID, started, j.Args); err != nil {
			return fmt.Errorf("write job %s: %w", j.ID, err)
		}
	}
	return tw.Flush()
}

func printWorkerStats(w io.Writer, stats manager.WorkerStats) error {
	if err := writef(w, "workers: %d  active tasks: %d\n", stats.WorkerCount, stats.ActiveTasks); err != nil {
		return err
	}
	if len(stats.Workers) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tHOST\tPID\tACTIVE\tPOOL\tPROCESSED\tLAST SEEN\n"); err != nil {
		return err
	}
	for _, s := range stats.Workers {
		if err := writef(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.ID, s.Hostname, s.PID, s.ActiveTasks, s.PoolSize, s.Processed,
			s.LastSeenAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("write worker %s: %w", s.ID, err)
		}
	}
	return tw.Flush()
}
