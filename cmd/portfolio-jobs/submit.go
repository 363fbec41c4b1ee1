package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jdziat/portfolio-jobs/internal/bootstrap"
	"github.com/jdziat/portfolio-jobs/internal/tasks"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
)

const defaultMaxWait = 35 * time.Minute

type waitOptions struct {
	Wait     bool
	Interval time.Duration
	MaxWait  time.Duration
}

func bindWaitFlags(fs *flag.FlagSet, opts *waitOptions) {
	fs.BoolVar(&opts.Wait, "wait", true, "Poll the job until it finishes")
	fs.DurationVar(&opts.Interval, "interval", manager.DefaultPollInterval, "Polling interval")
	fs.DurationVar(&opts.MaxWait, "max-wait", defaultMaxWait, "Stop polling after this long (the job keeps running)")
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFetchMarketDataFlags(args []string) (core.FetchMarketDataArgs, waitOptions, error) {
	var (
		symbols string
		out     core.FetchMarketDataArgs
		wait    waitOptions
	)
	fs := newFlagSet("fetch-market-data")
	fs.StringVar(&symbols, "symbols", "", "Comma-separated ticker symbols")
	fs.StringVar(&out.Period, "period", tasks.DefaultPeriod, "History period, e.g. 5d, 1mo, 1y")
	bindWaitFlags(fs, &wait)
	if err := fs.Parse(args); err != nil {
		return out, wait, err
	}

	for _, s := range strings.Split(symbols, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out.Symbols = append(out.Symbols, s)
		}
	}
	if len(out.Symbols) == 0 {
		return out, wait, errors.New("--symbols is required")
	}
	return out, wait, nil
}

func parseUpdatePricesFlags(args []string) (core.UpdatePricesArgs, waitOptions, error) {
	var (
		userID uint
		wait   waitOptions
	)
	fs := newFlagSet("update-prices")
	fs.UintVar(&userID, "user-id", 0, "Only update tickers held by this user")
	bindWaitFlags(fs, &wait)
	if err := fs.Parse(args); err != nil {
		return core.UpdatePricesArgs{}, wait, err
	}
	return core.UpdatePricesArgs{UserID: optionalID(userID)}, wait, nil
}

func parseFetchAssetInfoFlags(args []string) (core.FetchAssetInfoArgs, waitOptions, error) {
	var (
		out  core.FetchAssetInfoArgs
		wait waitOptions
	)
	fs := newFlagSet("fetch-asset-info")
	fs.StringVar(&out.Ticker, "ticker", "", "Ticker symbol")
	bindWaitFlags(fs, &wait)
	if err := fs.Parse(args); err != nil {
		return out, wait, err
	}
	out.Ticker = strings.ToUpper(strings.TrimSpace(out.Ticker))
	if out.Ticker == "" {
		return out, wait, errors.New("--ticker is required")
	}
	return out, wait, nil
}

func parseCalculatePerformanceFlags(args []string) (core.CalculatePerformanceArgs, waitOptions, error) {
	var (
		out  core.CalculatePerformanceArgs
		wait waitOptions
	)
	fs := newFlagSet("calculate-performance")
	fs.UintVar(&out.UserID, "user-id", 0, "User to calculate performance for")
	fs.IntVar(&out.DaysBack, "days", tasks.DefaultDaysBack, "Days of snapshot history in the trend")
	bindWaitFlags(fs, &wait)
	if err := fs.Parse(args); err != nil {
		return out, wait, err
	}
	if out.UserID == 0 {
		return out, wait, errors.New("--user-id is required")
	}
	if out.DaysBack <= 0 {
		return out, wait, errors.New("--days must be greater than zero")
	}
	return out, wait, nil
}

func parseCreateSnapshotFlags(args []string) (core.CreateSnapshotArgs, waitOptions, error) {
	var (
		userID uint
		wait   waitOptions
	)
	fs := newFlagSet("create-snapshot")
	fs.UintVar(&userID, "user-id", 0, "Only snapshot this user")
	bindWaitFlags(fs, &wait)
	if err := fs.Parse(args); err != nil {
		return core.CreateSnapshotArgs{}, wait, err
	}
	return core.CreateSnapshotArgs{UserID: optionalID(userID)}, wait, nil
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func runFetchMarketData(cmdCtx *commandContext, args []string) error {
	jobArgs, wait, err := parseFetchMarketDataFlags(args)
	if err != nil {
		return err
	}
	return submitAndWatch(cmdCtx, jobArgs, wait)
}

func runUpdatePrices(cmdCtx *commandContext, args []string) error {
	jobArgs, wait, err := parseUpdatePricesFlags(args)
	if err != nil {
		return err
	}
	return submitAndWatch(cmdCtx, jobArgs, wait)
}

func runFetchAssetInfo(cmdCtx *commandContext, args []string) error {
	jobArgs, wait, err := parseFetchAssetInfoFlags(args)
	if err != nil {
		return err
	}
	return submitAndWatch(cmdCtx, jobArgs, wait)
}

func runCalculatePerformance(cmdCtx *commandContext, args []string) error {
	jobArgs, wait, err := parseCalculatePerformanceFlags(args)
	if err != nil {
		return err
	}
	return submitAndWatch(cmdCtx, jobArgs, wait)
}

func runCreateSnapshot(cmdCtx *commandContext, args []string) error {
	jobArgs, wait, err := parseCreateSnapshotFlags(args)
	if err != nil {
		return err
	}
	return submitAndWatch(cmdCtx, jobArgs, wait)
}

// runSubmit submits by kind name, for kinds added without a dedicated command.
func runSubmit(cmdCtx *commandContext, args []string) error {
	var wait waitOptions
	fs := newFlagSet("submit")
	bindWaitFlags(fs, &wait)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: submit [flags] <kind> [json args]")
	}
	raw := json.RawMessage("{}")
	if fs.NArg() > 1 {
		raw = json.RawMessage(fs.Arg(1))
	}

	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		id, err := app.Manager.SubmitNamed(cmdCtx.Ctx, fs.Arg(0), raw)
		if err != nil {
			return err
		}
		return watch(cmdCtx, app.Manager, id, wait)
	})
}

func submitAndWatch(cmdCtx *commandContext, args core.Args, wait waitOptions) error {
	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		id, err := app.Manager.Submit(cmdCtx.Ctx, args)
		if err != nil {
			return err
		}
		return watch(cmdCtx, app.Manager, id, wait)
	})
}

func watch(cmdCtx *commandContext, m *manager.Manager, id string, wait waitOptions) error {
	if err := writef(cmdCtx.Out, "job_id: %s\n", id); err != nil {
		return err
	}
	if !wait.Wait {
		return nil
	}

	p := &progressPrinter{w: cmdCtx.Out}
	report, done := m.Watch(cmdCtx.Ctx, id, wait.Interval, wait.MaxWait, p.print)
	if p.err != nil {
		return p.err
	}
	if !done {
		return writef(cmdCtx.Out, "still %s after %s; check later with: status %s\n", report.State, wait.MaxWait, id)
	}
	if err := printResult(cmdCtx.Out, report); err != nil {
		return err
	}
	if report.State != core.StateSuccess {
		return fmt.Errorf("job %s finished %s", id, report.State)
	}
	return nil
}

// progressPrinter writes one line per change in state or progress.
type progressPrinter struct {
	w    io.Writer
	last string
	err  error
}

func (p *progressPrinter) print(r manager.StatusReport) {
	line := progressLine(r)
	if line == p.last || p.err != nil {
		return
	}
	p.last = line
	p.err = writef(p.w, "%s\n", line)
}

func progressLine(r manager.StatusReport) string {
	if r.Unavailable != "" {
		return "status unavailable: " + r.Unavailable
	}
	if r.Progress == nil {
		return string(r.State)
	}
	line := fmt.Sprintf("%s %d/%d", r.State, r.Progress.Current, r.Progress.Total)
	if r.Progress.Status != "" {
		line += " " + r.Progress.Status
	}
	return line
}

func printResult(w io.Writer, r manager.StatusReport) error {
	if r.Error != "" {
		return writef(w, "error: %s\n", r.Error)
	}
	if len(r.Result) == 0 {
		return nil
	}
	out, err := json.MarshalIndent(r.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	return writef(w, "%s\n", out)
}
