package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jdziat/portfolio-jobs/internal/bootstrap"
)

func runWorker(cmdCtx *commandContext, _ []string) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(cmdCtx, bootstrap.RoleWorker, func(app *bootstrap.App) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return app.NewWorker().Start(gctx) })
		g.Go(func() error { return app.NewReaper().Start(gctx) })
		g.Go(func() error { return app.NewPurger().Start(gctx) })
		return ignoreCanceled(g.Wait())
	})
}

func runScheduler(cmdCtx *commandContext, _ []string) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(cmdCtx, bootstrap.RoleClient, func(app *bootstrap.App) error {
		s, err := app.NewScheduler()
		if err != nil {
			return err
		}
		return ignoreCanceled(s.Run(ctx))
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
