package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"calcolumn/internal/capture"
	"calcolumn/internal/card"
	appLog "calcolumn/internal/log"
	"calcolumn/internal/web"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard, JSON API and configuration editor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(flags)
			if err != nil {
				return err
			}
			// --listen overrides the config file when provided.
			if listen != "" {
				rt.cfg.Listen = listen
			}
			return rt.serve(cmd.Context(), flags.configPath)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func (rt *runtime) serve(ctx context.Context, configPath string) error {
	server := web.NewServer(web.Options{
		Config:     rt.cfg,
		ConfigPath: configPath,
		Pool:       rt.pool,
		Location:   rt.loc,
	})
	defer server.Close()
	card.Announce(server)

	sched := cron.New(cron.WithLocation(rt.loc))
	if _, err := sched.AddFunc(rt.cfg.StateRefresh, func() { rt.pollState(ctx) }); err != nil {
		return err
	}
	if rt.cfg.Capture.Enabled {
		if _, err := sched.AddFunc(rt.cfg.Capture.Cron, func() { rt.capturePreview(ctx) }); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              rt.cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "listen", "http://"+rt.cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// First state push triggers each card's initial fetch.
	rt.pollState(ctx)
	sched.Start()

	var serveErr error
	select {
	case <-ctx.Done():
		appLog.Info("shutdown requested")
	case serveErr = <-errCh:
	}

	<-sched.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	appLog.Info("calcolumn exiting")
	return serveErr
}

// capturePreview screenshots today's snapshot page to capture.output.
func (rt *runtime) capturePreview(ctx context.Context) {
	err := capture.ToFile(ctx, capture.Options{
		URL:    snapshotURL(rt.cfg),
		Width:  rt.cfg.Capture.Width,
		Height: rt.cfg.Capture.Height,
	}, rt.cfg.Capture.Output)
	if err != nil {
		appLog.Error("preview capture failed", err)
	}
}
