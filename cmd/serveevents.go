package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gennaro-ai/gennaro/internal/broadcast"
	"github.com/gennaro-ai/gennaro/internal/engine"
	"github.com/gennaro-ai/gennaro/internal/logger"
	"github.com/gennaro-ai/gennaro/internal/scheduler"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// serveEventsCmd runs the scheduler with a websocket hub so subscribers
// can watch status and token events of scheduled runs live.
func serveEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-events",
		Short: "Serve workflow events over websocket while running the scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, ctx, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openJobStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			hub := broadcast.NewHub()
			opts, cleanup := engineOptions(ctx, cfg, hub)
			defer cleanup()

			run := func(runCtx context.Context, job scheduler.Job, def *workflow.Definition) {
				runOpts := append([]engine.Option{engine.WithWorkflowID(job.WorkflowID)}, opts...)
				engine.New(def, runOpts...).Run(runCtx, job.InputText)
			}
			s := scheduler.NewScheduler(store, scheduler.DirSource{Root: cfg.WorkflowsDir}, run,
				scheduler.WithRunTimeout(cfg.RunTimeout))

			mux := http.NewServeMux()
			mux.Handle("/ws/events", hub)

			srv := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go s.Start(ctx)
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info(ctx, "Event server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
