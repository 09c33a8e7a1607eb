package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gennaro-ai/gennaro/internal/broadcast"
	"github.com/gennaro-ai/gennaro/internal/config"
	"github.com/gennaro-ai/gennaro/internal/engine"
	"github.com/gennaro-ai/gennaro/internal/scheduler"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage and run scheduled workflow jobs",
	}
	cmd.AddCommand(scheduleStartCmd())
	cmd.AddCommand(scheduleAddCmd())
	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(scheduleRemoveCmd())
	return cmd
}

func openJobStore(cfg *config.Config) (*scheduler.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return scheduler.OpenStore(cfg.JobStorePath())
}

func scheduleStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the scheduler loop until interrupted",
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

			opts, cleanup := engineOptions(ctx, cfg, broadcast.Nop)
			defer cleanup()

			run := func(runCtx context.Context, job scheduler.Job, def *workflow.Definition) {
				runOpts := append([]engine.Option{engine.WithWorkflowID(job.WorkflowID)}, opts...)
				engine.New(def, runOpts...).Run(runCtx, job.InputText)
			}

			s := scheduler.NewScheduler(store, scheduler.DirSource{Root: cfg.WorkflowsDir}, run,
				scheduler.WithRunTimeout(cfg.RunTimeout))

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			s.Start(ctx)
			return nil
		},
	}
}

func scheduleAddCmd() *cobra.Command {
	var (
		cronExpr string
		interval int
		input    string
		disabled bool
	)
	cmd := &cobra.Command{
		Use:   "add <workflow-id>",
		Short: "Add a scheduled job for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openJobStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			job := &scheduler.Job{
				WorkflowID:      args[0],
				CronExpr:        cronExpr,
				IntervalSeconds: interval,
				InputText:       input,
				Enabled:         !disabled,
			}
			if err := store.Add(ctx, job); err != nil {
				return err
			}
			fmt.Println(job.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "", "5-field cron expression")
	cmd.Flags().IntVar(&interval, "every", 0, "interval in seconds")
	cmd.Flags().StringVarP(&input, "input", "i", "", "initial input text for each run")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the job disabled")
	return cmd
}

func scheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
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

			jobs, err := store.List(ctx)
			if err != nil {
				return err
			}
			fmt.Println(renderJobTable(jobs))
			return nil
		},
	}
}

var jobHeader = table.Row{
	"ID",
	"Workflow",
	"Schedule",
	"Enabled",
	"Last Run",
}

func renderJobTable(jobs []scheduler.Job) string {
	jobTable := table.NewWriter()
	jobTable.AppendHeader(jobHeader)
	for _, j := range jobs {
		schedule := j.CronExpr
		if j.IntervalSeconds > 0 {
			schedule = fmt.Sprintf("every %ds", j.IntervalSeconds)
		}
		lastRun := "-"
		if j.LastRun != nil {
			lastRun = j.LastRun.Format(time.RFC3339)
		}
		jobTable.AppendRow(table.Row{j.ID, j.WorkflowID, schedule, j.Enabled, lastRun})
	}
	return jobTable.Render()
}

func scheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openJobStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(ctx, args[0])
		},
	}
}
