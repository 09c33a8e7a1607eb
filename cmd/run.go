package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gennaro-ai/gennaro/internal/broadcast"
	"github.com/gennaro-ai/gennaro/internal/engine"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

func runCmd() *cobra.Command {
	var (
		input      string
		workflowID string
		timeout    time.Duration
		jsonOut    bool
		showEvents bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Execute a workflow definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, err := loadConfig()
			if err != nil {
				return err
			}

			def, err := workflow.LoadFile(args[0])
			if err != nil {
				return err
			}
			if workflowID == "" {
				workflowID = uuid.NewString()
			}
			if timeout > 0 {
				cfg.RunTimeout = timeout
			}

			var b broadcast.Broadcaster = broadcast.Nop
			if showEvents {
				enc := json.NewEncoder(os.Stderr)
				b = broadcast.Func(func(_ context.Context, ev broadcast.Event) error {
					return enc.Encode(ev)
				})
			}

			opts, cleanup := engineOptions(ctx, cfg, b)
			defer cleanup()
			opts = append(opts, engine.WithWorkflowID(workflowID))

			e := engine.New(def, opts...)
			results := e.Run(ctx, input)

			if e.Status() == engine.StatusError {
				fmt.Fprintf(os.Stderr, "workflow failed: %s\n", e.Err())
			}
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"workflow_id": workflowID,
					"status":      e.Status(),
					"error":       e.Err(),
					"results":     results,
				})
			}
			for _, n := range def.Nodes {
				if n.Type == workflow.NodeTypeOutput {
					fmt.Println(results[n.ID])
				}
			}
			if e.Status() == engine.StatusError {
				return fmt.Errorf("workflow run failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "initial input text")
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "identifier for broadcasts (default random)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the run timeout")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full results map as JSON")
	cmd.Flags().BoolVar(&showEvents, "events", false, "print status and stream events to stderr")
	return cmd
}
