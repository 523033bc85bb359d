package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"slidecast/internal/daemon"
	"slidecast/internal/render"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "render <job.json>",
		Short: "Submit a render job to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read job file: %w", err)
			}
			var job render.Job
			if err := json.Unmarshal(data, &job); err != nil {
				return fmt.Errorf("parse job file: %w", err)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			id, err := client.Submit(cmd.Context(), &job)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted render job %s\n", id)
			if !wait {
				return nil
			}

			for {
				record, err := client.Job(cmd.Context(), id)
				if err != nil {
					return err
				}
				switch record.Status {
				case daemon.StatusCompleted:
					fmt.Fprintf(out, "Completed: %s (%d frames, %.2fs)\n",
						record.Result.OutputPath, record.Result.FrameCount, record.Result.Duration)
					return nil
				case daemon.StatusFailed:
					return fmt.Errorf("render failed (%s): %s", record.ErrorClass, record.Error)
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(pollInterval):
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job reaches a terminal state")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 500*time.Millisecond, "Polling interval used with --wait")
	return cmd
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show one render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			record, err := client.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(record)
		},
	}
}
