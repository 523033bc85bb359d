package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"slidecast/internal/daemon"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and render job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := "stopped"
			if status.Running {
				state = "running"
			}
			fmt.Fprintf(out, "Daemon:   %s (pid %d)\n", state, status.PID)
			fmt.Fprintf(out, "Sessions: %d free / %d busy of %d, %d waiting\n",
				status.Pool.Free, status.Pool.Busy, status.Pool.Size, status.Pool.Waiting)
			fmt.Fprintf(out, "Jobs:     %d queued, %d running, %d completed, %d failed\n",
				status.Jobs[daemon.StatusQueued], status.Jobs[daemon.StatusRunning],
				status.Jobs[daemon.StatusCompleted], status.Jobs[daemon.StatusFailed])

			if len(status.Recent) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderJobTable(status.Recent, isTerminal(out)))
			return nil
		},
	}
}

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func renderJobTable(records []daemon.JobRecord, colorize bool) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		output := ""
		frames := ""
		if rec.Result != nil {
			output = rec.Result.OutputPath
			frames = fmt.Sprintf("%d", rec.Result.FrameCount)
		}
		if rec.Error != "" {
			output = rec.Error
		}
		status := string(rec.Status)
		if colorize {
			switch rec.Status {
			case daemon.StatusCompleted:
				status = ansiGreen + status + ansiReset
			case daemon.StatusFailed:
				status = ansiRed + status + ansiReset
			}
		}
		rows = append(rows, []string{
			rec.ID,
			rec.SlideID,
			status,
			frames,
			rec.CreatedAt.Format(time.TimeOnly),
			output,
		})
	}
	return renderTable(
		[]string{"ID", "Slide", "Status", "Frames", "Submitted", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
