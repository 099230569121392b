package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/render"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var (
		target   targetFlags
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "progress <render-id>",
		Short: "Show render progress, optionally polling until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}
			poll := func() (render.Progress, error) {
				return deps.Renders.PollProgress(cmd.Context(), args[0], target.target())
			}
			if !watch {
				p, err := poll()
				if err != nil {
					return err
				}
				return printProgress(cmd, ctx.jsonOutput(), p)
			}
			return watchProgress(cmd, ctx.jsonOutput(), interval, poll)
		},
	}

	target.register(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the render is done")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Polling interval with --watch")
	return cmd
}

// watchProgress polls at the given cadence until the render is done or the
// command context is cancelled.
func watchProgress(cmd *cobra.Command, asJSON bool, interval time.Duration, poll func() (render.Progress, error)) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := poll()
		if err != nil {
			return err
		}
		if err := printProgress(cmd, asJSON, p); err != nil {
			return err
		}
		if p.Done {
			if p.FatalErrorEncountered {
				return fmt.Errorf("render failed: %s", p.Error)
			}
			return nil
		}

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func printProgress(cmd *cobra.Command, asJSON bool, p render.Progress) error {
	if asJSON {
		return writeJSON(cmd, p)
	}
	writeProgressLine(cmd.OutOrStdout(), p)
	return nil
}

func writeProgressLine(w io.Writer, p render.Progress) {
	line := fmt.Sprintf("%-11s %5.1f%%  elapsed %.1fs", p.State(), p.OverallProgress*100, p.ElapsedSeconds)
	if p.Costs.DisplayCost != "" {
		line += "  cost " + p.Costs.DisplayCost
	}
	if p.OutputFile != nil {
		line += "  output " + *p.OutputFile
	}
	if p.Error != "" {
		line += "  error: " + p.Error
	}
	fmt.Fprintln(w, line)
}
