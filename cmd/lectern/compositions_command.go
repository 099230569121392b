package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lectern/internal/compositions"
)

func newCompositionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compositions",
		Short: "Bundle the project and list its compositions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}
			bundle, err := deps.Compositions.Resolve(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, bundle)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serve URL: %s\n", bundle.ServeURL)
			fmt.Fprintln(cmd.OutOrStdout(), compositionsTable(bundle.Compositions))
			return nil
		},
	}
}

func compositionsTable(list []compositions.Composition) string {
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		seconds := 0.0
		if c.FPS > 0 {
			seconds = float64(c.DurationInFrames) / float64(c.FPS)
		}
		rows = append(rows, []string{
			c.ID,
			fmt.Sprintf("%dx%d", c.Width, c.Height),
			strconv.Itoa(c.DurationInFrames),
			strconv.Itoa(c.FPS),
			fmt.Sprintf("%.1fs", seconds),
		})
	}
	return renderTable(
		[]string{"ID", "Size", "Frames", "FPS", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}
