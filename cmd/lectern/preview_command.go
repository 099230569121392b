package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var voice string

	cmd := &cobra.Command{
		Use:   "preview <text>...",
		Short: "Synthesize a speech preview and upload it to the audios bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}
			p, err := deps.Speech.SynthesizePreview(cmd.Context(), strings.Join(args, " "), voice)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n%s\n", p.ObjectID, p.Size, p.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "Voice id (default from config)")
	return cmd
}
