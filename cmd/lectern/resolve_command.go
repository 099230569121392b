package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <media-id>",
		Short: "Find which bucket holds a media file and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}
			obj, err := deps.Resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, obj)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n%s\n", obj.Bucket, obj.ID, obj.PublicURL)
			return nil
		},
	}
}
