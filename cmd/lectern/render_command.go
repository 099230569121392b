package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/compositions"
	"lectern/internal/pkg/errors"
	"lectern/internal/render"
)

type targetFlags struct {
	region   string
	function string
	bucket   string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.region, "region", "", "Render region (default from config)")
	cmd.Flags().StringVar(&f.function, "function", "", "Render function name (default from config)")
	cmd.Flags().StringVar(&f.bucket, "bucket", "", "Render bucket (default from config)")
}

func (f *targetFlags) target() render.Target {
	return render.Target{Region: f.region, Function: f.function, Bucket: f.bucket}
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		target    targetFlags
		propsJSON string
		propsFile string
		serveURL  string
	)

	cmd := &cobra.Command{
		Use:   "render <composition-id>",
		Short: "Dispatch a render of one composition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProps(propsJSON, propsFile)
			if err != nil {
				return err
			}
			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}

			var job render.RenderJob
			if serveURL != "" {
				job, err = deps.Renders.DispatchBundle(cmd.Context(), compositions.Bundle{ServeURL: serveURL}, args[0], props, target.target())
			} else {
				job, err = deps.Renders.Dispatch(cmd.Context(), args[0], props, target.target())
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Render dispatched: %s\n", job.ID)
			fmt.Fprintf(out, "Composition: %s\n", job.CompositionID)
			fmt.Fprintf(out, "Target: %s / %s / %s\n", job.Target.Region, job.Target.Function, job.Target.Bucket)
			fmt.Fprintf(out, "Follow with: lectern progress %s --bucket %s --function %s --watch\n",
				job.ID, job.Target.Bucket, job.Target.Function)
			return nil
		},
	}

	target.register(cmd)
	cmd.Flags().StringVar(&propsJSON, "props", "", "Input props as a JSON object")
	cmd.Flags().StringVar(&propsFile, "props-file", "", "Read input props from a JSON file")
	cmd.Flags().StringVar(&serveURL, "serve-url", "", "Reuse an existing bundle instead of building one")
	return cmd
}

func parseProps(inline, file string) (map[string]any, error) {
	if inline != "" && file != "" {
		return nil, errors.Validation("use either --props or --props-file")
	}
	raw := []byte(strings.TrimSpace(inline))
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrap(err, "cli.props", "read props file")
		}
		raw = b
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, errors.ValidationField("props", "input props must be a JSON object: "+err.Error())
	}
	if props == nil {
		props = map[string]any{}
	}
	return props, nil
}
