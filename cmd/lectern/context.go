package main

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lectern/internal/app"
	"lectern/internal/config"
	"lectern/internal/pkg/logger"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	depsOnce sync.Once
	deps     *app.Deps
	depsErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		config.LoadDotEnv()
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	level := "warn"
	if c.logLevelFlag != nil && *c.logLevelFlag != "" {
		level = *c.logLevelFlag
	}
	return logger.New(logger.Config{Level: level, Format: "text", ServiceName: "lectern-cli"})
}

// ensureDeps builds the services on first use so commands that need none
// of them (gdrive-auth) never touch storage or the ledger.
func (c *commandContext) ensureDeps(ctx context.Context) (*app.Deps, error) {
	c.depsOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.depsErr = err
			return
		}
		c.deps, c.depsErr = app.Build(ctx, cfg, c.logger())
	})
	return c.deps, c.depsErr
}

func (c *commandContext) close(ctx context.Context) {
	if c.deps != nil {
		c.deps.Close(ctx)
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
