// Package cli implements the cobra command for themesubst.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/themesubst/internal/config"
	"github.com/hupe1980/themesubst/internal/logging"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command, runs it, and returns the exit code.
// It is the only place errors are reported to the user.
func Execute() int {
	return execute(context.Background(), NewRootCommand())
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	slog.Error(err.Error())

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return 1
}

// NewRootCommand constructs the top-level cobra.Command.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "themesubst <template>",
		Short: "Regenerate a theme file whenever its template or variables change",
		Long: `themesubst watches a template file and a variables file and, every time
one of them is closed after writing, writes a new output file in which each
$key placeholder of the template is replaced by the value of key in the
[colors] table of the variables file.

The variables file defaults to variables.toml next to the template and may
also be YAML or JSON. The output defaults to
$XDG_CONFIG_HOME/zed/themes/<template name>.json; use -o - for stdout.`,
		Example: `  themesubst theme.json
  themesubst theme.json -v dark.toml -o ~/.config/zed/themes/dark.json
  themesubst theme.json --once -o -`,
		Args:          exactArgs(1),
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("backend", cfg.Backend),
				slog.String("configFile", cfg.ConfigFile),
			)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.template = args[0]

			return run(cmd.Context(), cmd, opts)
		},
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .themesubst.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")

	registerRunFlags(cmd, opts)

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	return cmd
}

// exactArgs is cobra.ExactArgs reporting a usage error with exit code 2.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &ExitError{Code: 2, Err: err}
		}

		return nil
	}
}
