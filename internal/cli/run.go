package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hupe1980/themesubst/internal/config"
	"github.com/hupe1980/themesubst/internal/logging"
	"github.com/hupe1980/themesubst/internal/output"
	"github.com/hupe1980/themesubst/internal/resolve"
	"github.com/hupe1980/themesubst/internal/substitute"
	"github.com/hupe1980/themesubst/internal/watch"
)

type runOptions struct {
	template  string
	variables string
	output    string

	once    bool
	initial bool
}

func registerRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.variables, "variables", "v", "", "variables file (default: variables.toml next to the template)")
	f.StringVarP(&opts.output, "output", "o", "", "output file, - for stdout (default: $XDG_CONFIG_HOME/zed/themes/<name>.json)")
	f.BoolVar(&opts.once, "once", false, "render once and exit without watching")
	f.BoolVar(&opts.initial, "initial", false, "render once at startup, then watch")

	// Bound to the config; read back through config.FromContext.
	f.Bool("diff", false, "print a unified diff of every output change to stderr")
	f.String("backend", config.BackendAuto, "watch backend: auto, inotify, fsnotify")
	f.Duration("settle", config.DefaultSettle, "quiet period before the fsnotify backend reports a write as finished")
}

func run(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	paths, err := resolve.Resolve(resolve.Args{
		Template:  opts.template,
		Variables: opts.variables,
		Output:    opts.output,
	})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	logger.Debug("resolved paths",
		slog.String("template", paths.Template),
		slog.String("variables", paths.Variables),
		slog.String("output", paths.Output),
	)

	engine := newEngine(cmd, cfg, logger, paths)

	if opts.once || opts.initial {
		if _, err := engine.Run(ctx); err != nil {
			return err
		}

		if opts.once {
			return nil
		}
	}

	watchOpts := watch.DefaultOptions()
	watchOpts.Backend = cfg.Backend
	watchOpts.Settle = cfg.Settle
	watchOpts.Logger = logging.Component(logger, "watch")
	watchOpts.Targets = []watch.Target{
		{Path: paths.Template, Recursive: true},
		{Path: paths.Variables},
	}

	return watch.Run(ctx, watchOpts, func(ctx context.Context, _ watch.Event) error {
		_, err := engine.Run(ctx)
		return err
	})
}

func newEngine(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, paths *resolve.Paths) *substitute.Engine {
	var w output.Writer
	if paths.ToStdout() {
		w = output.NewStdoutWriter(cmd.OutOrStdout())
	} else {
		w = output.NewFileWriter(paths.Output, output.WithLogger(logger))
	}

	engine := &substitute.Engine{
		TemplatePath:  paths.Template,
		VariablesPath: paths.Variables,
		Writer:        w,
		Logger:        logging.Component(logger, "substitute"),
	}

	if cfg.Diff {
		errOut := cmd.ErrOrStderr()
		engine.DiffOut = errOut
		engine.DiffColor = !cfg.NoColor && isTerminal(errOut)
	}

	return engine
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

