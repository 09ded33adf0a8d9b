// Package substitute renders a template by replacing $key placeholders with
// the colors of a variables file and writes the result.
//
// Replacement is a plain sequential substring replace, one pass per key in
// ascending key order. A value that itself contains "$other" is replaced
// again when "other" sorts after the key that inserted it, and a key that is
// a prefix of another ("$bg" and "$bg_alt") rewrites the longer placeholder
// first if it sorts first.
package substitute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/themesubst/internal/diff"
	"github.com/hupe1980/themesubst/internal/logging"
	"github.com/hupe1980/themesubst/internal/output"
	"github.com/hupe1980/themesubst/internal/variables"
)

// ErrWrite marks failures to write the output. Every other error returned
// by Engine.Run comes from reading or parsing the inputs.
var ErrWrite = errors.New("writing output")

// Apply replaces every placeholder of every color in content.
// It returns the new content and the number of replaced placeholders.
func Apply(content string, colors []variables.Color) (string, int) {
	total := 0

	for _, c := range colors {
		token := c.Placeholder()

		n := strings.Count(content, token)
		if n == 0 {
			continue
		}

		content = strings.ReplaceAll(content, token, c.Value)
		total += n
	}

	return content, total
}

// Result describes one completed run.
type Result struct {
	Target       string
	Replacements int
	Skipped      []string
	Bytes        int
	Duration     time.Duration

	// Diff is set when the run compared against the previous file output.
	Diff *diff.Result
}

// Engine re-renders the output from the template and variables files.
// Inputs are read fresh on every run.
type Engine struct {
	TemplatePath  string
	VariablesPath string
	Writer        output.Writer

	// DiffOut receives a unified diff of every change to a file output.
	// Nil disables diffing.
	DiffOut   io.Writer
	DiffColor bool

	Logger *slog.Logger
}

// Run reads both inputs, substitutes and writes the output.
func (e *Engine) Run(_ context.Context) (*Result, error) {
	start := time.Now()
	logger := e.logger()

	doc, err := variables.Load(e.VariablesPath)
	if err != nil {
		return nil, err
	}

	tmpl, err := os.ReadFile(e.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}

	if !doc.HasColors {
		logger.Warn("variables file has no colors table, copying template unchanged",
			slog.String("variables", e.VariablesPath))
	}

	if len(doc.Skipped) > 0 {
		logger.Debug("skipping non-string colors", slog.Any("keys", doc.Skipped))
	}

	content, n := Apply(string(tmpl), doc.Colors)

	var changes *diff.Result
	if e.DiffOut != nil {
		changes = e.writeDiff(content)
	}

	if err := e.Writer.Write([]byte(content)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	res := &Result{
		Target:       e.Writer.Target(),
		Replacements: n,
		Skipped:      doc.Skipped,
		Bytes:        len(content),
		Duration:     time.Since(start),
		Diff:         changes,
	}

	attrs := []any{
		slog.String("output", res.Target),
		slog.Int("replacements", res.Replacements),
		logging.Duration("took", res.Duration),
	}

	if changes != nil {
		attrs = append(attrs, slog.Int("added", changes.Added), slog.Int("removed", changes.Removed))
	}

	logger.Info("wrote changes", attrs...)

	return res, nil
}

// writeDiff compares against what is on disk and returns nil when no diff
// was made. Diffing is best effort and never fails the run.
func (e *Engine) writeDiff(content string) *diff.Result {
	fw, ok := e.Writer.(*output.FileWriter)
	if !ok {
		return nil
	}

	prev, err := fw.Current()
	if err != nil {
		e.logger().Warn("cannot diff output", slog.String("error", err.Error()))
		return nil
	}

	opts := diff.DefaultOptions()
	opts.OldLabel = fw.Target()
	opts.NewLabel = fw.Target() + " (generated)"

	res, err := diff.Compute(string(prev), content, opts)
	if err != nil {
		e.logger().Warn("cannot diff output", slog.String("error", err.Error()))
		return nil
	}

	diff.Write(e.DiffOut, res, e.DiffColor)

	return res
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}

	return e.Logger
}
