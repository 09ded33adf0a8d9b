// Package diff renders unified diffs between the previous and the newly
// generated output.
package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Result holds a computed unified diff.
type Result struct {
	Unified string
	Changed bool
	// Added and Removed count changed lines, excluding the file headers.
	Added   int
	Removed int
}

// Options configures diff computation.
type Options struct {
	OldLabel string
	NewLabel string
	Context  int
}

// DefaultOptions labels the sides "previous" and "generated".
func DefaultOptions() Options {
	return Options{
		OldLabel: "previous",
		NewLabel: "generated",
		Context:  3,
	}
}

// Compute builds a unified diff between two texts.
func Compute(oldText, newText string, opts Options) (*Result, error) {
	ud := difflib.UnifiedDiff{
		A:        splitLines(oldText),
		B:        splitLines(newText),
		FromFile: opts.OldLabel,
		ToFile:   opts.NewLabel,
		Context:  opts.Context,
	}

	unified, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	res := &Result{Unified: unified, Changed: unified != ""}

	lines := strings.Split(unified, "\n")
	if len(lines) > 2 {
		lines = lines[2:] // file headers
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "+"):
			res.Added++
		case strings.HasPrefix(line, "-"):
			res.Removed++
		}
	}

	return res, nil
}

// Write prints the diff to w, with ANSI colors when color is set.
func Write(w io.Writer, res *Result, color bool) {
	if !res.Changed {
		_, _ = fmt.Fprintln(w, "output unchanged")
		return
	}

	for _, line := range strings.Split(strings.TrimSuffix(res.Unified, "\n"), "\n") {
		if color {
			writeColorLine(w, line)
		} else {
			_, _ = fmt.Fprintln(w, line)
		}
	}
}

func writeColorLine(w io.Writer, line string) {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		cyan  = "\033[36m"
		bold  = "\033[1m"
		reset = "\033[0m"
	)

	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", bold, line, reset)
	case strings.HasPrefix(line, "@@"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", cyan, line, reset)
	case strings.HasPrefix(line, "-"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", red, line, reset)
	case strings.HasPrefix(line, "+"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", green, line, reset)
	default:
		_, _ = fmt.Fprintln(w, line)
	}
}

// splitLines returns the lines of s, each terminated by a newline as
// difflib expects. A missing final newline is added.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}

	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}

	lines[len(lines)-1] += "\n"

	return lines
}
