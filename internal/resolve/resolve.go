// Package resolve turns the command-line paths into the fully resolved set
// of template, variables and output paths.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// DefaultVariablesName is looked up next to the template when no variables
// file is given.
const DefaultVariablesName = "variables.toml"

// Stdout is the output path that selects standard output instead of a file.
const Stdout = "-"

var (
	// ErrTemplateNotFound is returned when the template is not a regular file.
	ErrTemplateNotFound = errors.New("template file does not exist")

	// ErrDefaultVariablesNotFound is returned when no variables file was given
	// and the default one next to the template is missing.
	ErrDefaultVariablesNotFound = errors.New("default variables file does not exist, please create it")

	// ErrVariablesNotFound is returned when the given variables file is missing.
	ErrVariablesNotFound = errors.New("variables file does not exist")
)

// Args are the paths as given on the command line. Empty Variables and
// Output select the defaults.
type Args struct {
	Template  string
	Variables string
	Output    string
}

// Paths is the resolved configuration. It does not change after startup.
type Paths struct {
	Template  string
	Variables string
	Output    string
}

// ToStdout reports whether the output goes to standard output.
func (p *Paths) ToStdout() bool {
	return p.Output == Stdout
}

// Resolve validates args and fills in default paths.
func Resolve(args Args) (*Paths, error) {
	if !isFile(args.Template) {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, args.Template)
	}

	paths := &Paths{
		Template:  args.Template,
		Variables: args.Variables,
		Output:    args.Output,
	}

	if paths.Variables == "" {
		paths.Variables = DefaultVariablesPath(args.Template)

		if !isFile(paths.Variables) {
			return nil, fmt.Errorf("%w: %q", ErrDefaultVariablesNotFound, paths.Variables)
		}
	} else if !isFile(paths.Variables) {
		return nil, fmt.Errorf("%w: %q", ErrVariablesNotFound, paths.Variables)
	}

	if paths.Output == "" {
		paths.Output = DefaultOutputPath(args.Template)
	}

	return paths, nil
}

// DefaultVariablesPath returns variables.toml in the template's directory.
func DefaultVariablesPath(template string) string {
	return filepath.Join(filepath.Dir(template), DefaultVariablesName)
}

// DefaultOutputPath returns <config home>/zed/themes/<name>.json, where name
// is the template file name with its last extension removed and any
// remaining extension replaced, so both "dark.template" and
// "dark.template.json" become "dark.json".
func DefaultOutputPath(template string) string {
	name := trimExt(trimExt(filepath.Base(template))) + ".json"

	return filepath.Join(xdg.ConfigHome, "zed", "themes", name)
}

// trimExt removes the last extension. A leading dot does not start an
// extension, so ".theme" is returned unchanged.
func trimExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}

	return name
}

func isFile(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
