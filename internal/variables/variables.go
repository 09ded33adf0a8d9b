// Package variables loads the variables file and extracts its colors table.
//
// The file is TOML unless its extension says YAML (.yaml, .yml) or JSON
// (.json). Only the top-level "colors" table is consulted. Entries whose
// value is not a string are recorded as skipped and never substituted.
package variables

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	sigsyaml "sigs.k8s.io/yaml"
)

// ColorsKey names the table that drives substitution.
const ColorsKey = "colors"

// Format is the syntax of a variables file.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrParse wraps every syntax or structure error of a variables document.
var ErrParse = errors.New("parsing variables")

// Color is a single string entry of the colors table.
type Color struct {
	Key   string
	Value string
}

// Placeholder returns the template token replaced by this color.
func (c Color) Placeholder() string {
	return "$" + c.Key
}

// Document is the part of a variables file used for substitution.
type Document struct {
	// Colors holds the string entries in ascending key order.
	Colors []Color

	// Skipped lists colors keys whose value is not a string.
	Skipped []string

	// HasColors is false when the document has no colors table, or when
	// "colors" is not a table.
	HasColors bool
}

// FormatFor picks the format from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatTOML
	}
}

// Load reads and parses the variables file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user supplied by design
	if err != nil {
		return nil, fmt.Errorf("reading variables file: %w", err)
	}

	doc, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return doc, nil
}

// Parse decodes data and extracts the colors table.
func Parse(data []byte, format Format) (*Document, error) {
	raw, err := decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w as %s: %w", ErrParse, format, err)
	}

	return fromMap(raw), nil
}

func decode(data []byte, format Format) (map[string]any, error) {
	var raw map[string]any

	switch format {
	case FormatYAML:
		// Converted through JSON, so non-string mapping keys such as
		// palette shades (50, 100) become strings like in TOML.
		if err := sigsyaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	return raw, nil
}

func fromMap(raw map[string]any) *Document {
	doc := &Document{}

	table, ok := raw[ColorsKey].(map[string]any)
	if !ok {
		return doc
	}

	doc.HasColors = true

	for _, key := range slices.Sorted(maps.Keys(table)) {
		value, isString := table[key].(string)
		if !isString {
			doc.Skipped = append(doc.Skipped, key)
			continue
		}

		doc.Colors = append(doc.Colors, Color{Key: key, Value: value})
	}

	return doc
}
