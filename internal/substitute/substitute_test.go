package substitute

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/themesubst/internal/output"
	"github.com/hupe1980/themesubst/internal/variables"
)

// ---------------------------------------------------------------------------
// Apply
// ---------------------------------------------------------------------------

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		colors   []variables.Color
		want     string
		wantRepl int
	}{
		{
			name:     "missing key left untouched",
			content:  "background: $base; foreground: $text;",
			colors:   []variables.Color{{Key: "base", Value: "#000000"}},
			want:     "background: #000000; foreground: $text;",
			wantRepl: 1,
		},
		{
			name:     "every occurrence replaced",
			content:  `{"a": "$base", "b": "$base", "c": "$base"}`,
			colors:   []variables.Color{{Key: "base", Value: "#111"}},
			want:     `{"a": "#111", "b": "#111", "c": "#111"}`,
			wantRepl: 3,
		},
		{
			name:     "no colors",
			content:  "$base",
			colors:   nil,
			want:     "$base",
			wantRepl: 0,
		},
		{
			name:    "sequential replace reaches inserted text",
			content: "$alias",
			colors: []variables.Color{
				{Key: "alias", Value: "$base"},
				{Key: "base", Value: "#000000"},
			},
			want:     "#000000",
			wantRepl: 2,
		},
		{
			name:    "inserted text of a later key is not revisited",
			content: "$zeta",
			colors: []variables.Color{
				{Key: "base", Value: "#000000"},
				{Key: "zeta", Value: "$base"},
			},
			want:     "$base",
			wantRepl: 1,
		},
		{
			name:    "prefix key rewrites longer placeholder",
			content: "$bg $bg_alt",
			colors: []variables.Color{
				{Key: "bg", Value: "#000"},
				{Key: "bg_alt", Value: "#111"},
			},
			want:     "#000 #000_alt",
			wantRepl: 2,
		},
		{
			name:     "empty value",
			content:  "x$basey",
			colors:   []variables.Color{{Key: "base", Value: ""}},
			want:     "xy",
			wantRepl: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := Apply(tt.content, tt.colors)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRepl, n)
		})
	}
}

func TestApply_IdempotentWithoutTokensInValues(t *testing.T) {
	colors := []variables.Color{
		{Key: "base", Value: "#000000"},
		{Key: "text", Value: "#ffffff"},
	}
	content := "$base $text $other"

	once, _ := Apply(content, colors)
	twice, n := Apply(once, colors)
	assert.Equal(t, once, twice)
	assert.Zero(t, n)
	assert.NotContains(t, once, "$base")
	assert.NotContains(t, once, "$text")
	assert.Contains(t, once, "$other")
}

func TestApply_NotIdempotentWhenValueHasToken(t *testing.T) {
	colors := []variables.Color{{Key: "base", Value: "$base!"}}

	once, _ := Apply("$base", colors)
	twice, _ := Apply(once, colors)
	assert.Equal(t, "$base!", once)
	assert.Equal(t, "$base!!", twice)
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

type fixture struct {
	dir       string
	template  string
	variables string
	output    string
}

func newFixture(t *testing.T, tmpl, vars string) fixture {
	t.Helper()

	dir := t.TempDir()
	f := fixture{
		dir:       dir,
		template:  filepath.Join(dir, "dark.json"),
		variables: filepath.Join(dir, "variables.toml"),
		output:    filepath.Join(dir, "out.json"),
	}

	require.NoError(t, os.WriteFile(f.template, []byte(tmpl), 0o644)) //nolint:gosec // test
	require.NoError(t, os.WriteFile(f.variables, []byte(vars), 0o644)) //nolint:gosec // test

	return f
}

func (f fixture) engine() *Engine {
	return &Engine{
		TemplatePath:  f.template,
		VariablesPath: f.variables,
		Writer:        output.NewFileWriter(f.output),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // test
	require.NoError(t, err)

	return string(data)
}

func TestEngine_Run(t *testing.T) {
	f := newFixture(t,
		"background: $base; foreground: $text;",
		"colors = { base = \"#000000\" }\n",
	)

	res, err := f.engine().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.output, res.Target)
	assert.Equal(t, 1, res.Replacements)
	assert.Equal(t, "background: #000000; foreground: $text;", readFile(t, f.output))
}

func TestEngine_Run_NoColorsCopiesTemplate(t *testing.T) {
	tmpl := "{\n  \"bg\": \"$base\"\n}\n\x00binary\r\n"
	f := newFixture(t, tmpl, "name = \"dark\"\n")

	res, err := f.engine().Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Replacements)
	assert.Equal(t, tmpl, readFile(t, f.output))
}

func TestEngine_Run_NonStringValuesIgnored(t *testing.T) {
	f := newFixture(t, "$base $size", "[colors]\nbase = \"#000\"\nsize = 12\n")

	res, err := f.engine().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"size"}, res.Skipped)
	assert.Equal(t, "#000 $size", readFile(t, f.output))
}

func TestEngine_Run_RereadsInputs(t *testing.T) {
	f := newFixture(t, "$base", "colors = { base = \"#000\" }\n")
	e := f.engine()

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#000", readFile(t, f.output))

	require.NoError(t, os.WriteFile(f.variables, []byte("colors = { base = \"#fff\" }\n"), 0o644)) //nolint:gosec // test

	_, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#fff", readFile(t, f.output))
}

func TestEngine_Run_InvalidVariables(t *testing.T) {
	f := newFixture(t, "$base", "colors = {")

	_, err := f.engine().Run(context.Background())
	require.ErrorIs(t, err, variables.ErrParse)
	assert.NotErrorIs(t, err, ErrWrite)

	_, statErr := os.Stat(f.output)
	assert.True(t, os.IsNotExist(statErr), "no partial output on parse failure")
}

func TestEngine_Run_MissingTemplate(t *testing.T) {
	f := newFixture(t, "$base", "colors = { base = \"#000\" }\n")
	require.NoError(t, os.Remove(f.template))

	_, err := f.engine().Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "reading template file")
	assert.NotErrorIs(t, err, ErrWrite)
}

func TestEngine_Run_MissingVariables(t *testing.T) {
	f := newFixture(t, "$base", "")
	require.NoError(t, os.Remove(f.variables))

	_, err := f.engine().Run(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngine_Run_WriteFailure(t *testing.T) {
	f := newFixture(t, "$base", "colors = { base = \"#000\" }\n")
	e := f.engine()
	e.Writer = output.NewFileWriter(filepath.Join(f.dir, "missing-dir", "out.json"))

	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrWrite)
}

func TestEngine_Run_Stdout(t *testing.T) {
	f := newFixture(t, "fg=$text", "[colors]\ntext = \"#eee\"\n")

	var buf bytes.Buffer
	e := f.engine()
	e.Writer = output.NewStdoutWriter(&buf)
	e.DiffOut = io.Discard

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stdout", res.Target)
	assert.Equal(t, "fg=#eee", buf.String())
}

func TestEngine_Run_Diff(t *testing.T) {
	f := newFixture(t, "bg=$base\n", "colors = { base = \"#000\" }\n")
	require.NoError(t, os.WriteFile(f.output, []byte("bg=#fff\n"), 0o644)) //nolint:gosec // test

	var diffBuf bytes.Buffer
	e := f.engine()
	e.DiffOut = &diffBuf

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, diffBuf.String(), "-bg=#fff")
	assert.Contains(t, diffBuf.String(), "+bg=#000")
	assert.NotContains(t, diffBuf.String(), "\033[")

	diffBuf.Reset()

	_, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "output unchanged\n", diffBuf.String())
}

func TestEngine_Run_DiffCountsLogged(t *testing.T) {
	f := newFixture(t, "bg=$base\nfg=$text\n", "colors = { base = \"#000\", text = \"#eee\" }\n")
	require.NoError(t, os.WriteFile(f.output, []byte("bg=#fff\n"), 0o644)) //nolint:gosec // test

	var logBuf bytes.Buffer
	e := f.engine()
	e.DiffOut = io.Discard
	e.Logger = slog.New(slog.NewJSONHandler(&logBuf, nil))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	assert.Equal(t, 2, res.Diff.Added)
	assert.Equal(t, 1, res.Diff.Removed)

	assert.Contains(t, logBuf.String(), `"msg":"wrote changes"`)
	assert.Contains(t, logBuf.String(), `"added":2`)
	assert.Contains(t, logBuf.String(), `"removed":1`)
}

func TestEngine_Run_NoDiffNoCounts(t *testing.T) {
	f := newFixture(t, "bg=$base\n", "colors = { base = \"#000\" }\n")

	var logBuf bytes.Buffer
	e := f.engine()
	e.Logger = slog.New(slog.NewJSONHandler(&logBuf, nil))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Diff)
	assert.NotContains(t, logBuf.String(), `"added"`)
}

func TestEngine_Run_YAMLVariables(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "dark.json")
	vars := filepath.Join(dir, "palette.yaml")
	out := filepath.Join(dir, "out.json")

	require.NoError(t, os.WriteFile(tmpl, []byte("$base"), 0o644))                       //nolint:gosec // test
	require.NoError(t, os.WriteFile(vars, []byte("colors:\n  base: \"#abc\"\n"), 0o644)) //nolint:gosec // test

	e := &Engine{TemplatePath: tmpl, VariablesPath: vars, Writer: output.NewFileWriter(out)}

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "#abc", readFile(t, out))
}
