package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// Writer is a destination for rendered output.
type Writer interface {
	// Write replaces the destination's content with data.
	Write(data []byte) error

	// Target describes the destination for log lines.
	Target() string
}

// StdoutWriter writes rendered output to a stream, normally os.Stdout.
type StdoutWriter struct {
	out io.Writer
}

// NewStdoutWriter creates a writer that sends output to w.
// If w is nil, os.Stdout is used.
func NewStdoutWriter(w io.Writer) *StdoutWriter {
	if w == nil {
		w = os.Stdout
	}

	return &StdoutWriter{out: w}
}

// Write sends data to the stream.
func (sw *StdoutWriter) Write(data []byte) error {
	if _, err := sw.out.Write(data); err != nil {
		return fmt.Errorf("writing to stdout: %w", err)
	}

	return nil
}

// Target implements Writer.
func (sw *StdoutWriter) Target() string {
	return "stdout"
}

// FileWriter overwrites a single file. Parent directories must exist.
type FileWriter struct {
	path   string
	perm   os.FileMode
	logger *slog.Logger
}

// FileWriterOption configures a FileWriter.
type FileWriterOption func(*FileWriter)

// WithPermissions overrides the default file permissions (0644) used when
// the file is created.
func WithPermissions(perm os.FileMode) FileWriterOption {
	return func(fw *FileWriter) {
		fw.perm = perm
	}
}

// WithLogger sets a logger for the FileWriter.
func WithLogger(logger *slog.Logger) FileWriterOption {
	return func(fw *FileWriter) {
		fw.logger = logger
	}
}

// NewFileWriter creates a writer for the file at path.
func NewFileWriter(path string, opts ...FileWriterOption) *FileWriter {
	fw := &FileWriter{
		path:   path,
		perm:   0o644,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(fw)
	}

	return fw
}

// Write truncates the file and writes data. It is a plain overwrite, not an
// atomic replace.
func (fw *FileWriter) Write(data []byte) error {
	if _, err := os.Stat(fw.path); err == nil {
		fw.logger.Debug("overwriting existing file", slog.String("path", fw.path))
	}

	if err := os.WriteFile(fw.path, data, fw.perm); err != nil {
		return fmt.Errorf("writing file %s: %w", fw.path, err)
	}

	return nil
}

// Current returns the file's content, or nil when it does not exist yet.
func (fw *FileWriter) Current() ([]byte, error) {
	data, err := os.ReadFile(fw.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", fw.path, err)
	}

	return data, nil
}

// Target implements Writer.
func (fw *FileWriter) Target() string {
	return fw.path
}
