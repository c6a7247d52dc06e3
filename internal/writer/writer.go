package writer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

// Writer renders a parsed statement.
type Writer interface {
	Write(out io.Writer, result *models.StatementResult) error
	ContentType() string
}

// ForFormat returns the writer for "json" (default) or "csv".
func ForFormat(format string, includeHeader bool) (Writer, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return &JSONWriter{Indent: "  "}, nil
	case "csv":
		return &CSVWriter{IncludeHeader: includeHeader}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected json or csv)", format)
	}
}

// WriteToFile renders result with w into a new file at path.
func WriteToFile(w Writer, path string, result *models.StatementResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := w.Write(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
