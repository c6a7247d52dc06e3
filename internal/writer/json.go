package writer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

// JSONWriter emits the statement as a single JSON document. Non-ASCII text
// is written as-is.
type JSONWriter struct {
	Indent string
}

func (w *JSONWriter) ContentType() string {
	return "application/json; charset=utf-8"
}

func (w *JSONWriter) Write(out io.Writer, result *models.StatementResult) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	if w.Indent != "" {
		enc.SetIndent("", w.Indent)
	}
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode statement: %w", err)
	}
	return nil
}
