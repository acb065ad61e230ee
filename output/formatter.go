// Package output provides formatters for rendering query results to
// various output formats.
//
// Currently supported formats:
//   - Table: aligned ASCII table for terminals
//   - JSON Lines: one JSON object per line
//   - CSV: comma-separated values with header row
//
// Example usage:
//
//	formatter := output.NewTableFormatter(os.Stdout)
//	if err := formatter.Format(result); err != nil {
//	    log.Fatal(err)
//	}
package output

import (
	"io"

	"github.com/csvchat/csvchat/dataset"
)

// Formatter defines the interface for output formatters.
//
// Implementers must provide Format to render a result table in the target
// format and SetOutput to change the output destination.
type Formatter interface {
	// Format writes the table in the formatter's specific format
	Format(t *dataset.Table) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// New returns the formatter registered under name: "table", "json", or
// "csv". ok is false for unknown names.
func New(name string, w io.Writer) (Formatter, bool) {
	switch name {
	case "table":
		return NewTableFormatter(w), true
	case "json":
		return NewJSONFormatter(w), true
	case "csv":
		return NewCSVFormatter(w), true
	default:
		return nil, false
	}
}
