package output

import (
	"encoding/json"
	"io"

	"github.com/csvchat/csvchat/dataset"
)

// JSONFormatter outputs a table as JSON Lines.
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer.
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row, with keys limited to the table's
// visible columns. Dates render as YYYY-MM-DD strings.
func (j *JSONFormatter) Format(t *dataset.Table) error {
	encoder := json.NewEncoder(j.writer)
	for _, row := range t.Rows {
		obj := make(map[string]interface{}, len(t.Columns))
		for _, col := range t.Columns {
			v := row[col]
			if t.IsDate(col) && v != nil {
				obj[col] = dataset.FormatValue(v)
			} else {
				obj[col] = v
			}
		}
		if err := encoder.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}
