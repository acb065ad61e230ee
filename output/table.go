package output

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/csvchat/csvchat/dataset"
)

// TableFormatter renders a result as an aligned ASCII table, the default
// for interactive use.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer.
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format renders the table with a header row. Column names are printed
// as-is, not title-cased, so they stay copy-pastable into follow-up
// queries.
func (t *TableFormatter) Format(tbl *dataset.Table) error {
	w := tablewriter.NewWriter(t.writer)
	w.SetHeader(tbl.Columns)
	w.SetAutoFormatHeaders(false)
	w.SetAutoWrapText(false)

	for _, row := range tbl.Rows {
		record := make([]string, len(tbl.Columns))
		for i, col := range tbl.Columns {
			record[i] = dataset.FormatValue(row[col])
		}
		w.Append(record)
	}
	w.Render()
	return nil
}
