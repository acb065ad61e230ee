// Package dataset provides the in-memory table model and dataset loaders.
//
// A Table is an ordered collection of named columns over rows stored as
// maps. Each column has one semantic type (string, numeric, date, bool)
// inferred at load time. Tables are treated as immutable by consumers:
// operations that change shape return a new Table and never modify the
// receiver's rows.
//
// Example usage:
//
//	tbl, err := dataset.Load("data/customers.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(tbl.Columns, tbl.Len())
package dataset

import (
	"fmt"
	"strconv"
	"time"
)

// ColumnType is the semantic type of a column's values.
type ColumnType int

const (
	// String columns hold free text.
	String ColumnType = iota
	// Numeric columns hold float64 values.
	Numeric
	// Date columns hold date-only time.Time values.
	Date
	// Bool columns hold boolean flags.
	Bool
)

// String returns a human-readable name for the column type.
func (c ColumnType) String() string {
	switch c {
	case Numeric:
		return "numeric"
	case Date:
		return "date"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

// Table is an ordered set of named columns over map-backed rows.
//
// Column order is insertion order and column names are unique. Row maps may
// carry keys that are not listed in Columns; such keys are invisible to all
// table operations. Cell values are string, float64, bool, date-only
// time.Time, or nil for missing data.
type Table struct {
	Columns []string
	Types   map[string]ColumnType
	Rows    []map[string]interface{}
}

// New creates a table with the given column order and types.
func New(columns []string, types map[string]ColumnType) *Table {
	if types == nil {
		types = make(map[string]ColumnType)
	}
	return &Table{
		Columns: columns,
		Types:   types,
		Rows:    make([]map[string]interface{}, 0),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether the named column is part of the table.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Type returns the semantic type of a column. Unknown columns are String.
func (t *Table) Type(name string) ColumnType {
	if ct, ok := t.Types[name]; ok {
		return ct
	}
	return String
}

// IsNumeric reports whether the column holds numeric values.
func (t *Table) IsNumeric(name string) bool {
	return t.Type(name) == Numeric
}

// IsDate reports whether the column holds date values.
func (t *Table) IsDate(name string) bool {
	return t.Type(name) == Date
}

// Schema returns the set of column names currently present on the table.
func (t *Table) Schema() map[string]bool {
	schema := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		schema[c] = true
	}
	return schema
}

// CloneRows returns a table with the same columns and a deep copy of every
// row map, so callers can add or rewrite cells without touching the source.
func (t *Table) CloneRows() *Table {
	rows := make([]map[string]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		clone := make(map[string]interface{}, len(row))
		for k, v := range row {
			clone[k] = v
		}
		rows[i] = clone
	}
	return &Table{Columns: append([]string(nil), t.Columns...), Types: cloneTypes(t.Types), Rows: rows}
}

// WithRows returns a table sharing this table's columns and types but
// holding the given rows. Row maps are shared, not copied.
func (t *Table) WithRows(rows []map[string]interface{}) *Table {
	return &Table{Columns: append([]string(nil), t.Columns...), Types: cloneTypes(t.Types), Rows: rows}
}

// Project returns a table restricted to the given columns, in the given
// order. Columns not present on the table are dropped. Row maps are shared.
func (t *Table) Project(columns []string) *Table {
	keep := make([]string, 0, len(columns))
	types := make(map[string]ColumnType, len(columns))
	for _, c := range columns {
		if t.HasColumn(c) {
			keep = append(keep, c)
			types[c] = t.Type(c)
		}
	}
	return &Table{Columns: keep, Types: types, Rows: t.Rows}
}

// Value returns the cell at the given row for the named column, or nil when
// the column is absent.
func (t *Table) Value(row int, name string) interface{} {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	return t.Rows[row][name]
}

func cloneTypes(types map[string]ColumnType) map[string]ColumnType {
	out := make(map[string]ColumnType, len(types))
	for k, v := range types {
		out[k] = v
	}
	return out
}

// ToFloat converts a cell value to float64 if possible.
func ToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// dateLayouts are the accepted textual date formats, most specific first.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ParseDate parses a value into a date-only time.Time. The second return
// value is false when the value cannot be interpreted as a date.
func ParseDate(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return Midnight(val), true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, val); err == nil {
				return Midnight(parsed), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Midnight truncates a timestamp to date-only granularity in UTC.
func Midnight(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatValue renders a cell value the way the CSV and table formatters
// print it: dates as YYYY-MM-DD, floats without a forced exponent, nil as
// the empty string.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
