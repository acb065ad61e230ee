package query

import (
	"math"
	"strings"
	"time"

	"github.com/csvchat/csvchat/dataset"
)

// Supported filter operators.
const (
	OpEqual        = "=="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpLess         = "<"
	OpGreaterEqual = ">="
	OpLessEqual    = "<="
	OpIn           = "in"
	OpBetween      = "between"
	OpContains     = "contains"
)

// applyFilters returns a row-filtered copy of the table. Filters whose
// column cannot be resolved against the current table are skipped entirely;
// the remaining filters AND together in list order.
func (e *Engine) applyFilters(t *dataset.Table, filters []Filter) *dataset.Table {
	if len(filters) == 0 {
		return t
	}

	out := t
	schema := t.Schema()
	for _, f := range filters {
		col, ok := e.resolver.Resolve(f.Col, schema)
		if !ok || !out.HasColumn(col) {
			continue
		}
		out = applyOneFilter(out, col, f)
	}
	return out
}

// applyOneFilter narrows the table by a single resolved predicate.
func applyOneFilter(t *dataset.Table, col string, f Filter) *dataset.Table {
	op := strings.TrimSpace(f.Op)
	if op == "" {
		op = OpEqual
	}

	kept := make([]map[string]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		if matchFilter(row[col], op, f.Value, t.Type(col)) {
			kept = append(kept, row)
		}
	}
	return t.WithRows(kept)
}

// matchFilter evaluates one predicate against a cell value.
func matchFilter(cell interface{}, op string, value FilterValue, ct dataset.ColumnType) bool {
	switch op {
	case OpBetween:
		lo, hi, ok := value.Bounds()
		if !ok {
			return false
		}
		return matchBetween(cell, lo, hi, ct)
	case OpIn:
		for _, elem := range value.Elements() {
			if equalValues(cell, coerceScalar(elem, ct), ct) {
				return true
			}
		}
		return false
	case OpContains:
		return matchContains(cell, value.Scalar)
	default:
		return matchScalar(cell, op, coerceScalar(value.Scalar, ct), ct)
	}
}

// coerceScalar converts a filter bound to the column's semantic type.
// Unparseable dates become nil; unparseable numbers become NaN, a sentinel
// that matches nothing under equality and ordering.
func coerceScalar(v interface{}, ct dataset.ColumnType) interface{} {
	if v == nil {
		return nil
	}
	switch ct {
	case dataset.Date:
		if d, ok := dataset.ParseDate(v); ok {
			return d
		}
		return nil
	case dataset.Numeric:
		if f, ok := dataset.ToFloat(v); ok {
			return f
		}
		return math.NaN()
	default:
		return v
	}
}

// matchScalar applies a comparison operator. Equality-style failures are
// no-match conditions; inequality follows not-a-number semantics and
// matches everything the equality would reject.
func matchScalar(cell interface{}, op string, want interface{}, ct dataset.ColumnType) bool {
	switch op {
	case OpEqual:
		return equalValues(cell, want, ct)
	case OpNotEqual:
		return !equalValues(cell, want, ct)
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		cmp, ok := orderValues(cell, want, ct)
		if !ok {
			return false
		}
		switch op {
		case OpGreater:
			return cmp > 0
		case OpLess:
			return cmp < 0
		case OpGreaterEqual:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

// matchBetween applies each bound independently; a nil or unparseable
// bound leaves that side of the range unconstrained.
func matchBetween(cell interface{}, lo, hi interface{}, ct dataset.ColumnType) bool {
	loC := coerceScalar(lo, ct)
	if !boundMissing(loC) {
		cmp, ok := orderValues(cell, loC, ct)
		if !ok || cmp < 0 {
			return false
		}
	}
	hiC := coerceScalar(hi, ct)
	if !boundMissing(hiC) {
		cmp, ok := orderValues(cell, hiC, ct)
		if !ok || cmp > 0 {
			return false
		}
	}
	return true
}

func boundMissing(v interface{}) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// matchContains performs a case-insensitive substring match against the
// string form of the cell, regardless of the column's declared type.
func matchContains(cell interface{}, needle interface{}) bool {
	if cell == nil {
		return false
	}
	return strings.Contains(
		strings.ToLower(dataset.FormatValue(cell)),
		strings.ToLower(dataset.FormatValue(needle)),
	)
}

// equalValues is typed equality. A nil cell equals nothing, and a NaN
// sentinel on either side never matches.
func equalValues(cell, want interface{}, ct dataset.ColumnType) bool {
	if cell == nil || want == nil {
		return false
	}
	switch ct {
	case dataset.Numeric:
		cellF, ok := dataset.ToFloat(cell)
		if !ok {
			return false
		}
		wantF, ok := want.(float64)
		if !ok || math.IsNaN(wantF) || math.IsNaN(cellF) {
			return false
		}
		return cellF == wantF
	case dataset.Date:
		cellD, ok := cell.(time.Time)
		if !ok {
			return false
		}
		wantD, ok := want.(time.Time)
		if !ok {
			return false
		}
		return cellD.Equal(wantD)
	case dataset.Bool:
		cellB, okCell := cell.(bool)
		wantB, okWant := coerceBool(want)
		return okCell && okWant && cellB == wantB
	default:
		return dataset.FormatValue(cell) == dataset.FormatValue(want)
	}
}

// orderValues compares a cell against a coerced bound, returning -1/0/+1.
// ok is false when either side is missing or the pair is not orderable.
func orderValues(cell, want interface{}, ct dataset.ColumnType) (int, bool) {
	if cell == nil || want == nil {
		return 0, false
	}
	switch ct {
	case dataset.Numeric:
		cellF, okCell := dataset.ToFloat(cell)
		wantF, okWant := want.(float64)
		if !okCell || !okWant || math.IsNaN(cellF) || math.IsNaN(wantF) {
			return 0, false
		}
		return compareFloats(cellF, wantF), true
	case dataset.Date:
		cellD, okCell := cell.(time.Time)
		wantD, okWant := want.(time.Time)
		if !okCell || !okWant {
			return 0, false
		}
		switch {
		case cellD.Before(wantD):
			return -1, true
		case cellD.After(wantD):
			return 1, true
		default:
			return 0, true
		}
	default:
		return strings.Compare(dataset.FormatValue(cell), dataset.FormatValue(want)), true
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func coerceBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(val) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	case float64:
		return val != 0, true
	}
	return false, false
}
