// Package query implements the structured query engine behind the chat
// front-end.
//
// A caller (a plan generator or explicit command) builds a Descriptor
// holding selected columns, typed filters, a time window, grouping,
// aggregations, ordering, a limit, and an optional computed revenue
// metric. The engine executes it against an in-memory dataset.Table,
// returning a new table. The engine is deliberately permissive: unresolvable column
// references, unparseable filter values, and invalid aggregation kinds are
// dropped or defaulted, never fatal, because upstream plan generation is
// unreliable. Execute always returns a table, possibly empty.
//
// Example usage:
//
//	eng := query.NewEngine(query.DefaultAliases())
//	result := eng.Execute(tbl, &query.Descriptor{
//	    Select:  query.Refs("company_name", "revenue"),
//	    GroupBy: query.Refs("company_name"),
//	    Limit:   5,
//	})
package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Canonical column names of the churn dataset the engine special-cases.
const (
	ColCompanyName      = "company_name"
	ColMRR              = "mrr_usd"
	ColPeriodRevenue    = "period_revenue_usd"
	ColOverlapMonths    = "overlap_months"
	ColContractStart    = "contract_start"
	ColContractEnd      = "contract_end"
	ColChurn            = "churn"
	ColChurnProbability = "churn_probability_percent"
	ColChurnRate        = "churn_rate"
)

// AggKind is an aggregation function name.
type AggKind string

// Supported aggregation kinds.
const (
	AggSum     AggKind = "sum"
	AggMean    AggKind = "mean"
	AggCount   AggKind = "count"
	AggNunique AggKind = "nunique"
	// AggMax is not accepted from callers; the planner assigns it to the
	// churn-probability column so the worst case survives grouping.
	AggMax AggKind = "max"
)

// Valid reports whether the kind is one a caller may supply.
func (a AggKind) Valid() bool {
	switch a {
	case AggSum, AggMean, AggCount, AggNunique:
		return true
	default:
		return false
	}
}

// ColumnRef is a caller-supplied column reference: a bare name, a
// structured descriptor carrying one of several synonym keys, or an
// expression string from which a known metric name is extracted.
type ColumnRef struct {
	name string
}

// Ref builds a column reference from a plain name.
func Ref(name string) ColumnRef {
	return ColumnRef{name: strings.TrimSpace(name)}
}

// Refs builds a reference list from plain names.
func Refs(names ...string) []ColumnRef {
	out := make([]ColumnRef, len(names))
	for i, n := range names {
		out[i] = Ref(n)
	}
	return out
}

// Name returns the candidate column name carried by the reference, which
// may still be an alias. Empty when the reference carried nothing usable.
func (c ColumnRef) Name() string {
	return c.name
}

// IsZero reports whether the reference carries no name at all.
func (c ColumnRef) IsZero() bool {
	return c.name == ""
}

// UnmarshalJSON accepts a string, or an object with one of the keys col,
// name, field, or column, or an object with an expr string mentioning a
// known metric. Anything else yields an empty reference, not an error.
func (c *ColumnRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.name = strings.TrimSpace(s)
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err == nil {
		for _, key := range []string{"col", "name", "field", "column"} {
			if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
				c.name = strings.TrimSpace(v)
				return nil
			}
		}
		if expr, ok := obj["expr"].(string); ok {
			c.name = metricFromExpr(expr)
		}
		return nil
	}

	c.name = ""
	return nil
}

// MarshalJSON renders the reference as its plain name.
func (c ColumnRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.name)
}

// metricFromExpr extracts a known metric column from an expression string.
func metricFromExpr(expr string) string {
	if strings.Contains(expr, ColPeriodRevenue) {
		return ColPeriodRevenue
	}
	if strings.Contains(expr, ColMRR) {
		return ColMRR
	}
	return ""
}

// FilterValue is the tagged variant a filter's value arrives as: a scalar,
// a {start, end} range, or a list. Exactly one case is populated.
type FilterValue struct {
	Scalar interface{}
	Range  *ValueRange
	List   []interface{}
	isList bool
}

// ValueRange is an explicit start/end pair for between filters. Either
// bound may be nil, leaving that side unconstrained.
type ValueRange struct {
	Start interface{} `json:"start"`
	End   interface{} `json:"end"`
}

// ScalarValue wraps a plain value.
func ScalarValue(v interface{}) FilterValue {
	return FilterValue{Scalar: v}
}

// ListValue wraps a list of values.
func ListValue(vs ...interface{}) FilterValue {
	return FilterValue{List: vs, isList: true}
}

// RangeValue wraps an explicit start/end pair.
func RangeValue(start, end interface{}) FilterValue {
	return FilterValue{Range: &ValueRange{Start: start, End: end}}
}

// Bounds returns the range endpoints of the value: an explicit range, or a
// two-element list interpreted as one. ok is false for any other shape.
func (v FilterValue) Bounds() (lo, hi interface{}, ok bool) {
	if v.Range != nil {
		return v.Range.Start, v.Range.End, true
	}
	if v.isList && len(v.List) == 2 {
		return v.List[0], v.List[1], true
	}
	return nil, nil, false
}

// Elements returns the value as a list: the list case directly, or the
// scalar wrapped in a single-element list.
func (v FilterValue) Elements() []interface{} {
	if v.isList {
		return v.List
	}
	return []interface{}{v.Scalar}
}

// UnmarshalJSON decodes a scalar, array, or {start, end} object. A plain
// object without start/end keys is kept as an opaque scalar.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	*v = FilterValue{}
	trimmed := strings.TrimSpace(string(data))

	if strings.HasPrefix(trimmed, "[") {
		var list []interface{}
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("failed to decode filter value list: %w", err)
		}
		v.List = list
		v.isList = true
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("failed to decode filter value object: %w", err)
		}
		_, hasStart := obj["start"]
		_, hasEnd := obj["end"]
		if hasStart || hasEnd {
			v.Range = &ValueRange{Start: obj["start"], End: obj["end"]}
			return nil
		}
		v.Scalar = obj
		return nil
	}

	var scalar interface{}
	if err := json.Unmarshal(data, &scalar); err != nil {
		return fmt.Errorf("failed to decode filter value: %w", err)
	}
	v.Scalar = scalar
	return nil
}

// MarshalJSON encodes whichever case is populated.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Range != nil:
		return json.Marshal(v.Range)
	case v.isList:
		return json.Marshal(v.List)
	default:
		return json.Marshal(v.Scalar)
	}
}

// Filter is one predicate: column, operator, and operator-dependent value.
type Filter struct {
	Col   ColumnRef   `json:"col"`
	Op    string      `json:"op"`
	Value FilterValue `json:"value"`
}

// OrderBy is one sort key. The first entry of a descriptor's OrderBy list
// is the dominant key; later entries break ties.
type OrderBy struct {
	Col  ColumnRef `json:"col"`
	Desc bool      `json:"desc"`
}

// UnmarshalJSON accepts either {col, desc} or a bare column name, which
// sorts descending by default.
func (o *OrderBy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Col = Ref(s)
		o.Desc = true
		return nil
	}

	var obj struct {
		Col  ColumnRef `json:"col"`
		Desc bool      `json:"desc"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to decode order_by entry: %w", err)
	}
	o.Col = obj.Col
	o.Desc = obj.Desc
	return nil
}

// MarshalJSON renders the entry in its object form.
func (o OrderBy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Col  ColumnRef `json:"col"`
		Desc bool      `json:"desc"`
	}{o.Col, o.Desc})
}

// TimeWindow is an inclusive date range, used only when the derived revenue
// metric is computed.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Descriptor is the engine's query contract. Zero values are valid: an
// empty descriptor selects every column of the source table.
type Descriptor struct {
	Select       []ColumnRef        `json:"select,omitempty"`
	Filters      []Filter           `json:"filters,omitempty"`
	TimeWindow   *TimeWindow        `json:"time_window,omitempty"`
	GroupBy      []ColumnRef        `json:"group_by,omitempty"`
	Aggregations map[string]AggKind `json:"aggregations,omitempty"`
	OrderBy      []OrderBy          `json:"order_by,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Computed     bool               `json:"computed,omitempty"`
}

// Clone returns a deep copy of the descriptor, so callers can derive
// variants (sanitized, relaxed) without mutating the original.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return &Descriptor{}
	}
	clone := &Descriptor{
		Select:   append([]ColumnRef(nil), d.Select...),
		Filters:  append([]Filter(nil), d.Filters...),
		GroupBy:  append([]ColumnRef(nil), d.GroupBy...),
		OrderBy:  append([]OrderBy(nil), d.OrderBy...),
		Limit:    d.Limit,
		Computed: d.Computed,
	}
	if d.TimeWindow != nil {
		tw := *d.TimeWindow
		clone.TimeWindow = &tw
	}
	if d.Aggregations != nil {
		clone.Aggregations = make(map[string]AggKind, len(d.Aggregations))
		for k, v := range d.Aggregations {
			clone.Aggregations[k] = v
		}
	}
	return clone
}
