package planner

import (
	"strconv"
	"strings"

	"github.com/csvchat/csvchat/query"
)

// Sanitizer rewrites LLM-produced plans into descriptors the engine can
// run: aliases resolved, unknown columns dropped, invalid aggregations
// removed, and revenue conventions applied.
type Sanitizer struct {
	aliases  query.Aliases
	resolver *query.Resolver
}

// NewSanitizer builds a sanitizer over an alias table.
func NewSanitizer(aliases query.Aliases) *Sanitizer {
	return &Sanitizer{aliases: aliases, resolver: query.NewResolver(aliases)}
}

// Sanitize rewrites every query step in place against the dataset schema.
// Chart and narrate steps pass through untouched.
func (s *Sanitizer) Sanitize(p *Plan, schema map[string]bool) {
	if p == nil {
		return
	}
	for i := range p.Steps {
		if p.Steps[i].Tool == ToolQuery && p.Steps[i].Query != nil {
			s.sanitizeQuery(p.Steps[i].Query, schema)
		}
	}
}

func (s *Sanitizer) sanitizeQuery(d *query.Descriptor, schema map[string]bool) {
	d.Select = query.Refs(s.resolver.ResolveList(d.Select, schema)...)
	d.GroupBy = query.Refs(s.resolver.ResolveList(d.GroupBy, schema)...)
	d.Filters = s.fixFilters(d.Filters, schema)
	d.OrderBy = s.fixOrderBy(d.OrderBy, schema)
	d.Aggregations = s.fixAggregations(d.Aggregations, schema)

	// Filtered columns ride along in the output so the user can see what
	// the predicate matched against.
	filtered := filterColumns(d.Filters)
	ensureSelected(d, filtered)

	if len(d.Select) == 0 && schema[query.ColCompanyName] {
		d.Select = query.Refs(query.ColCompanyName)
	}

	if s.mentionsRevenue(d, filtered) {
		s.ensureRevenueDefaults(d, schema)
	}

	// Revenue referenced only by a filter still implies a per-company
	// rollup.
	for _, c := range filtered {
		if (c == query.ColPeriodRevenue || c == query.ColMRR) && schema[query.ColCompanyName] {
			appendGroupBy(d, query.ColCompanyName)
			break
		}
	}

	for _, c := range filtered {
		if c == query.ColChurnProbability {
			ensureSelected(d, []string{query.ColChurnProbability})
			break
		}
	}
}

// fixFilters resolves filter columns, disambiguating a bare churn
// reference: the binary flag cannot exceed 1, so a larger threshold means
// the caller was talking about churn probability.
func (s *Sanitizer) fixFilters(filters []query.Filter, schema map[string]bool) []query.Filter {
	out := make([]query.Filter, 0, len(filters))
	for _, f := range filters {
		name := f.Col.Name()
		mapped := name
		if m, ok := s.aliases.Canonical(name); ok {
			mapped = m
		}

		if strings.EqualFold(mapped, query.ColChurn) {
			if num, ok := parsePercentish(f.Value.Scalar); ok && num > 1 {
				mapped = query.ColChurnProbability
			}
		}

		col, ok := s.resolver.Resolve(query.Ref(mapped), schema)
		if !ok {
			continue
		}

		op := strings.TrimSpace(f.Op)
		if op == "" {
			op = query.OpEqual
		}
		out = append(out, query.Filter{Col: query.Ref(col), Op: op, Value: f.Value})
	}
	return out
}

func (s *Sanitizer) fixOrderBy(order []query.OrderBy, schema map[string]bool) []query.OrderBy {
	out := make([]query.OrderBy, 0, len(order))
	for _, ob := range order {
		if col, ok := s.resolver.Resolve(ob.Col, schema); ok {
			out = append(out, query.OrderBy{Col: query.Ref(col), Desc: ob.Desc})
		}
	}
	return out
}

func (s *Sanitizer) fixAggregations(aggs map[string]query.AggKind, schema map[string]bool) map[string]query.AggKind {
	out := make(map[string]query.AggKind, len(aggs))
	for k, kind := range aggs {
		col, ok := s.resolver.Resolve(query.Ref(k), schema)
		if !ok || !kind.Valid() {
			continue
		}
		out[col] = kind
	}
	return out
}

// mentionsRevenue reports whether any clause of the descriptor touches a
// revenue-like column.
func (s *Sanitizer) mentionsRevenue(d *query.Descriptor, filtered []string) bool {
	for _, ref := range d.Select {
		if s.aliases.IsRevenueLike(ref.Name()) {
			return true
		}
	}
	for k := range d.Aggregations {
		if s.aliases.IsRevenueLike(k) {
			return true
		}
	}
	for _, ob := range d.OrderBy {
		if s.aliases.IsRevenueLike(ob.Col.Name()) {
			return true
		}
	}
	for _, c := range filtered {
		if s.aliases.IsRevenueLike(c) {
			return true
		}
	}
	return false
}

// ensureRevenueDefaults applies the revenue conventions: the derived
// column is selected and summed, the window defaults to all time, and a
// per-company rollup is ordered by revenue descending.
func (s *Sanitizer) ensureRevenueDefaults(d *query.Descriptor, schema map[string]bool) {
	ensureSelected(d, []string{query.ColPeriodRevenue})
	d.Computed = true

	if d.TimeWindow == nil || d.TimeWindow.Start == "" || d.TimeWindow.End == "" {
		d.TimeWindow = DefaultTimeWindow()
	}

	if schema[query.ColCompanyName] && selectsColumn(d, query.ColCompanyName) {
		appendGroupBy(d, query.ColCompanyName)
	}

	if d.Aggregations == nil {
		d.Aggregations = make(map[string]query.AggKind, 1)
	}
	if _, ok := d.Aggregations[query.ColPeriodRevenue]; !ok {
		d.Aggregations[query.ColPeriodRevenue] = query.AggSum
	}

	if len(d.OrderBy) == 0 {
		d.OrderBy = []query.OrderBy{{Col: query.Ref(query.ColPeriodRevenue), Desc: true}}
	}
}

// DefaultTimeWindow is the all-time window applied when revenue is
// requested without an explicit range.
func DefaultTimeWindow() *query.TimeWindow {
	return &query.TimeWindow{Start: "2000-01-01", End: "2100-01-01"}
}

func filterColumns(filters []query.Filter) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		if name := f.Col.Name(); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func ensureSelected(d *query.Descriptor, cols []string) {
	for _, c := range cols {
		if !selectsColumn(d, c) {
			d.Select = append(d.Select, query.Ref(c))
		}
	}
}

func selectsColumn(d *query.Descriptor, col string) bool {
	for _, ref := range d.Select {
		if ref.Name() == col {
			return true
		}
	}
	return false
}

func appendGroupBy(d *query.Descriptor, col string) {
	for _, ref := range d.GroupBy {
		if ref.Name() == col {
			return
		}
	}
	d.GroupBy = append(d.GroupBy, query.Ref(col))
}

// parsePercentish reads a threshold that may carry a percent sign: "70%"
// and "70" both read as 70, 0.7 stays 0.7.
func parsePercentish(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		s := strings.TrimSpace(val)
		s = strings.TrimSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
