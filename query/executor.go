package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/csvchat/csvchat/dataset"
)

// Engine executes descriptors against in-memory tables. An Engine is
// stateless apart from its alias table and is safe for concurrent use.
type Engine struct {
	resolver *Resolver
}

// NewEngine returns an Engine that resolves column references through the
// given alias table.
func NewEngine(aliases Aliases) *Engine {
	return &Engine{resolver: NewResolver(aliases)}
}

// Resolver exposes the engine's column resolver.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Execute runs d against t using the default alias table.
func Execute(t *dataset.Table, d *Descriptor) (*dataset.Table, error) {
	return NewEngine(DefaultAliases()).Execute(t, d)
}

// Execute runs a descriptor through the fixed pipeline: date
// normalization, derived revenue, filters, projection or aggregation,
// ordering, then limit. The input table is never mutated.
func (e *Engine) Execute(t *dataset.Table, d *Descriptor) (*dataset.Table, error) {
	if t == nil {
		return nil, fmt.Errorf("execute: nil table")
	}
	if d == nil {
		d = &Descriptor{}
	}

	out := normalizeDates(t)
	out = materializePeriodRevenue(out, d)

	out = e.applyFilters(out, d.Filters)

	selected := e.resolver.ResolveList(d.Select, out.Schema())
	groupKeys := e.resolver.ResolveList(d.GroupBy, out.Schema())

	if len(groupKeys) > 0 {
		plan := e.buildAggPlan(out, d, selected, groupKeys)
		out = applyGroupBy(out, groupKeys, plan)
	} else if len(selected) > 0 {
		out = out.Project(selected)
	}

	e.applyOrderBy(out, d.OrderBy)

	if d.Limit > 0 && d.Limit < len(out.Rows) {
		out = out.WithRows(out.Rows[:d.Limit])
	}

	return out, nil
}

// normalizeDates coerces every date-typed cell to a midnight time.Time so
// later comparisons never mix strings and times. Rows are copied; the
// caller's table stays intact.
func normalizeDates(t *dataset.Table) *dataset.Table {
	dateCols := make([]string, 0)
	for _, col := range t.Columns {
		if t.IsDate(col) {
			dateCols = append(dateCols, col)
		}
	}
	out := t.CloneRows()
	if len(dateCols) == 0 {
		return out
	}
	for _, row := range out.Rows {
		for _, col := range dateCols {
			switch v := row[col].(type) {
			case nil:
			case time.Time:
				row[col] = dataset.Midnight(v)
			case string:
				if ts, ok := dataset.ParseDate(v); ok {
					row[col] = ts
				} else {
					row[col] = nil
				}
			default:
				row[col] = nil
			}
		}
	}
	return out
}

// applyOrderBy stably sorts in place. Clauses whose column does not
// resolve are skipped. A single composite comparator keeps the first
// clause dominant and ties broken by later clauses.
func (e *Engine) applyOrderBy(t *dataset.Table, order []OrderBy) {
	schema := t.Schema()
	type clause struct {
		col  string
		desc bool
	}
	clauses := make([]clause, 0, len(order))
	for _, ob := range order {
		if col, ok := e.resolver.Resolve(ob.Col, schema); ok {
			clauses = append(clauses, clause{col: col, desc: ob.Desc})
		}
	}
	if len(clauses) == 0 {
		return
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		for _, c := range clauses {
			cmp := compareCells(t.Rows[i][c.col], t.Rows[j][c.col])
			if cmp == 0 {
				continue
			}
			if c.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// compareCells orders two cells. Nil sorts before everything. Values that
// both convert to float compare numerically, times chronologically, and
// anything else by its rendered form.
func compareCells(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if fa, ok := dataset.ToFloat(a); ok {
		if fb, ok := dataset.ToFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(dataset.FormatValue(a), dataset.FormatValue(b))
}
