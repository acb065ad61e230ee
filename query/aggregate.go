package query

import (
	"sort"
	"strings"

	"github.com/csvchat/csvchat/dataset"
)

// aggPlan is an ordered column-to-aggregation assignment. Later rules only
// fill gaps; an explicit or earlier-assigned aggregation is never
// overridden.
type aggPlan struct {
	cols  []string
	kinds map[string]AggKind
}

func newAggPlan() *aggPlan {
	return &aggPlan{kinds: make(map[string]AggKind)}
}

// setDefault assigns kind to col unless col already has an assignment.
func (p *aggPlan) setDefault(col string, kind AggKind) {
	if _, ok := p.kinds[col]; ok {
		return
	}
	p.cols = append(p.cols, col)
	p.kinds[col] = kind
}

func (p *aggPlan) empty() bool {
	return len(p.cols) == 0
}

// buildAggPlan decides which aggregation applies to which column, richer
// than what the caller supplied, so columns needed downstream survive
// grouping.
func (e *Engine) buildAggPlan(t *dataset.Table, d *Descriptor, selected, groupKeys []string) *aggPlan {
	schema := t.Schema()
	keySet := make(map[string]bool, len(groupKeys))
	for _, k := range groupKeys {
		keySet[k] = true
	}

	plan := newAggPlan()

	// 1. Caller-supplied aggregations, validated. Keys are sorted so the
	// output column order is deterministic regardless of map iteration.
	explicit := make([]string, 0, len(d.Aggregations))
	for k := range d.Aggregations {
		explicit = append(explicit, k)
	}
	sort.Strings(explicit)
	for _, k := range explicit {
		kind := AggKind(strings.TrimSpace(string(d.Aggregations[k])))
		col, ok := e.resolver.Resolve(Ref(k), schema)
		if !ok {
			col = strings.TrimSpace(k)
		}
		if !t.HasColumn(col) || !kind.Valid() {
			continue
		}
		if (kind == AggSum || kind == AggMean) && !t.IsNumeric(col) {
			continue
		}
		plan.setDefault(col, kind)
	}

	// 2. Selected numeric columns that are not group keys default to sum.
	for _, col := range selected {
		if !keySet[col] && t.HasColumn(col) && t.IsNumeric(col) {
			plan.setDefault(col, AggSum)
		}
	}

	// 3. The derived revenue and monthly-value measures always survive.
	if t.HasColumn(ColPeriodRevenue) {
		plan.setDefault(ColPeriodRevenue, AggSum)
	}
	if t.HasColumn(ColMRR) {
		plan.setDefault(ColMRR, AggSum)
	}

	// 4. Columns referenced by filters or ordering must remain visible.
	// Churn probability keeps its worst case under max; other numeric
	// columns default to sum.
	for _, col := range e.referencedColumns(t, d) {
		if keySet[col] || !t.HasColumn(col) || !t.IsNumeric(col) {
			continue
		}
		if col == ColChurnProbability {
			plan.setDefault(col, AggMax)
		} else {
			plan.setDefault(col, AggSum)
		}
	}

	// 5. Grouped output always carries at least one measure.
	if plan.empty() {
		for _, col := range []string{ColPeriodRevenue, ColMRR} {
			if t.HasColumn(col) {
				plan.setDefault(col, AggSum)
				break
			}
		}
	}

	return plan
}

// referencedColumns resolves every column a filter or order-by clause
// touches, de-duplicated in first-seen order.
func (e *Engine) referencedColumns(t *dataset.Table, d *Descriptor) []string {
	schema := t.Schema()
	seen := make(map[string]bool)
	out := make([]string, 0)
	add := func(ref ColumnRef) {
		if col, ok := e.resolver.Resolve(ref, schema); ok && !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	for _, f := range d.Filters {
		add(f.Col)
	}
	for _, ob := range d.OrderBy {
		add(ob.Col)
	}
	return out
}

// applyGroupBy partitions rows by the group keys and applies the plan,
// producing one row per distinct key combination. Rows with a nil group
// key are excluded. Groups are emitted in ascending key order so grouped
// output is deterministic even without an order_by.
func applyGroupBy(t *dataset.Table, groupKeys []string, plan *aggPlan) *dataset.Table {
	type group struct {
		keyVals map[string]interface{}
		rows    []map[string]interface{}
	}

	groups := make(map[string]*group)
	order := make([]string, 0)

rowLoop:
	for _, row := range t.Rows {
		var keyBuilder strings.Builder
		keyVals := make(map[string]interface{}, len(groupKeys))
		for _, k := range groupKeys {
			v := row[k]
			if v == nil {
				continue rowLoop
			}
			keyBuilder.WriteString(dataset.FormatValue(v))
			keyBuilder.WriteString("\x00")
			keyVals[k] = v
		}
		key := keyBuilder.String()
		if g, ok := groups[key]; ok {
			g.rows = append(g.rows, row)
		} else {
			groups[key] = &group{keyVals: keyVals, rows: []map[string]interface{}{row}}
			order = append(order, key)
		}
	}

	// Resolve output column names up front: a mean of the binary churn
	// flag is a rate, so it is renamed.
	columns := append([]string(nil), groupKeys...)
	types := make(map[string]dataset.ColumnType, len(columns)+len(plan.cols))
	for _, k := range groupKeys {
		types[k] = t.Type(k)
	}
	outName := make(map[string]string, len(plan.cols))
	for _, col := range plan.cols {
		name := col
		if col == ColChurn && plan.kinds[col] == AggMean {
			name = ColChurnRate
		}
		outName[col] = name
		columns = append(columns, name)
		types[name] = dataset.Numeric
	}

	rows := make([]map[string]interface{}, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		row := make(map[string]interface{}, len(columns))
		for k, v := range g.keyVals {
			row[k] = v
		}
		for _, col := range plan.cols {
			row[outName[col]] = computeAggregate(plan.kinds[col], g.rows, col)
		}
		rows = append(rows, row)
	}

	out := &dataset.Table{Columns: columns, Types: types, Rows: rows}
	sortByKeysAscending(out, groupKeys)
	return out
}

// computeAggregate evaluates one aggregation over a group's rows, ignoring
// nil cells.
func computeAggregate(kind AggKind, rows []map[string]interface{}, col string) interface{} {
	switch kind {
	case AggSum:
		total := 0.0
		for _, row := range rows {
			if f, ok := dataset.ToFloat(row[col]); ok {
				total += f
			}
		}
		return total
	case AggMean:
		total, n := 0.0, 0
		for _, row := range rows {
			if f, ok := dataset.ToFloat(row[col]); ok {
				total += f
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return total / float64(n)
	case AggMax:
		var best float64
		found := false
		for _, row := range rows {
			if f, ok := dataset.ToFloat(row[col]); ok {
				if !found || f > best {
					best = f
					found = true
				}
			}
		}
		if !found {
			return nil
		}
		return best
	case AggCount:
		n := 0
		for _, row := range rows {
			if row[col] != nil {
				n++
			}
		}
		return float64(n)
	case AggNunique:
		seen := make(map[string]bool)
		for _, row := range rows {
			if row[col] != nil {
				seen[dataset.FormatValue(row[col])] = true
			}
		}
		return float64(len(seen))
	default:
		return nil
	}
}

// sortByKeysAscending stably sorts the table by the group keys, first key
// dominant.
func sortByKeysAscending(t *dataset.Table, keys []string) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareCells(t.Rows[i][k], t.Rows[j][k])
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}
