package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/csvchat/csvchat/dataset"
	"github.com/csvchat/csvchat/query"
)

// Thresholds are the relaxed filter cutoffs, reported back so the caller
// can tell the user what was actually applied.
type Thresholds struct {
	Revenue float64
	Churn   float64
}

func (t Thresholds) String() string {
	return fmt.Sprintf("revenue >= %.0f, churn risk >= %.0f%%", t.Revenue, t.Churn)
}

// Relaxer rewrites over-restrictive revenue and churn filters to
// quantile-based cutoffs when a query comes back empty.
type Relaxer struct {
	engine *query.Engine
}

// NewRelaxer builds a relaxer that probes the dataset through the given
// engine.
func NewRelaxer(engine *query.Engine) *Relaxer {
	return &Relaxer{engine: engine}
}

// NeedsRelax reports whether an empty result is worth retrying: at least
// one filter targeted revenue or churn probability, the two columns whose
// thresholds the model routinely overshoots.
func (r *Relaxer) NeedsRelax(result *dataset.Table, d *query.Descriptor) bool {
	if result != nil && len(result.Rows) > 0 {
		return false
	}
	for _, f := range d.Filters {
		switch f.Col.Name() {
		case query.ColPeriodRevenue, query.ColChurnProbability:
			return true
		}
	}
	return false
}

// Relax returns a copy of the descriptor with revenue filters loosened to
// the 80th percentile of per-company revenue and churn filters to the 90th
// percentile of churn probability. Other filters are kept as-is.
func (r *Relaxer) Relax(src *dataset.Table, d *query.Descriptor) (*query.Descriptor, Thresholds, error) {
	revCut, err := r.revenueCutoff(src)
	if err != nil {
		return nil, Thresholds{}, err
	}
	churnCut := columnQuantile(src, query.ColChurnProbability, 0.90)

	relaxed := d.Clone()
	for i, f := range relaxed.Filters {
		switch f.Col.Name() {
		case query.ColPeriodRevenue:
			relaxed.Filters[i] = query.Filter{
				Col: f.Col, Op: query.OpGreater, Value: query.ScalarValue(revCut),
			}
		case query.ColChurnProbability:
			relaxed.Filters[i] = query.Filter{
				Col: f.Col, Op: query.OpGreaterEqual, Value: query.ScalarValue(churnCut),
			}
		}
	}

	if len(relaxed.GroupBy) == 0 {
		relaxed.GroupBy = query.Refs(query.ColCompanyName)
	}
	if relaxed.Aggregations == nil {
		relaxed.Aggregations = make(map[string]query.AggKind, 1)
	}
	if _, ok := relaxed.Aggregations[query.ColPeriodRevenue]; !ok {
		relaxed.Aggregations[query.ColPeriodRevenue] = query.AggSum
	}
	relaxed.Computed = true
	if relaxed.TimeWindow == nil {
		relaxed.TimeWindow = DefaultTimeWindow()
	}

	return relaxed, Thresholds{Revenue: revCut, Churn: churnCut}, nil
}

// revenueCutoff probes per-company all-time revenue and takes its 80th
// percentile. A dataset where revenue cannot be derived yields zero, which
// relaxes the filter away entirely.
func (r *Relaxer) revenueCutoff(src *dataset.Table) (float64, error) {
	probe := &query.Descriptor{
		Select:     query.Refs(query.ColCompanyName, query.ColPeriodRevenue),
		TimeWindow: DefaultTimeWindow(),
		GroupBy:    query.Refs(query.ColCompanyName),
		Aggregations: map[string]query.AggKind{
			query.ColPeriodRevenue: query.AggSum,
		},
		OrderBy:  []query.OrderBy{{Col: query.Ref(query.ColPeriodRevenue), Desc: true}},
		Computed: true,
	}
	out, err := r.engine.Execute(src, probe)
	if err != nil {
		return 0, fmt.Errorf("failed to probe revenue distribution: %w", err)
	}
	return columnQuantile(out, query.ColPeriodRevenue, 0.80), nil
}

// columnQuantile computes a linearly interpolated quantile over the
// numeric values of a column, zero when the column is absent or empty.
func columnQuantile(t *dataset.Table, col string, q float64) float64 {
	if t == nil || !t.HasColumn(col) {
		return 0
	}
	values := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if f, ok := dataset.ToFloat(row[col]); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)

	pos := q * float64(len(values)-1)
	lo := int(math.Floor(pos))
	if lo >= len(values)-1 {
		return values[len(values)-1]
	}
	frac := pos - float64(lo)
	return values[lo] + frac*(values[lo+1]-values[lo])
}
