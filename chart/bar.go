package chart

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/csvchat/csvchat/dataset"
)

// countKey names the synthetic measure used when the y axis is not
// numeric and bars fall back to group sizes.
const countKey = "__count__"

// Cap on rows fed into a bar aggregation; larger inputs are sampled with a
// fixed seed so replays stay identical.
const barSampleCap = 2000

const barSampleSeed = 42

// BuildBarAgg aggregates a table for a bar chart: one bar per x value
// (numeric x gets quantile-binned), measuring the sum of y when y is
// numeric and the row count otherwise. Returns the aggregate and the
// column holding the bar heights.
func BuildBarAgg(t *dataset.Table, x, y string) (*dataset.Table, string) {
	if t == nil || len(t.Rows) == 0 || !t.HasColumn(x) {
		return &dataset.Table{}, ""
	}

	cols := []string{x}
	if y != "" && y != x && t.HasColumn(y) {
		cols = append(cols, y)
	}
	plot := t.Project(cols)
	plot = samplePlotRows(plot)

	yNumeric := len(cols) == 2 && t.IsNumeric(y)

	labels := barLabels(plot, x)

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0)
	for i, row := range plot.Rows {
		label := labels[i]
		b, ok := buckets[label]
		if !ok {
			b = &bucket{}
			buckets[label] = b
			order = append(order, label)
		}
		b.count++
		if yNumeric {
			if f, ok := dataset.ToFloat(row[y]); ok {
				b.sum += f
			}
		}
	}
	sort.Strings(order)

	yKey := countKey
	if yNumeric {
		yKey = y
	}
	out := &dataset.Table{
		Columns: []string{x, yKey},
		Types: map[string]dataset.ColumnType{
			x:    dataset.String,
			yKey: dataset.Numeric,
		},
		Rows: make([]map[string]interface{}, 0, len(order)),
	}
	for _, label := range order {
		b := buckets[label]
		height := float64(b.count)
		if yNumeric {
			height = b.sum
		}
		out.Rows = append(out.Rows, map[string]interface{}{x: label, yKey: height})
	}
	return out, yKey
}

// samplePlotRows caps the plot input at barSampleCap rows using a fixed
// seed.
func samplePlotRows(t *dataset.Table) *dataset.Table {
	if len(t.Rows) <= barSampleCap {
		return t
	}
	rng := rand.New(rand.NewSource(barSampleSeed))
	idx := rng.Perm(len(t.Rows))[:barSampleCap]
	sort.Ints(idx)
	rows := make([]map[string]interface{}, 0, barSampleCap)
	for _, i := range idx {
		rows = append(rows, t.Rows[i])
	}
	return t.WithRows(rows)
}

// barLabels renders the per-row x labels: numeric columns are binned into
// up to ten quantile buckets, everything else is formatted as-is.
func barLabels(t *dataset.Table, x string) []string {
	labels := make([]string, len(t.Rows))
	if !t.IsNumeric(x) {
		for i, row := range t.Rows {
			labels[i] = dataset.FormatValue(row[x])
		}
		return labels
	}

	values := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if f, ok := dataset.ToFloat(row[x]); ok {
			values = append(values, f)
		}
	}
	edges := quantileEdges(values, 10)
	if len(edges) < 3 {
		// One distinct value, nothing to bin.
		for i, row := range t.Rows {
			labels[i] = dataset.FormatValue(row[x])
		}
		return labels
	}

	for i, row := range t.Rows {
		f, ok := dataset.ToFloat(row[x])
		if !ok {
			labels[i] = dataset.FormatValue(row[x])
			continue
		}
		labels[i] = binLabel(f, edges)
	}
	return labels
}

// quantileEdges computes up to bins+1 distinct quantile cut points over
// values, duplicates dropped.
func quantileEdges(values []float64, bins int) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins+1)
	for i := 0; i <= bins; i++ {
		q := float64(i) / float64(bins)
		pos := q * float64(len(sorted)-1)
		lo := int(math.Floor(pos))
		v := sorted[lo]
		if lo < len(sorted)-1 {
			frac := pos - float64(lo)
			v += frac * (sorted[lo+1] - sorted[lo])
		}
		if len(edges) == 0 || v > edges[len(edges)-1] {
			edges = append(edges, v)
		}
	}
	return edges
}

// binLabel renders the half-open interval a value falls into.
func binLabel(v float64, edges []float64) string {
	for i := 1; i < len(edges); i++ {
		if v <= edges[i] || i == len(edges)-1 {
			return "(" + formatEdge(edges[i-1]) + ", " + formatEdge(edges[i]) + "]"
		}
	}
	return formatEdge(v)
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
