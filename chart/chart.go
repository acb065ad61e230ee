// Package chart resolves "X against Y" style commands into plottable
// aggregates. The output is a small table plus axis keys, ready for any
// bar renderer and compact enough to persist and replay.
package chart

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/csvchat/csvchat/dataset"
	"github.com/csvchat/csvchat/query"
)

// Args selects the axes and caption of a chart.
type Args struct {
	X     string `json:"x"`
	Y     string `json:"y,omitempty"`
	Title string `json:"title,omitempty"`
}

// Spec is a replayable chart: the aggregated data and the keys to plot it
// by.
type Spec struct {
	X     string         `json:"x"`
	YKey  string         `json:"y_key"`
	Title string         `json:"title,omitempty"`
	Data  *dataset.Table `json:"data"`
}

// Axis wording accepted on top of the query alias table.
var extraAliases = map[string]string{
	"segments": "segment",
	"segment":  "segment",
	"industry": "industry",
	"vertical": "industry",
	"region":   "region",
	"geo":      "region",
	"tier":     "tier",
	"channel":  "channel",

	"customer":  query.ColCompanyName,
	"customers": query.ColCompanyName,
	"account":   query.ColCompanyName,
	"accounts":  query.ColCompanyName,

	"churn%":               query.ColChurnProbability,
	"churn probability":    query.ColChurnProbability,
	"probability of churn": query.ColChurnProbability,

	"revenue":       query.ColPeriodRevenue,
	"total revenue": query.ColPeriodRevenue,
	"sales":         query.ColPeriodRevenue,
}

var axesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(.+?)\s+against\s+(.+?)\s*$`),
	regexp.MustCompile(`^\s*(.+?)\s+vs\.?\s+(.+?)\s*$`),
	regexp.MustCompile(`^\s*(.+?)\s+versus\s+(.+?)\s*$`),
	regexp.MustCompile(`^\s*(.+?)\s+x\s+(.+?)\s*$`),
}

var totalVsTopPattern = regexp.MustCompile(
	`(?i)\btotal\s+revenue\b.*\b(against|vs\.?|versus)\b.*\b(highest|top)\s+revenue\s+company\b`)

// ParseAxesCommand matches "X against Y", "X vs Y", "X versus Y", or
// "X x Y" and returns the raw axis terms.
func ParseAxesCommand(text string) (x, y string, ok bool) {
	txt := strings.ToLower(strings.TrimSpace(text))
	for _, pat := range axesPatterns {
		if m := pat.FindStringSubmatch(txt); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
		}
	}
	return "", "", false
}

// Builder turns chart commands into plot-ready tables, running queries
// against the full dataset when the axes need derived revenue.
type Builder struct {
	engine  *query.Engine
	aliases query.Aliases
}

// NewBuilder builds a chart builder on the given engine.
func NewBuilder(engine *query.Engine) *Builder {
	return &Builder{engine: engine, aliases: engine.Resolver().Aliases()}
}

// Canonical maps a free-form axis term to a column. Bare "churn" means the
// probability column here; on a chart axis the binary flag is never what
// the user wants.
func (b *Builder) Canonical(term string, schema map[string]bool) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return "", false
	}
	if t == "churn" {
		return query.ColChurnProbability, true
	}
	if cand, ok := extraAliases[t]; ok {
		if cand == query.ColPeriodRevenue || schema[cand] {
			return cand, true
		}
	}
	if mapped, ok := b.aliases.Canonical(t); ok {
		if mapped == query.ColPeriodRevenue || schema[mapped] {
			return mapped, true
		}
	}
	if schema[strings.TrimSpace(term)] {
		return strings.TrimSpace(term), true
	}
	return "", false
}

// Prepare resolves a chart command into a plot table and its axes. ok is
// false when the text is not a chart command or no axes can be resolved.
// Preference order: the special total-vs-top intent, columns of the
// previous result, a revenue rollup over the full dataset, then raw
// dataset columns.
func (b *Builder) Prepare(full, last *dataset.Table, text string) (*dataset.Table, *Args, bool) {
	if totalVsTopPattern.MatchString(text) {
		if t, args, ok := b.totalVsTop(full); ok {
			return t, args, true
		}
	}

	xRaw, yRaw, ok := ParseAxesCommand(text)
	if !ok {
		return nil, nil, false
	}

	schema := full.Schema()
	x, xOK := b.Canonical(xRaw, schema)
	y, yOK := b.Canonical(yRaw, schema)

	// One resolvable term is enough when the other slot can take it.
	if !xOK && yOK {
		x, xOK = y, true
	} else if xOK && !yOK {
		y, yOK = x, true
	}
	if !xOK || !yOK {
		return nil, nil, false
	}

	if x == y {
		cat, ok := defaultCategory(schema)
		if !ok {
			return nil, nil, false
		}
		x = cat
	}

	if last != nil && last.HasColumn(x) && last.HasColumn(y) {
		return dropMissing(last.Project([]string{x, y})), &Args{X: x, Y: y, Title: y + " vs " + x}, true
	}

	if y == query.ColPeriodRevenue {
		d := &query.Descriptor{
			Select:     query.Refs(x, query.ColPeriodRevenue),
			TimeWindow: &query.TimeWindow{Start: "2000-01-01", End: "2100-01-01"},
			GroupBy:    query.Refs(x),
			Aggregations: map[string]query.AggKind{
				query.ColPeriodRevenue: query.AggSum,
			},
			OrderBy:  []query.OrderBy{{Col: query.Ref(query.ColPeriodRevenue), Desc: true}},
			Computed: true,
			Limit:    1000,
		}
		if out, err := b.engine.Execute(full, d); err == nil && len(out.Rows) > 0 {
			return out.Project([]string{x, query.ColPeriodRevenue}), &Args{X: x, Y: query.ColPeriodRevenue, Title: "Revenue vs " + x}, true
		}
	}

	if full.HasColumn(x) && full.HasColumn(y) {
		return dropMissing(full.Project([]string{x, y})), &Args{X: x, Y: y, Title: y + " vs " + x}, true
	}

	return nil, nil, false
}

// totalVsTop builds the two-bar comparison of total revenue against the
// single highest-revenue company.
func (b *Builder) totalVsTop(full *dataset.Table) (*dataset.Table, *Args, bool) {
	if !full.HasColumn(query.ColCompanyName) {
		return nil, nil, false
	}

	d := &query.Descriptor{
		Select:     query.Refs(query.ColCompanyName, query.ColPeriodRevenue),
		TimeWindow: &query.TimeWindow{Start: "2000-01-01", End: "2100-01-01"},
		GroupBy:    query.Refs(query.ColCompanyName),
		Aggregations: map[string]query.AggKind{
			query.ColPeriodRevenue: query.AggSum,
		},
		OrderBy:  []query.OrderBy{{Col: query.Ref(query.ColPeriodRevenue), Desc: true}},
		Computed: true,
	}
	grp, err := b.engine.Execute(full, d)
	if err != nil || len(grp.Rows) == 0 || !grp.HasColumn(query.ColPeriodRevenue) {
		return nil, nil, false
	}

	topName := dataset.FormatValue(grp.Rows[0][query.ColCompanyName])
	topRev, _ := dataset.ToFloat(grp.Rows[0][query.ColPeriodRevenue])
	total := 0.0
	for _, row := range grp.Rows {
		if f, ok := dataset.ToFloat(row[query.ColPeriodRevenue]); ok {
			total += f
		}
	}

	out := &dataset.Table{
		Columns: []string{"label", query.ColPeriodRevenue},
		Types: map[string]dataset.ColumnType{
			"label":                dataset.String,
			query.ColPeriodRevenue: dataset.Numeric,
		},
		Rows: []map[string]interface{}{
			{"label": "All companies", query.ColPeriodRevenue: total},
			{"label": fmt.Sprintf("Top company: %s", topName), query.ColPeriodRevenue: topRev},
		},
	}
	return out, &Args{X: "label", Y: query.ColPeriodRevenue, Title: "Total revenue vs highest revenue company"}, true
}

func defaultCategory(schema map[string]bool) (string, bool) {
	for _, c := range []string{"industry", "segment", "region", "tier", "channel", query.ColCompanyName} {
		if schema[c] {
			return c, true
		}
	}
	return "", false
}

// dropMissing removes rows with a nil cell in any projected column.
func dropMissing(t *dataset.Table) *dataset.Table {
	kept := make([]map[string]interface{}, 0, len(t.Rows))
rowLoop:
	for _, row := range t.Rows {
		for _, col := range t.Columns {
			if row[col] == nil {
				continue rowLoop
			}
		}
		kept = append(kept, row)
	}
	return t.WithRows(kept)
}
