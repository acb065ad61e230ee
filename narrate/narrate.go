// Package narrate turns a query result into deterministic talking points:
// two or three insight bullets and a short list of suggested actions.
package narrate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csvchat/csvchat/dataset"
	"github.com/csvchat/csvchat/query"
)

// Narration is the rendered summary of a result table.
type Narration struct {
	Bullets []string
	Actions []string
}

// Empty reports whether there is nothing to say.
func (n Narration) Empty() bool {
	return len(n.Bullets) == 0 && len(n.Actions) == 0
}

// Summarize derives insights from a result table. An empty table yields an
// empty narration; the caller decides how to phrase "no rows".
func Summarize(t *dataset.Table) Narration {
	if t == nil || len(t.Rows) == 0 {
		return Narration{}
	}

	var n Narration

	if t.HasColumn(query.ColPeriodRevenue) && t.IsNumeric(query.ColPeriodRevenue) {
		total := columnSum(t, query.ColPeriodRevenue)
		n.Bullets = append(n.Bullets, fmt.Sprintf("Total revenue in result: $%s.", commaFloat(total, 0)))

		if t.HasColumn(query.ColCompanyName) {
			if name, rev, ok := topByColumn(t, query.ColCompanyName, query.ColPeriodRevenue); ok {
				n.Bullets = append(n.Bullets, fmt.Sprintf("Top account by revenue: %s ($%s).", name, commaFloat(rev, 0)))
			}
		}
	}

	if t.HasColumn(query.ColChurnProbability) && t.IsNumeric(query.ColChurnProbability) {
		if avg, max, ok := meanAndMax(t, query.ColChurnProbability); ok {
			n.Bullets = append(n.Bullets, fmt.Sprintf("Avg churn risk: %.1f%% (max %.0f%%).", avg, max))
		}
	}

	n.Actions = suggestActions(t)
	return n
}

// suggestActions picks actions off simple signals in the result, falling
// back to generic retention moves.
func suggestActions(t *dataset.Table) []string {
	var actions []string

	if avg, ok := columnMean(t, "feature_adoption_rate"); ok && avg < 0.4 {
		actions = append(actions, "Deploy adoption playbooks (guided onboarding, QBR training).")
	}
	if avg, ok := columnMean(t, "support_tickets_90d"); ok && avg > 5 {
		actions = append(actions, "Prioritize proactive support for accounts with high ticket volume.")
	}
	if avg, ok := columnMean(t, "discount_pct"); ok && avg > 0 {
		actions = append(actions, "Use targeted retention incentives instead of blanket discounts.")
	}

	if len(actions) == 0 {
		actions = []string{
			"Schedule an executive check-in with top-risk accounts.",
			"Share a value recap highlighting outcomes achieved.",
			"Offer a pilot of an underused module to increase stickiness.",
		}
	}
	return actions
}

func columnSum(t *dataset.Table, col string) float64 {
	total := 0.0
	for _, row := range t.Rows {
		if f, ok := dataset.ToFloat(row[col]); ok {
			total += f
		}
	}
	return total
}

func columnMean(t *dataset.Table, col string) (float64, bool) {
	if !t.HasColumn(col) {
		return 0, false
	}
	total, n := 0.0, 0
	for _, row := range t.Rows {
		if f, ok := dataset.ToFloat(row[col]); ok {
			total += f
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

func meanAndMax(t *dataset.Table, col string) (mean, max float64, ok bool) {
	mean, meanOK := columnMean(t, col)
	if !meanOK {
		return 0, 0, false
	}
	first := true
	for _, row := range t.Rows {
		if f, fok := dataset.ToFloat(row[col]); fok {
			if first || f > max {
				max = f
				first = false
			}
		}
	}
	return mean, max, true
}

func topByColumn(t *dataset.Table, nameCol, valueCol string) (string, float64, bool) {
	var bestName string
	var best float64
	found := false
	for _, row := range t.Rows {
		f, ok := dataset.ToFloat(row[valueCol])
		if !ok {
			continue
		}
		if !found || f > best {
			best = f
			bestName = dataset.FormatValue(row[nameCol])
			found = true
		}
	}
	return bestName, best, found
}

// commaFloat renders a float with thousands separators.
func commaFloat(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}

	out := b.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
