package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// RequiredColumns are the columns the enrichment pipeline depends on.
var RequiredColumns = []string{"company_name", "mrr_usd", "contract_start", "contract_end"}

// feedbackTemplates are the canned feedback lines assigned to rows that
// arrive without a feedback column.
var feedbackTemplates = []string{
	"Great coverage, but onboarding took longer than expected.",
	"Seeing value, but need better alert tuning.",
	"Performance is solid; support response could be faster.",
	"Considering expansion if we can consolidate tools.",
	"Struggling with adoption in 1-2 teams; need training.",
}

// ValidateRequired checks that the enrichment source columns exist.
func ValidateRequired(t *Table) error {
	for _, col := range RequiredColumns {
		if !t.HasColumn(col) {
			return fmt.Errorf("missing required column: %s", col)
		}
	}
	return nil
}

// Enrich derives the churn-analytics columns the chat engine expects:
// churn_probability_percent, services_used_count, and feedback. Columns
// already present are kept and only clamped to their valid ranges. The
// derivation is deterministic for a fixed seed.
func Enrich(t *Table, seed int64) *Table {
	rng := rand.New(rand.NewSource(seed))
	out := t.CloneRows()

	if !out.HasColumn("churn_probability_percent") {
		out.Columns = append(out.Columns, "churn_probability_percent")
		out.Types["churn_probability_percent"] = Numeric
		for _, row := range out.Rows {
			base := rng.NormFloat64()*10 + 20
			if tickets, ok := ToFloat(row["support_tickets_90d"]); ok {
				base += tickets * 1.5
			}
			if failed, ok := ToFloat(row["failed_payments_180d"]); ok {
				base += failed * 2.0
			}
			if adoption, ok := ToFloat(row["feature_adoption_rate"]); ok {
				base += (1 - adoption) * 30
			}
			row["churn_probability_percent"] = clamp(math.Round(base), 1, 100)
		}
	}

	if !out.HasColumn("services_used_count") {
		out.Columns = append(out.Columns, "services_used_count")
		out.Types["services_used_count"] = Numeric
		for _, row := range out.Rows {
			row["services_used_count"] = float64(rng.Intn(10) + 1)
		}
	}

	if !out.HasColumn("feedback") {
		out.Columns = append(out.Columns, "feedback")
		out.Types["feedback"] = String
		for _, row := range out.Rows {
			row["feedback"] = feedbackTemplates[rng.Intn(len(feedbackTemplates))]
		}
	}

	// Clamp pre-existing columns into their documented ranges.
	clampColumn(out, "churn_probability_percent", 1, 100)
	clampColumn(out, "services_used_count", 1, 10)

	return out
}

func clampColumn(t *Table, col string, lo, hi float64) {
	if !t.HasColumn(col) {
		return
	}
	for _, row := range t.Rows {
		if f, ok := ToFloat(row[col]); ok {
			row[col] = clamp(f, lo, hi)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
