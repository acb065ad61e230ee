package narrate

import (
	"strings"
	"testing"

	"github.com/csvchat/csvchat/dataset"
	"github.com/csvchat/csvchat/query"
)

func TestSummarizeEmpty(t *testing.T) {
	if n := Summarize(nil); !n.Empty() {
		t.Errorf("nil table narration = %+v", n)
	}
	empty := &dataset.Table{Columns: []string{"company_name"}}
	if n := Summarize(empty); !n.Empty() {
		t.Errorf("empty table narration = %+v", n)
	}
}

func TestSummarizeRevenueAndChurn(t *testing.T) {
	d := &query.Descriptor{
		Select:     query.Refs("company_name", "period_revenue_usd", "churn_probability_percent"),
		TimeWindow: &query.TimeWindow{Start: "2000-01-01", End: "2100-01-01"},
	}
	out, err := query.Execute(dataset.SampleChurnTable(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	n := Summarize(out)
	if len(n.Bullets) != 3 {
		t.Fatalf("bullets = %v", n.Bullets)
	}
	if n.Bullets[0] != "Total revenue in result: $14,740." {
		t.Errorf("total bullet = %q", n.Bullets[0])
	}
	if n.Bullets[1] != "Top account by revenue: Cobalt Networks ($7,200)." {
		t.Errorf("top bullet = %q", n.Bullets[1])
	}
	if !strings.HasPrefix(n.Bullets[2], "Avg churn risk: 43.0% (max 85%)") {
		t.Errorf("churn bullet = %q", n.Bullets[2])
	}
}

func TestSummarizeActions(t *testing.T) {
	t.Run("low adoption and high tickets", func(t *testing.T) {
		src := dataset.SampleChurnTable()
		for _, row := range src.Rows {
			row["feature_adoption_rate"] = 0.2
			row["support_tickets_90d"] = 9.0
		}
		n := Summarize(src)
		if len(n.Actions) != 2 {
			t.Fatalf("actions = %v", n.Actions)
		}
		if !strings.Contains(n.Actions[0], "adoption playbooks") {
			t.Errorf("action 0 = %q", n.Actions[0])
		}
		if !strings.Contains(n.Actions[1], "proactive support") {
			t.Errorf("action 1 = %q", n.Actions[1])
		}
	})

	t.Run("no signals fall back to generic actions", func(t *testing.T) {
		src := dataset.SampleChurnTable().Project([]string{"company_name", "mrr_usd"})
		n := Summarize(src)
		if len(n.Actions) != 3 {
			t.Fatalf("actions = %v", n.Actions)
		}
		if !strings.Contains(n.Actions[0], "executive check-in") {
			t.Errorf("action 0 = %q", n.Actions[0])
		}
	})
}

func TestCommaFloat(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     string
	}{
		{v: 0, decimals: 0, want: "0"},
		{v: 950, decimals: 0, want: "950"},
		{v: 14740, decimals: 0, want: "14,740"},
		{v: 1234567.5, decimals: 1, want: "1,234,567.5"},
		{v: -98765, decimals: 0, want: "-98,765"},
	}
	for _, tt := range tests {
		if got := commaFloat(tt.v, tt.decimals); got != tt.want {
			t.Errorf("commaFloat(%v, %d) = %q, want %q", tt.v, tt.decimals, got, tt.want)
		}
	}
}
