package planner

import (
	"encoding/json"
	"testing"

	"github.com/csvchat/csvchat/query"
)

func TestParsePlan(t *testing.T) {
	raw := `{
		"steps": [
			{"tool": "query", "args": {"select": ["company_name"], "limit": 3}},
			{"tool": "chart", "args": {"x": "company_name", "y": "mrr_usd", "title": "MRR"}},
			{"tool": "narrate", "args": {"focus": "retention"}}
		]
	}`

	p, err := ParsePlan([]byte(raw))
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if p.ID == "" {
		t.Error("plan should be stamped with an ID")
	}
	if len(p.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(p.Steps))
	}

	q := p.Steps[0]
	if q.Tool != ToolQuery || q.Query == nil {
		t.Fatalf("step 0 = %+v, want query step", q)
	}
	if q.Query.Limit != 3 || q.Query.Select[0].Name() != "company_name" {
		t.Errorf("query args = %+v", q.Query)
	}

	c := p.Steps[1]
	if c.Tool != ToolChart || c.Chart == nil || c.Chart.Y != "mrr_usd" {
		t.Errorf("chart step = %+v", c)
	}

	n := p.Steps[2]
	if n.Tool != ToolNarrate || n.Narrate == nil || n.Narrate.Focus != "retention" {
		t.Errorf("narrate step = %+v", n)
	}

	if !p.HasQuery() {
		t.Error("HasQuery() = false, want true")
	}
}

func TestParsePlanToleratesUnknownToolAndMissingArgs(t *testing.T) {
	raw := `{"steps": [{"tool": "explain"}, {"tool": "narrate"}]}`
	p, err := ParsePlan([]byte(raw))
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if p.Steps[0].Tool != "explain" || p.Steps[0].Query != nil {
		t.Errorf("unknown tool step = %+v", p.Steps[0])
	}
	if p.Steps[1].Narrate == nil {
		t.Error("missing args should decode as zero-valued narrate args")
	}
	if p.HasQuery() {
		t.Error("HasQuery() = true, want false")
	}
}

func TestStepRoundTrip(t *testing.T) {
	step := Step{
		Tool: ToolQuery,
		Query: &query.Descriptor{
			Select: query.Refs("company_name"),
			Limit:  5,
		},
	}
	data, err := json.Marshal(step)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back Step
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.Tool != ToolQuery || back.Query == nil || back.Query.Limit != 5 {
		t.Errorf("round-tripped step = %+v", back)
	}
}

func TestFallbackPlan(t *testing.T) {
	p := FallbackPlan()
	if !p.HasQuery() {
		t.Fatal("fallback plan must contain a query step")
	}
	if len(p.Steps) != 3 {
		t.Fatalf("got %d steps, want query, chart, narrate", len(p.Steps))
	}

	q := p.Steps[0].Query
	if q.Limit != 5 || !q.Computed {
		t.Errorf("fallback query = %+v", q)
	}
	if q.Aggregations[query.ColPeriodRevenue] != query.AggSum {
		t.Errorf("fallback aggregations = %v", q.Aggregations)
	}
	if len(q.OrderBy) != 1 || !q.OrderBy[0].Desc {
		t.Errorf("fallback order = %+v", q.OrderBy)
	}
}
