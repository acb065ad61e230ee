package query

import (
	"encoding/json"
	"testing"
)

func TestDescriptorUnmarshalLenientForms(t *testing.T) {
	// The upstream planner emits columns as strings, objects, or
	// aggregate expressions, and order_by entries as bare strings.
	raw := `{
		"select": ["company_name", {"col": "mrr_usd"}, {"expr": "sum(period_revenue_usd)"}],
		"filters": [
			{"col": "churn_probability_percent", "op": ">", "value": 50},
			{"col": "mrr_usd", "op": "between", "value": {"start": 100, "end": 300}},
			{"col": "region", "op": "in", "value": ["NA", "EU"]}
		],
		"group_by": [{"column": "industry"}],
		"aggregations": {"mrr_usd": "sum"},
		"order_by": ["period_revenue_usd", {"col": "mrr_usd", "desc": false}],
		"time_window": {"start": "2024-01-01", "end": "2024-12-31"},
		"limit": 5
	}`

	var d Descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	wantSelect := []string{"company_name", "mrr_usd", "period_revenue_usd"}
	for i, want := range wantSelect {
		if got := d.Select[i].Name(); got != want {
			t.Errorf("select[%d] = %q, want %q", i, got, want)
		}
	}

	if got := d.Filters[0].Value.Scalar; got != 50.0 {
		t.Errorf("scalar filter value = %v, want 50", got)
	}
	lo, hi, ok := d.Filters[1].Value.Bounds()
	if !ok || lo != 100.0 || hi != 300.0 {
		t.Errorf("range bounds = %v..%v, %v", lo, hi, ok)
	}
	if elems := d.Filters[2].Value.Elements(); len(elems) != 2 || elems[0] != "NA" {
		t.Errorf("list elements = %v", elems)
	}

	if got := d.GroupBy[0].Name(); got != "industry" {
		t.Errorf("group_by[0] = %q", got)
	}
	if d.Aggregations["mrr_usd"] != AggSum {
		t.Errorf("aggregations = %v", d.Aggregations)
	}

	// A bare order_by string defaults to descending.
	if !d.OrderBy[0].Desc || d.OrderBy[0].Col.Name() != "period_revenue_usd" {
		t.Errorf("order_by[0] = %+v", d.OrderBy[0])
	}
	if d.OrderBy[1].Desc {
		t.Errorf("order_by[1] should be ascending")
	}

	if d.TimeWindow == nil || d.TimeWindow.Start != "2024-01-01" {
		t.Errorf("time_window = %+v", d.TimeWindow)
	}
	if d.Limit != 5 {
		t.Errorf("limit = %d", d.Limit)
	}
}

func TestFilterValueTwoElementListAsRange(t *testing.T) {
	var v FilterValue
	if err := json.Unmarshal([]byte(`[100, 300]`), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	lo, hi, ok := v.Bounds()
	if !ok || lo != 100.0 || hi != 300.0 {
		t.Errorf("bounds = %v..%v, %v", lo, hi, ok)
	}
}

func TestDescriptorClone(t *testing.T) {
	d := &Descriptor{
		Select:       Refs("company_name"),
		Aggregations: map[string]AggKind{ColMRR: AggSum},
		TimeWindow:   &TimeWindow{Start: "2024-01-01", End: "2024-12-31"},
	}
	c := d.Clone()
	c.Select[0] = Ref("region")
	c.Aggregations[ColMRR] = AggMean
	c.TimeWindow.Start = "1999-01-01"

	if d.Select[0].Name() != "company_name" {
		t.Error("clone shares select slice")
	}
	if d.Aggregations[ColMRR] != AggSum {
		t.Error("clone shares aggregations map")
	}
	if d.TimeWindow.Start != "2024-01-01" {
		t.Error("clone shares time window")
	}
}
