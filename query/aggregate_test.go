package query

import (
	"math"
	"reflect"
	"testing"

	"github.com/csvchat/csvchat/dataset"
)

func TestGroupByRevenue(t *testing.T) {
	d := &Descriptor{
		GroupBy:      Refs("industry"),
		Aggregations: map[string]AggKind{ColPeriodRevenue: AggSum},
	}
	out, err := Execute(dataset.SampleChurnTable(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	wantCols := []string{"industry", "period_revenue_usd", "mrr_usd"}
	if !reflect.DeepEqual(out.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", out.Columns, wantCols)
	}

	// Groups come back in ascending key order.
	want := []map[string]interface{}{
		{"industry": "Finance", "period_revenue_usd": 10450.0, "mrr_usd": 650.0},
		{"industry": "Healthcare", "period_revenue_usd": 3250.0, "mrr_usd": 250.0},
		{"industry": "Retail", "period_revenue_usd": 1040.0, "mrr_usd": 80.0},
	}
	if !reflect.DeepEqual(out.Rows, want) {
		t.Errorf("rows = %v, want %v", out.Rows, want)
	}
}

func TestGroupByChurnRate(t *testing.T) {
	d := &Descriptor{
		GroupBy:      Refs("segment"),
		Aggregations: map[string]AggKind{ColChurn: AggMean},
	}
	out, err := Execute(dataset.SampleChurnTable(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// A mean over the binary churn flag is reported as churn_rate.
	wantCols := []string{"segment", "churn_rate", "mrr_usd"}
	if !reflect.DeepEqual(out.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", out.Columns, wantCols)
	}
	if out.HasColumn(ColChurn) {
		t.Error("raw churn column should be renamed after a mean")
	}

	if len(out.Rows) != 2 {
		t.Fatalf("got %d groups, want 2", len(out.Rows))
	}
	ent, smb := out.Rows[0], out.Rows[1]
	if math.Abs(ent["churn_rate"].(float64)-(1.0/3.0)) > 1e-9 {
		t.Errorf("Enterprise churn_rate = %v, want 1/3", ent["churn_rate"])
	}
	if smb["churn_rate"] != 0.5 {
		t.Errorf("SMB churn_rate = %v, want 0.5", smb["churn_rate"])
	}
}

func TestGroupByFilteredColumnKeptVisible(t *testing.T) {
	d := &Descriptor{
		GroupBy: Refs("company_name"),
		Filters: []Filter{
			{Col: Ref("churn_probability_percent"), Op: OpGreater, Value: ScalarValue(50)},
		},
	}
	out, err := Execute(dataset.SampleChurnTable(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Churn probability rides along under max so the grouped view still
	// shows the worst case; revenue measures appear by default.
	wantCols := []string{"company_name", "mrr_usd", "churn_probability_percent"}
	if !reflect.DeepEqual(out.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", out.Columns, wantCols)
	}
	want := []map[string]interface{}{
		{"company_name": "Acme Security", "mrr_usd": 150.0, "churn_probability_percent": 60.0},
		{"company_name": "Borealis Labs", "mrr_usd": 250.0, "churn_probability_percent": 85.0},
	}
	if !reflect.DeepEqual(out.Rows, want) {
		t.Errorf("rows = %v, want %v", out.Rows, want)
	}
}

func TestGroupByCardinality(t *testing.T) {
	d := &Descriptor{
		GroupBy:      Refs("region"),
		Aggregations: map[string]AggKind{ColCompanyName: AggNunique},
	}
	out, err := Execute(dataset.SampleChurnTable(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	byRegion := make(map[string]interface{}, len(out.Rows))
	for _, row := range out.Rows {
		byRegion[row["region"].(string)] = row[ColCompanyName]
	}
	want := map[string]interface{}{"APAC": 1.0, "EU": 1.0, "NA": 2.0}
	if !reflect.DeepEqual(byRegion, want) {
		t.Errorf("distinct companies per region = %v, want %v", byRegion, want)
	}
}

func TestGroupByInvalidAggregations(t *testing.T) {
	d := &Descriptor{
		GroupBy: Refs("segment"),
		// A sum over a string column, an unknown column, and an
		// unsupported kind are all silently dropped.
		Aggregations: map[string]AggKind{
			"company_name":   AggSum,
			"no_such_column": AggMean,
			"mrr_usd":        AggKind("stddev"),
		},
	}
	out, err := Execute(dataset.SampleChurnTable(), d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Every explicit entry is rejected, so the default revenue measure
	// carries the group.
	wantCols := []string{"segment", "mrr_usd"}
	if !reflect.DeepEqual(out.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", out.Columns, wantCols)
	}
	if out.Rows[0]["mrr_usd"] != 650.0 || out.Rows[1]["mrr_usd"] != 330.0 {
		t.Errorf("rows = %v", out.Rows)
	}
}

func TestGroupByExcludesNilKeys(t *testing.T) {
	src := dataset.SampleChurnTable()
	src.Rows[2]["region"] = nil

	d := &Descriptor{
		GroupBy:      Refs("region"),
		Aggregations: map[string]AggKind{ColMRR: AggSum},
	}
	out, err := Execute(src, d)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	byRegion := make(map[string]interface{}, len(out.Rows))
	for _, row := range out.Rows {
		byRegion[row["region"].(string)] = row[ColMRR]
	}
	want := map[string]interface{}{"APAC": 80.0, "EU": 250.0, "NA": 250.0}
	if !reflect.DeepEqual(byRegion, want) {
		t.Errorf("mrr per region = %v, want %v", byRegion, want)
	}
}

func TestComputeAggregate(t *testing.T) {
	rows := []map[string]interface{}{
		{"v": 10.0}, {"v": nil}, {"v": 30.0}, {"v": 10.0},
	}

	tests := []struct {
		kind AggKind
		want interface{}
	}{
		{AggSum, 50.0},
		{AggMean, 50.0 / 3.0},
		{AggMax, 30.0},
		{AggCount, 3.0},
		{AggNunique, 2.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := computeAggregate(tt.kind, rows, "v"); got != tt.want {
				t.Errorf("computeAggregate(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}

	t.Run("mean of empty group is nil", func(t *testing.T) {
		empty := []map[string]interface{}{{"v": nil}}
		if got := computeAggregate(AggMean, empty, "v"); got != nil {
			t.Errorf("mean = %v, want nil", got)
		}
	})
}
