package dataset

import (
	"math"
	"testing"
	"time"
)

func TestToFloat(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  float64
		ok    bool
	}{
		{"float64", 3.5, 3.5, true},
		{"float32", float32(2), 2, true},
		{"int", 7, 7, true},
		{"int32", int32(-4), -4, true},
		{"int64", int64(9), 9, true},
		{"bool true", true, 1, true},
		{"bool false", false, 0, true},
		{"numeric string", "12.25", 12.25, true},
		{"non-numeric string", "hello", 0, false},
		{"nil", nil, 0, false},
		{"time", time.Now(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat(tt.input)
			if ok != tt.ok {
				t.Fatalf("ToFloat(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ToFloat(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
		ok    bool
	}{
		{"iso date", "2023-06-15", "2023-06-15", true},
		{"iso datetime", "2023-06-15 10:30:00", "2023-06-15", true},
		{"rfc3339", "2023-06-15T10:30:00Z", "2023-06-15", true},
		{"slash ymd", "2023/06/15", "2023-06-15", true},
		{"slash mdy", "06/15/2023", "2023-06-15", true},
		{"time value", time.Date(2023, 6, 15, 22, 11, 0, 0, time.UTC), "2023-06-15", true},
		{"not a date", "soon", "", false},
		{"number", 42.0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDate(%v) = %v, want %s", tt.input, got, tt.want)
			}
			if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
				t.Errorf("ParseDate(%v) kept a time-of-day component: %v", tt.input, got)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"nil", nil, ""},
		{"string", "Acme", "Acme"},
		{"whole float", 1300.0, "1300"},
		{"fractional float", 0.25, "0.25"},
		{"bool", true, "true"},
		{"date", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.input); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTableProject(t *testing.T) {
	tbl := SampleChurnTable()

	out := tbl.Project([]string{"mrr_usd", "company_name", "no_such_column"})

	want := []string{"mrr_usd", "company_name"}
	if len(out.Columns) != len(want) {
		t.Fatalf("Project columns = %v, want %v", out.Columns, want)
	}
	for i, c := range want {
		if out.Columns[i] != c {
			t.Errorf("Project column %d = %q, want %q", i, out.Columns[i], c)
		}
	}
	if !out.IsNumeric("mrr_usd") {
		t.Error("Project dropped the mrr_usd column type")
	}
	if out.Len() != tbl.Len() {
		t.Errorf("Project row count = %d, want %d", out.Len(), tbl.Len())
	}
}

func TestTableCloneRows(t *testing.T) {
	tbl := SampleChurnTable()
	clone := tbl.CloneRows()

	clone.Rows[0]["mrr_usd"] = 9999.0
	clone.Columns[0] = "renamed"

	if got := tbl.Rows[0]["mrr_usd"]; got != 100.0 {
		t.Errorf("CloneRows mutation leaked into source row: mrr_usd = %v", got)
	}
	if tbl.Columns[0] != "company_name" {
		t.Errorf("CloneRows mutation leaked into source columns: %v", tbl.Columns)
	}
}

func TestTableWithRows(t *testing.T) {
	tbl := SampleChurnTable()
	subset := tbl.WithRows(tbl.Rows[:2])

	if subset.Len() != 2 {
		t.Fatalf("WithRows length = %d, want 2", subset.Len())
	}
	if len(subset.Columns) != len(tbl.Columns) {
		t.Errorf("WithRows columns = %v, want same as source", subset.Columns)
	}
	// Row maps are shared, so a cell write is visible on both sides.
	subset.Rows[0]["segment"] = "Mid-Market"
	if tbl.Rows[0]["segment"] != "Mid-Market" {
		t.Error("WithRows should share row maps with the source")
	}
	tbl.Rows[0]["segment"] = "Enterprise"
}

func TestTableSchemaAndTypes(t *testing.T) {
	tbl := SampleChurnTable()

	schema := tbl.Schema()
	if len(schema) != len(tbl.Columns) {
		t.Fatalf("Schema size = %d, want %d", len(schema), len(tbl.Columns))
	}
	if !schema["churn_probability_percent"] {
		t.Error("Schema missing churn_probability_percent")
	}

	if !tbl.HasColumn("region") || tbl.HasColumn("missing") {
		t.Error("HasColumn gave wrong answers")
	}
	if !tbl.IsNumeric("mrr_usd") || tbl.IsNumeric("industry") {
		t.Error("IsNumeric gave wrong answers")
	}
	if !tbl.IsDate("contract_start") || tbl.IsDate("feedback") {
		t.Error("IsDate gave wrong answers")
	}
	if tbl.Type("unknown_column") != String {
		t.Error("Type of an unknown column should default to String")
	}
}

func TestTableValue(t *testing.T) {
	tbl := SampleChurnTable()

	if got := tbl.Value(0, "company_name"); got != "Acme Security" {
		t.Errorf("Value(0, company_name) = %v, want Acme Security", got)
	}
	if got := tbl.Value(-1, "company_name"); got != nil {
		t.Errorf("Value(-1, ...) = %v, want nil", got)
	}
	if got := tbl.Value(tbl.Len(), "company_name"); got != nil {
		t.Errorf("Value(out of range) = %v, want nil", got)
	}
}
