package dataset

import (
	"testing"
	"time"
)

func churnFixtureRows() []ChurnParquetRow {
	return []ChurnParquetRow{
		{CompanyName: "Acme Security", Industry: "Finance", ContractStart: "2023-01-01", ContractEnd: "2023-12-31", MRRUSD: 100, Churn: 0},
		{CompanyName: "Borealis Labs", Industry: "Healthcare", ContractStart: "2023-03-01", ContractEnd: "2024-02-29", MRRUSD: 250, Churn: 1},
		{CompanyName: "Dune Analytics", Industry: "Retail", ContractStart: "2023-06-01", ContractEnd: "2024-05-31", MRRUSD: 80, Churn: 0},
	}
}

func TestLoadParquet(t *testing.T) {
	path := WriteChurnParquetFile(t, churnFixtureRows())

	tbl, err := LoadParquet(path)
	if err != nil {
		t.Fatalf("LoadParquet failed: %v", err)
	}

	if tbl.Len() != 3 {
		t.Fatalf("row count = %d, want 3", tbl.Len())
	}

	wantTypes := map[string]ColumnType{
		"company_name":   String,
		"industry":       String,
		"contract_start": Date,
		"contract_end":   Date,
		"mrr_usd":        Numeric,
		"churn":          Numeric,
	}
	for col, want := range wantTypes {
		if !tbl.HasColumn(col) {
			t.Fatalf("missing column %s, have %v", col, tbl.Columns)
		}
		if got := tbl.Type(col); got != want {
			t.Errorf("column %s inferred as %s, want %s", col, got, want)
		}
	}

	if got := tbl.Rows[0]["company_name"]; got != "Acme Security" {
		t.Errorf("company_name[0] = %v, want Acme Security", got)
	}
	if got := tbl.Rows[1]["mrr_usd"]; got != 250.0 {
		t.Errorf("mrr_usd[1] = %v (%T), want float64 250", got, got)
	}
	// Integer parquet columns come back as float64 cells.
	if got := tbl.Rows[1]["churn"]; got != 1.0 {
		t.Errorf("churn[1] = %v (%T), want float64 1", got, got)
	}
	start, ok := tbl.Rows[2]["contract_start"].(time.Time)
	if !ok || start.Format("2006-01-02") != "2023-06-01" {
		t.Errorf("contract_start[2] = %v, want 2023-06-01", tbl.Rows[2]["contract_start"])
	}
}

func TestLoadDispatchesParquet(t *testing.T) {
	path := WriteChurnParquetFile(t, churnFixtureRows())

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tbl.Len() != 3 {
		t.Errorf("row count = %d, want 3", tbl.Len())
	}
}

func TestLoadParquetMissingFile(t *testing.T) {
	if _, err := LoadParquet("does-not-exist.parquet"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
