package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

// SampleChurnTable builds the small subscription/churn table used across the
// package tests. Shape mirrors the production dataset: identity and segment
// dimensions, contract dates, recurring revenue, and churn signals.
func SampleChurnTable() *Table {
	columns := []string{
		"company_name", "industry", "segment", "region",
		"signup_date", "contract_start", "contract_end",
		"mrr_usd", "churn", "churn_probability_percent",
		"support_tickets_90d", "feature_adoption_rate", "feedback",
	}
	types := map[string]ColumnType{
		"company_name": String, "industry": String, "segment": String, "region": String,
		"signup_date": Date, "contract_start": Date, "contract_end": Date,
		"mrr_usd": Numeric, "churn": Numeric, "churn_probability_percent": Numeric,
		"support_tickets_90d": Numeric, "feature_adoption_rate": Numeric, "feedback": String,
	}

	day := func(s string) time.Time {
		d, _ := ParseDate(s)
		return d
	}

	rows := []map[string]interface{}{
		{
			"company_name": "Acme Security", "industry": "Finance", "segment": "Enterprise", "region": "NA",
			"signup_date": day("2022-11-15"), "contract_start": day("2023-01-01"), "contract_end": day("2023-12-31"),
			"mrr_usd": 100.0, "churn": 0.0, "churn_probability_percent": 20.0,
			"support_tickets_90d": 2.0, "feature_adoption_rate": 0.8, "feedback": "Seeing value, but need better alert tuning.",
		},
		{
			"company_name": "Borealis Labs", "industry": "Healthcare", "segment": "SMB", "region": "EU",
			"signup_date": day("2023-02-01"), "contract_start": day("2023-03-01"), "contract_end": day("2024-02-29"),
			"mrr_usd": 250.0, "churn": 1.0, "churn_probability_percent": 85.0,
			"support_tickets_90d": 9.0, "feature_adoption_rate": 0.2, "feedback": "Struggling with adoption in 1-2 teams; need training.",
		},
		{
			"company_name": "Cobalt Networks", "industry": "Finance", "segment": "Enterprise", "region": "NA",
			"signup_date": day("2021-06-10"), "contract_start": day("2022-01-01"), "contract_end": day("2023-06-30"),
			"mrr_usd": 400.0, "churn": 0.0, "churn_probability_percent": 35.0,
			"support_tickets_90d": 4.0, "feature_adoption_rate": 0.6, "feedback": "Performance is solid; support response could be faster.",
		},
		{
			"company_name": "Acme Security", "industry": "Finance", "segment": "Enterprise", "region": "NA",
			"signup_date": day("2022-11-15"), "contract_start": day("2024-01-01"), "contract_end": day("2024-12-31"),
			"mrr_usd": 150.0, "churn": 1.0, "churn_probability_percent": 60.0,
			"support_tickets_90d": 7.0, "feature_adoption_rate": 0.4, "feedback": "Considering expansion if we can consolidate tools.",
		},
		{
			"company_name": "Dune Analytics", "industry": "Retail", "segment": "SMB", "region": "APAC",
			"signup_date": day("2023-05-20"), "contract_start": day("2023-06-01"), "contract_end": day("2024-05-31"),
			"mrr_usd": 80.0, "churn": 0.0, "churn_probability_percent": 15.0,
			"support_tickets_90d": 1.0, "feature_adoption_rate": 0.9, "feedback": "Great coverage, but onboarding took longer than expected.",
		},
	}

	return &Table{Columns: columns, Types: types, Rows: rows}
}

// ChurnParquetRow is the record shape used to write parquet fixtures.
type ChurnParquetRow struct {
	CompanyName   string  `parquet:"company_name"`
	Industry      string  `parquet:"industry"`
	ContractStart string  `parquet:"contract_start"`
	ContractEnd   string  `parquet:"contract_end"`
	MRRUSD        float64 `parquet:"mrr_usd"`
	Churn         int64   `parquet:"churn"`
}

// WriteChurnParquetFile writes rows to a temporary parquet file and returns
// its path. The file lives in the test's temp dir and needs no cleanup.
func WriteChurnParquetFile(t *testing.T, rows []ChurnParquetRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churn.parquet")

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create parquet fixture: %v", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[ChurnParquetRow](file)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("failed to write parquet fixture: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close parquet writer: %v", err)
	}
	return path
}
