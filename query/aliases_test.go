package query

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultAliases(t *testing.T) {
	a := DefaultAliases()

	tests := []struct {
		alias string
		want  string
	}{
		{"customer", ColCompanyName},
		{"revenue", ColPeriodRevenue},
		{"arr", ColMRR},
		{"churn_risk", ColChurnProbability},
		{"is_churn", ColChurn},
		{"notes", "feedback"},
	}
	for _, tt := range tests {
		got, ok := a.Canonical(tt.alias)
		if !ok || got != tt.want {
			t.Errorf("Canonical(%q) = %q, %v; want %q, true", tt.alias, got, ok, tt.want)
		}
	}

	if !a.IsVirtual(ColPeriodRevenue) {
		t.Errorf("expected %s to be virtual", ColPeriodRevenue)
	}
	if a.IsVirtual(ColMRR) {
		t.Errorf("did not expect %s to be virtual", ColMRR)
	}
	if !a.IsRevenueLike(ColMRR) || !a.IsRevenueLike("total_revenue") {
		t.Error("expected mrr_usd and total_revenue to be revenue-like")
	}
	if a.IsRevenueLike(ColChurn) {
		t.Error("did not expect churn to be revenue-like")
	}
}

func TestLoadAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := `columns:
  top_customer: company_name
  spend: mrr_usd
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write aliases file: %v", err)
	}

	a, err := LoadAliases(path)
	if err != nil {
		t.Fatalf("LoadAliases() error = %v", err)
	}

	// File entries are present.
	if got, ok := a.Canonical("top_customer"); !ok || got != ColCompanyName {
		t.Errorf("Canonical(top_customer) = %q, %v", got, ok)
	}
	if got, ok := a.Canonical("spend"); !ok || got != ColMRR {
		t.Errorf("Canonical(spend) = %q, %v", got, ok)
	}

	// Defaults merge underneath the file.
	if got, ok := a.Canonical("customer"); !ok || got != ColCompanyName {
		t.Errorf("Canonical(customer) = %q, %v; default mapping lost", got, ok)
	}
	if len(a.RevenueLike) == 0 || len(a.Virtual) == 0 {
		t.Error("empty sections should fall back to defaults")
	}
}

func TestLoadAliasesMissingFile(t *testing.T) {
	if _, err := LoadAliases(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
