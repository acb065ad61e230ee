package query

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Aliases is the static alias configuration injected into the engine: the
// synonym-to-canonical column mapping, the set of revenue-like names, and
// the virtual columns allowed to resolve before they physically exist.
//
// The table is process-wide configuration, not mutable state; tests inject
// their own instance instead of patching a global.
type Aliases struct {
	Columns     map[string]string `yaml:"columns"`
	RevenueLike []string          `yaml:"revenue_like"`
	Virtual     []string          `yaml:"virtual"`
}

// DefaultAliases returns the built-in alias table for the churn dataset.
func DefaultAliases() Aliases {
	return Aliases{
		Columns: map[string]string{
			"customer_name": ColCompanyName,
			"client_name":   ColCompanyName,
			"account_name":  ColCompanyName,
			"company":       ColCompanyName,
			"customer":      ColCompanyName,
			"client":        ColCompanyName,
			"name":          ColCompanyName,

			"revenue":        ColPeriodRevenue,
			"total_revenue":  ColPeriodRevenue,
			"revenue_usd":    ColPeriodRevenue,
			"period_revenue": ColPeriodRevenue,
			"mrr":            ColMRR,
			"arr":            ColMRR,

			"start_date":          ColContractStart,
			"end_date":            ColContractEnd,
			"contract_start_date": ColContractStart,
			"contract_end_date":   ColContractEnd,

			// Bare "churn" stays mapped to the binary flag; the planner's
			// sanitize pass switches it to the probability column when a
			// filter threshold exceeds 1.
			"is_churn":   ColChurn,
			"churn_flag": ColChurn,

			"churn_probability":    ColChurnProbability,
			"churn_prob":           ColChurnProbability,
			"churn_risk":           ColChurnProbability,
			"probability_of_churn": ColChurnProbability,

			"services_used":      "services_used_count",
			"service_count":      "services_used_count",
			"num_services":       "services_used_count",
			"number_of_services": "services_used_count",

			"feedback_text":     "feedback",
			"customer_feedback": "feedback",
			"notes":             "feedback",
		},
		RevenueLike: []string{
			ColPeriodRevenue, "revenue", "total_revenue",
			"revenue_usd", "period_revenue", ColMRR,
		},
		Virtual: []string{ColPeriodRevenue},
	}
}

// LoadAliases reads an alias table from a YAML file. Sections left empty in
// the file fall back to the built-in defaults, so an override file may list
// only extra column synonyms.
func LoadAliases(path string) (Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Aliases{}, fmt.Errorf("failed to read aliases file: %w", err)
	}

	var loaded Aliases
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Aliases{}, fmt.Errorf("failed to parse aliases file: %w", err)
	}

	defaults := DefaultAliases()
	if loaded.Columns == nil {
		loaded.Columns = defaults.Columns
	} else {
		for k, v := range defaults.Columns {
			if _, ok := loaded.Columns[k]; !ok {
				loaded.Columns[k] = v
			}
		}
	}
	if len(loaded.RevenueLike) == 0 {
		loaded.RevenueLike = defaults.RevenueLike
	}
	if len(loaded.Virtual) == 0 {
		loaded.Virtual = defaults.Virtual
	}
	return loaded, nil
}

// Canonical returns the canonical column for an alias, looked up
// case-insensitively. ok is false when no alias entry exists.
func (a Aliases) Canonical(name string) (string, bool) {
	mapped, ok := a.Columns[lower(name)]
	return mapped, ok
}

// IsVirtual reports whether the name is allowed to resolve before the
// engine materializes it.
func (a Aliases) IsVirtual(name string) bool {
	for _, v := range a.Virtual {
		if v == name {
			return true
		}
	}
	return false
}

// IsRevenueLike reports whether the name refers to the revenue metric in
// any of its accepted spellings.
func (a Aliases) IsRevenueLike(name string) bool {
	for _, v := range a.RevenueLike {
		if v == name {
			return true
		}
	}
	return false
}
