package query

import "strings"

// Resolver maps caller-supplied column references to canonical column
// names. Resolution is total: a reference that cannot be mapped yields
// ok=false and is dropped by every consumer, never an error, so a plan
// with a few bad references still produces a usable result.
type Resolver struct {
	aliases Aliases
}

// NewResolver builds a resolver over an alias table.
func NewResolver(aliases Aliases) *Resolver {
	return &Resolver{aliases: aliases}
}

// Aliases returns the alias table the resolver was built with.
func (r *Resolver) Aliases() Aliases {
	return r.aliases
}

// Resolve maps a reference to a canonical column name present in the
// schema or promised as a virtual column.
//
// Resolution order: an exact match on the trimmed, lower-cased name always
// wins; then the name is looked up in the alias table and the mapped name
// must itself be in schema or virtual. Anything else is unresolved.
func (r *Resolver) Resolve(ref ColumnRef, schema map[string]bool) (string, bool) {
	name := lower(ref.Name())
	if name == "" {
		return "", false
	}
	if schema[name] || r.aliases.IsVirtual(name) {
		return name, true
	}
	if mapped, ok := r.aliases.Canonical(name); ok {
		if schema[mapped] || r.aliases.IsVirtual(mapped) {
			return mapped, true
		}
	}
	return "", false
}

// ResolveList resolves a reference list, de-duplicating while preserving
// first-seen order and dropping unresolved entries.
func (r *Resolver) ResolveList(refs []ColumnRef, schema map[string]bool) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		col, ok := r.Resolve(ref, schema)
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, col)
	}
	return out
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
