package config

import (
	"sort"
	"strings"
)

// Canonical returns the canonical stringification of g: a sorted,
// order-independent serialization used both as the Authorization Group
// Key (map key within a type) and as the input to index name hashing.
func (g AllowedGroups) Canonical() string {
	sorted := make(AllowedGroups, len(g))
	copy(sorted, g)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].variablesKey() < sorted[j].variablesKey()
	})
	parts := make([]string, len(sorted))
	for i, group := range sorted {
		parts[i] = group.Name + "|" + group.variablesKey()
	}
	return strings.Join(parts, ";")
}

func (g AllowedGroup) variablesKey() string {
	if len(g.Variables) == 0 {
		return ""
	}
	keys := make([]string, 0, len(g.Variables))
	for k := range g.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + g.Variables[k]
	}
	return strings.Join(parts, ",")
}

// Sorted returns a copy of g sorted into canonical order — used wherever
// callers need the actual elements (e.g. additive_indexes singleton
// subsets), not just the serialized key.
func (g AllowedGroups) Sorted() AllowedGroups {
	sorted := make(AllowedGroups, len(g))
	copy(sorted, g)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].variablesKey() < sorted[j].variablesKey()
	})
	return sorted
}

// Singletons returns the one-element AllowedGroups wrapping each single
// element of g, used when expanding additive indexes into their
// per-group variants.
func (g AllowedGroups) Singletons() []AllowedGroups {
	out := make([]AllowedGroups, 0, len(g))
	for _, elem := range g {
		out = append(out, AllowedGroups{elem})
	}
	return out
}
