package docbuilder

import (
	"encoding/json"
	"fmt"

	"github.com/deltasync/deltasync/indexsyncerrors"
)

// SmartMerge recursively merges two document maps: either side nil yields
// the other; two lists concatenate and dedup; a list and a scalar append
// and dedup; two maps recurse; two scalars become a deduplicated
// two-element list; anything else is a MergeConflict.
func SmartMerge(a, b Document) (Document, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	out := make(Document, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bVal := range b {
		aVal, ok := out[k]
		if !ok {
			out[k] = bVal
			continue
		}
		merged, err := mergeValue(aVal, bVal)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = merged
	}
	return out, nil
}

func mergeValue(a, b any) (any, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	aList, aIsList := a.([]any)
	bList, bIsList := b.([]any)
	switch {
	case aIsList && bIsList:
		return dedupAppend(aList, bList...), nil
	case aIsList && !bIsList:
		return dedupAppend(aList, b), nil
	case !aIsList && bIsList:
		return dedupAppend(bList, a), nil
	}

	aMap, aIsMap := a.(Document)
	bMap, bIsMap := b.(Document)
	if aIsMap && bIsMap {
		return SmartMerge(aMap, bMap)
	}
	if aIsMap != bIsMap {
		// One side is a map, the other a scalar: no reconciliation rule
		// covers this shape.
		return nil, indexsyncerrors.ErrMergeConflict
	}

	// Two scalars: a deduplicated two-element list.
	return dedupAppend([]any{a}, b), nil
}

func dedupAppend(list []any, extra ...any) []any {
	out := make([]any, 0, len(list)+len(extra))
	seen := make(map[string]struct{}, len(list)+len(extra))
	add := func(v any) {
		key := dedupKey(v)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	for _, v := range list {
		add(v)
	}
	for _, v := range extra {
		add(v)
	}
	return out
}

func dedupKey(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}
