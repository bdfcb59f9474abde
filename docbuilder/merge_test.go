package docbuilder

import (
	"errors"
	"reflect"
	"testing"

	"github.com/deltasync/deltasync/indexsyncerrors"
)

func TestSmartMergeNilSides(t *testing.T) {
	a := Document{"title": "one"}
	merged, err := SmartMerge(nil, a)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !reflect.DeepEqual(merged, a) {
		t.Errorf("expected %v, got %v", a, merged)
	}
	merged, err = SmartMerge(a, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !reflect.DeepEqual(merged, a) {
		t.Errorf("expected %v, got %v", a, merged)
	}
}

func TestSmartMergeListsDedup(t *testing.T) {
	a := Document{"tags": []any{"x", "y"}}
	b := Document{"tags": []any{"y", "z"}}
	merged, err := SmartMerge(a, b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	tags, ok := merged["tags"].([]any)
	if !ok || len(tags) != 3 {
		t.Fatalf("expected 3 deduped tags, got %v", merged["tags"])
	}
}

func TestSmartMergeScalarsBecomeList(t *testing.T) {
	a := Document{"title": "one"}
	b := Document{"title": "two"}
	merged, err := SmartMerge(a, b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	title, ok := merged["title"].([]any)
	if !ok || len(title) != 2 {
		t.Fatalf("expected 2-element list, got %v", merged["title"])
	}
}

func TestSmartMergeNestedMaps(t *testing.T) {
	a := Document{"author": Document{"name": "a"}}
	b := Document{"author": Document{"email": "b@example.com"}}
	merged, err := SmartMerge(a, b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	author, ok := merged["author"].(Document)
	if !ok || author["name"] != "a" || author["email"] != "b@example.com" {
		t.Fatalf("expected merged author map, got %v", merged["author"])
	}
}

func TestSmartMergeMapVsScalarConflicts(t *testing.T) {
	a := Document{"author": Document{"name": "a"}}
	b := Document{"author": "scalar"}
	_, err := SmartMerge(a, b)
	if !errors.Is(err, indexsyncerrors.ErrMergeConflict) {
		t.Fatalf("expected ErrMergeConflict, got %v", err)
	}
}

func TestDenumerate(t *testing.T) {
	if v := Denumerate(nil); v != nil {
		t.Errorf("expected nil for empty, got %v", v)
	}
	if v := Denumerate([]any{"x"}); v != "x" {
		t.Errorf("expected singleton unwrap, got %v", v)
	}
	if v := Denumerate([]any{"x", "y"}); !reflect.DeepEqual(v, []any{"x", "y"}) {
		t.Errorf("expected list unchanged, got %v", v)
	}
}
