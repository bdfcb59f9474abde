package config

import "testing"

const sampleYAML = `
persist_indexes: true
additive_indexes: false
number_of_threads: 8
type_definitions:
  books:
    rdf_types:
      - "http://schema.org/Book"
    properties:
      title:
        path: ["http://purl.org/dc/terms/title"]
      author:
        kind: nested
        path: ["http://schema.org/author"]
        properties:
          name:
            path: ["http://schema.org/name"]
`

func TestParseAndFlatten(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	books := cfg.Model.Types["books"]
	if books == nil {
		t.Fatal("expected books type")
	}
	if !books.MatchesType("http://schema.org/Book") {
		t.Error("expected rdf_type match")
	}
	if !books.MatchesProperty("http://schema.org/name") {
		t.Error("expected flattened nested path to mention schema.org/name")
	}
	paths := books.FullPropertyPathsFor("http://schema.org/name")
	if len(paths) != 1 || len(paths[0]) != 2 {
		t.Fatalf("expected one 2-hop flattened path, got %+v", paths)
	}
}

func TestConfigsMatchingType(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	matches := cfg.Model.ConfigsMatchingType("http://schema.org/Book")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestCanonicalGroupsOrderIndependent(t *testing.T) {
	a := AllowedGroups{{Name: "b"}, {Name: "a"}}
	b := AllowedGroups{{Name: "a"}, {Name: "b"}}
	if a.Canonical() != b.Canonical() {
		t.Errorf("expected canonical form to be permutation-independent: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestInversePathStep(t *testing.T) {
	path := ParsePropertyPath([]string{"^http://purl.org/dc/terms/hasPart", "http://purl.org/dc/terms/title"})
	if !path[0].Inverse {
		t.Error("expected first step to be inverse")
	}
	if path[1].Inverse {
		t.Error("expected second step to be forward")
	}
}

func TestRejectsUnknownCompositeType(t *testing.T) {
	bad := `
type_definitions:
  a:
    rdf_types: ["http://ex/A"]
    composite_types: ["missing"]
`
	_, err := Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected error for unknown composite type")
	}
}
