package config

import "strings"

// PathStep is one predicate hop in a property path: either forward
// (subject -> object along predicate) or inverse (object -> subject,
// written "^predicate" in spec notation).
type PathStep struct {
	Predicate string
	Inverse   bool
}

func (s PathStep) String() string {
	if s.Inverse {
		return "^" + s.Predicate
	}
	return s.Predicate
}

// PropertyPath is an ordered sequence of predicate hops from a document
// root to a value.
type PropertyPath []PathStep

// Contains reports whether iri appears at any position in p, forward or
// inverse, and at which index.
func (p PropertyPath) Contains(iri string) (index int, found bool) {
	for i, step := range p {
		if step.Predicate == iri {
			return i, true
		}
	}
	return -1, false
}

// ParsePathStep parses a single path segment, recognizing a leading '^'
// as the inverse marker.
func ParsePathStep(segment string) PathStep {
	if strings.HasPrefix(segment, "^") {
		return PathStep{Predicate: strings.TrimPrefix(segment, "^"), Inverse: true}
	}
	return PathStep{Predicate: segment}
}

// ParsePropertyPath parses a slice of path segments such as those decoded
// from YAML (["^dct:hasPart", "dc:title"]).
func ParsePropertyPath(segments []string) PropertyPath {
	path := make(PropertyPath, 0, len(segments))
	for _, s := range segments {
		path = append(path, ParsePathStep(s))
	}
	return path
}

// SPARQLExpr renders p as a SPARQL 1.1 property path expression, e.g.
// "<a>/^<b>" for a two-hop path with an inverse second step.
func (p PropertyPath) SPARQLExpr() string {
	parts := make([]string, len(p))
	for i, step := range p {
		if step.Inverse {
			parts[i] = "^<" + step.Predicate + ">"
		} else {
			parts[i] = "<" + step.Predicate + ">"
		}
	}
	return strings.Join(parts, "/")
}
