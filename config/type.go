package config

// TypeDefinition is the typed view of one index definition: the rdf_type(s)
// it covers, the fields it projects, and — for composite indexes — the
// sibling type_names it fuses.
type TypeDefinition struct {
	TypeName       string
	RDFTypes       []string
	Properties     map[string]*PropertyDefinition
	CompositeTypes []string
	Mappings       map[string]any
	Settings       map[string]any

	flattened []FlattenedPath
}

// MatchesType reports whether iri is one of this type's rdf_types.
func (d *TypeDefinition) MatchesType(iri string) bool {
	for _, t := range d.RDFTypes {
		if t == iri {
			return true
		}
	}
	return false
}

// IsCompositeIndex reports whether this type definition fuses multiple
// sub-type definitions for the same resource.
func (d *TypeDefinition) IsCompositeIndex() bool {
	return len(d.CompositeTypes) > 0
}

// RelatedRDFTypes returns all rdf_types considered authoritative for
// membership in this type definition.
func (d *TypeDefinition) RelatedRDFTypes() []string {
	return d.RDFTypes
}

// flattenedPaths lazily computes and caches the flattened property paths,
// with uuid synthesized as "uuid -> <core/uuid>" if the config omitted it
// when the configuration omitted one.
func (d *TypeDefinition) flattenedPaths() []FlattenedPath {
	if d.flattened != nil {
		return d.flattened
	}
	props := d.PropertiesWithUUID()
	var out []FlattenedPath
	for name, def := range props {
		out = append(out, def.flatten(name, nil, nil)...)
	}
	d.flattened = out
	return out
}

// PropertiesWithUUID returns the property map augmented with a uuid
// field when the configuration did not define one explicitly, matching
// the augmentation the Document Builder applies before dispatch.
func (d *TypeDefinition) PropertiesWithUUID() map[string]*PropertyDefinition {
	if _, ok := d.Properties["uuid"]; ok {
		return d.Properties
	}
	augmented := make(map[string]*PropertyDefinition, len(d.Properties)+1)
	for k, v := range d.Properties {
		augmented[k] = v
	}
	augmented["uuid"] = &PropertyDefinition{
		Kind: KindSimple,
		Path: PropertyPath{{Predicate: "http://mu.semte.ch/vocabularies/core/uuid"}},
	}
	return augmented
}

// MatchesProperty reports whether iri appears (forward or inverse) at any
// position in any flattened property path.
func (d *TypeDefinition) MatchesProperty(iri string) bool {
	for _, fp := range d.flattenedPaths() {
		if _, ok := fp.Path.Contains(iri); ok {
			return true
		}
	}
	return false
}

// FullPropertyPathsFor returns every flattened path that mentions iri.
func (d *TypeDefinition) FullPropertyPathsFor(iri string) []PropertyPath {
	var out []PropertyPath
	for _, fp := range d.flattenedPaths() {
		if _, ok := fp.Path.Contains(iri); ok {
			out = append(out, fp.Path)
		}
	}
	return out
}

// Model is the typed, queryable view of every configured type_name.
type Model struct {
	Types map[string]*TypeDefinition
}

// CompositeDefinitions resolves a composite index's sibling type_names
// into their TypeDefinitions, in m.
func (m *Model) CompositeDefinitions(d *TypeDefinition) []*TypeDefinition {
	var out []*TypeDefinition
	for _, name := range d.CompositeTypes {
		if sub, ok := m.Types[name]; ok {
			out = append(out, sub)
		}
	}
	return out
}

// ConfigsMatchingType returns every type definition whose rdf_types
// include iri.
func (m *Model) ConfigsMatchingType(iri string) []*TypeDefinition {
	var out []*TypeDefinition
	for _, d := range m.Types {
		if d.MatchesType(iri) {
			out = append(out, d)
		}
	}
	return out
}

// ConfigsMatchingProperty returns every type definition whose flattened
// property paths mention iri, forward or inverse.
func (m *Model) ConfigsMatchingProperty(iri string) []*TypeDefinition {
	var out []*TypeDefinition
	for _, d := range m.Types {
		if d.MatchesProperty(iri) {
			out = append(out, d)
		}
	}
	return out
}
