package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PropertyKind is the tag of the Property Definition variant.
type PropertyKind string

const (
	KindSimple         PropertyKind = "simple"
	KindLanguageString PropertyKind = "language-string"
	KindAttachment     PropertyKind = "attachment"
	KindNested         PropertyKind = "nested"
)

// PropertyDefinition is a tagged variant over {simple, language-string,
// attachment, nested}. Every variant carries a property path; nested also
// carries an inner property map.
type PropertyDefinition struct {
	Kind     PropertyKind
	Path     PropertyPath
	Nested   map[string]*PropertyDefinition
}

// yamlPropertyDefinition is the raw shape a property definition takes in
// configuration before being resolved into PropertyDefinition.
type yamlPropertyDefinition struct {
	Kind       string                             `yaml:"kind"`
	Path       []string                           `yaml:"path"`
	Properties map[string]*yamlPropertyDefinition `yaml:"properties"`
}

func (p *PropertyDefinition) UnmarshalYAML(value *yaml.Node) error {
	var raw yamlPropertyDefinition
	if err := value.Decode(&raw); err != nil {
		return err
	}
	kind := PropertyKind(raw.Kind)
	if kind == "" {
		kind = KindSimple
	}
	switch kind {
	case KindSimple, KindLanguageString, KindAttachment:
	case KindNested:
	default:
		return fmt.Errorf("config: unknown property kind %q", raw.Kind)
	}
	p.Kind = kind
	p.Path = ParsePropertyPath(raw.Path)
	if kind == KindNested {
		p.Nested = make(map[string]*PropertyDefinition, len(raw.Properties))
		for name, child := range raw.Properties {
			resolved := &PropertyDefinition{
				Kind:   PropertyKind(child.Kind),
				Path:   ParsePropertyPath(child.Path),
				Nested: nil,
			}
			if resolved.Kind == "" {
				resolved.Kind = KindSimple
			}
			if resolved.Kind == KindNested {
				resolved.Nested = map[string]*PropertyDefinition{}
				if err := resolveNested(resolved, child.Properties); err != nil {
					return err
				}
			}
			p.Nested[name] = resolved
		}
	}
	return nil
}

func resolveNested(dst *PropertyDefinition, raw map[string]*yamlPropertyDefinition) error {
	for name, child := range raw {
		resolved := &PropertyDefinition{
			Kind: PropertyKind(child.Kind),
			Path: ParsePropertyPath(child.Path),
		}
		if resolved.Kind == "" {
			resolved.Kind = KindSimple
		}
		if resolved.Kind == KindNested {
			resolved.Nested = map[string]*PropertyDefinition{}
			if err := resolveNested(resolved, child.Properties); err != nil {
				return err
			}
		}
		dst.Nested[name] = resolved
	}
	return nil
}

// FlattenedPath pairs a full path from the document root to a predicate
// with the dotted field-name trail that leads there: a predicate appearing
// inside a nested property yields a single concatenated path from the
// document root to that predicate.
type FlattenedPath struct {
	FieldTrail []string
	Path       PropertyPath
}

// flatten walks def (and, for nested kinds, its children) and returns one
// FlattenedPath per reachable property path, with prefixTrail prepended to
// the field trail and prefixPath prepended to the RDF path.
func (def *PropertyDefinition) flatten(name string, prefixTrail []string, prefixPath PropertyPath) []FlattenedPath {
	trail := append(append([]string{}, prefixTrail...), name)
	path := append(append(PropertyPath{}, prefixPath...), def.Path...)
	if def.Kind != KindNested {
		return []FlattenedPath{{FieldTrail: trail, Path: path}}
	}
	var out []FlattenedPath
	for childName, child := range def.Nested {
		out = append(out, child.flatten(childName, trail, path)...)
	}
	return out
}
