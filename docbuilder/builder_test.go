package docbuilder

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/gateway"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/rdfvalue"
)

// fakeGateway answers Select by matching a substring of the query against
// a canned binding table; it ignores Ask/Update/Scoped scoping.
type fakeGateway struct {
	bindingsByContains map[string][]gateway.Binding
}

func (f *fakeGateway) Select(_ context.Context, query string) ([]gateway.Binding, error) {
	for substr, rows := range f.bindingsByContains {
		if strings.Contains(query, substr) {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeGateway) Ask(context.Context, string) (bool, error) { return false, nil }
func (f *fakeGateway) Update(context.Context, string) error      { return nil }
func (f *fakeGateway) Scoped(config.AllowedGroups) gateway.Gateway {
	return f
}

const uuidPredicate = "http://mu.semte.ch/vocabularies/core/uuid"
const titlePredicate = "http://purl.org/dc/terms/title"

func newTestBuilder(t *testing.T, fg *fakeGateway, model *config.Model) *Builder {
	t.Helper()
	cache, err := NewExtractionCache(t.TempDir(), nil, logging.NewSlogLogger(slog.LevelError))
	if err != nil {
		t.Fatalf("new extraction cache: %v", err)
	}
	return NewBuilder(fg, model, t.TempDir(), 1<<20, cache, logging.NewSlogLogger(slog.LevelError))
}

func TestBuildSimpleDocument(t *testing.T) {
	fg := &fakeGateway{
		bindingsByContains: map[string][]gateway.Binding{
			"<" + titlePredicate + ">": {{"v": rdfvalue.Term{Type: rdfvalue.KindLiteral, Value: "A Book"}}},
			"<" + uuidPredicate + ">":  {{"v": rdfvalue.Term{Type: rdfvalue.KindLiteral, Value: "abc-123"}}},
		},
	}
	def := &config.TypeDefinition{
		TypeName: "books",
		RDFTypes: []string{"http://schema.org/Book"},
		Properties: map[string]*config.PropertyDefinition{
			"title": {Kind: config.KindSimple, Path: config.PropertyPath{{Predicate: titlePredicate}}},
		},
	}
	model := &config.Model{Types: map[string]*config.TypeDefinition{"books": def}}
	b := newTestBuilder(t, fg, model)

	doc, err := b.Build(context.Background(), "http://example.org/book/1", def, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if doc["title"] != "A Book" {
		t.Errorf("expected title %q, got %v", "A Book", doc["title"])
	}
	if doc["uuid"] != "abc-123" {
		t.Errorf("expected uuid abc-123, got %v", doc["uuid"])
	}
}

func TestBuildLanguageStringBucketsByLang(t *testing.T) {
	fg := &fakeGateway{
		bindingsByContains: map[string][]gateway.Binding{
			"<" + titlePredicate + ">": {
				{"v": rdfvalue.Term{Type: rdfvalue.KindLiteral, Value: "Hello", Lang: "en"}, "lang": rdfvalue.Term{Type: rdfvalue.KindLiteral, Value: "en"}},
				{"v": rdfvalue.Term{Type: rdfvalue.KindLiteral, Value: "Bonjour", Lang: "fr"}, "lang": rdfvalue.Term{Type: rdfvalue.KindLiteral, Value: "fr"}},
			},
		},
	}
	def := &config.TypeDefinition{
		TypeName: "pages",
		RDFTypes: []string{"http://schema.org/WebPage"},
		Properties: map[string]*config.PropertyDefinition{
			"title": {Kind: config.KindLanguageString, Path: config.PropertyPath{{Predicate: titlePredicate}}},
		},
	}
	model := &config.Model{Types: map[string]*config.TypeDefinition{"pages": def}}
	b := newTestBuilder(t, fg, model)

	doc, err := b.Build(context.Background(), "http://example.org/page/1", def, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	bucket, ok := doc["title"].(Document)
	if !ok {
		t.Fatalf("expected a language bucket map, got %T: %v", doc["title"], doc["title"])
	}
	if bucket["en"] != "Hello" || bucket["fr"] != "Bonjour" {
		t.Errorf("unexpected language buckets: %v", bucket)
	}
}

func TestBuildCompositeMergesSubDefinitions(t *testing.T) {
	fg := &fakeGateway{
		bindingsByContains: map[string][]gateway.Binding{
			"a ?type":                 {{"type": rdfvalue.Term{Type: rdfvalue.KindURI, Value: "http://schema.org/Book"}}},
			"<" + titlePredicate + ">": {{"v": rdfvalue.Term{Type: rdfvalue.KindLiteral, Value: "A Book"}}},
		},
	}
	sub := &config.TypeDefinition{
		TypeName: "books",
		RDFTypes: []string{"http://schema.org/Book"},
		Properties: map[string]*config.PropertyDefinition{
			"title": {Kind: config.KindSimple, Path: config.PropertyPath{{Predicate: titlePredicate}}},
		},
	}
	composite := &config.TypeDefinition{
		TypeName:       "everything",
		CompositeTypes: []string{"books"},
	}
	model := &config.Model{Types: map[string]*config.TypeDefinition{"books": sub, "everything": composite}}
	b := newTestBuilder(t, fg, model)

	doc, err := b.Build(context.Background(), "http://example.org/book/1", composite, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if doc["title"] != "A Book" {
		t.Errorf("expected merged title from sub-definition, got %v", doc["title"])
	}
}
