package docbuilder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/gateway"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/metrics"
	"github.com/deltasync/deltasync/rdfvalue"
)

// ShareURIScheme is the fixed IRI scheme prefix attachment file IRIs
// carry; it is stripped before joining the remainder to AttachmentBase
// for attachment files on disk.
const ShareURIScheme = "share://"

// Builder implements the Document Builder: given a resource URI, an index
// definition, and an authorization context, it returns the structured
// document the Search Engine should index.
type Builder struct {
	Sudo           gateway.Gateway
	Model          *config.Model
	AttachmentBase string
	MaxFileSize    int64
	Cache          *ExtractionCache
	Log            logging.Logger

	// typeCache remembers a resource's rdf:type membership, avoiding a
	// repeat SPARQL round trip when the same composite resource is
	// reindexed across sibling sub-definitions.
	typeCache *lru.Cache[string, []string]
}

func NewBuilder(sudo gateway.Gateway, model *config.Model, attachmentBase string, maxFileSize int64, cache *ExtractionCache, log logging.Logger) *Builder {
	typeCache, _ := lru.New[string, []string](10000)
	return &Builder{
		Sudo:           sudo,
		Model:          model,
		AttachmentBase: attachmentBase,
		MaxFileSize:    maxFileSize,
		Cache:          cache,
		Log:            log,
		typeCache:      typeCache,
	}
}

// Build fetches and assembles the document for uri under def, scoped to
// groups.
func (b *Builder) Build(ctx context.Context, uri string, def *config.TypeDefinition, groups config.AllowedGroups) (Document, error) {
	start := time.Now()
	doc, err := b.build(ctx, uri, def, groups)
	metrics.DocumentBuildDuration.WithLabelValues(def.TypeName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DocumentsBuilt.WithLabelValues(def.TypeName, "error").Inc()
		return nil, err
	}
	metrics.DocumentsBuilt.WithLabelValues(def.TypeName, "success").Inc()
	return doc, nil
}

func (b *Builder) build(ctx context.Context, uri string, def *config.TypeDefinition, groups config.AllowedGroups) (Document, error) {
	if def.IsCompositeIndex() {
		return b.buildComposite(ctx, uri, def, groups)
	}
	return b.buildSimple(ctx, uri, def, groups)
}

func (b *Builder) buildComposite(ctx context.Context, uri string, def *config.TypeDefinition, groups config.AllowedGroups) (Document, error) {
	types, err := b.resourceTypes(ctx, uri, groups)
	if err != nil {
		return nil, err
	}
	typeSet := make(map[string]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	var merged Document
	for _, sub := range b.Model.CompositeDefinitions(def) {
		if !intersects(sub.RelatedRDFTypes(), typeSet) {
			continue
		}
		subDoc, err := b.buildSimple(ctx, uri, sub, groups)
		if err != nil {
			return nil, err
		}
		merged, err = SmartMerge(merged, subDoc)
		if err != nil {
			return nil, fmt.Errorf("composite %s: %w", def.TypeName, err)
		}
	}
	return merged, nil
}

func intersects(rdfTypes []string, set map[string]struct{}) bool {
	for _, t := range rdfTypes {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func (b *Builder) resourceTypes(ctx context.Context, uri string, groups config.AllowedGroups) ([]string, error) {
	if cached, ok := b.typeCache.Get(uri); ok {
		return cached, nil
	}
	g := b.Sudo.Scoped(groups)
	query := fmt.Sprintf("SELECT DISTINCT ?type WHERE { <%s> a ?type }", uri)
	bindings, err := g.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(bindings))
	for _, row := range bindings {
		if t, ok := row["type"]; ok {
			types = append(types, t.Value)
		}
	}
	b.typeCache.Add(uri, types)
	return types, nil
}

func (b *Builder) buildSimple(ctx context.Context, uri string, def *config.TypeDefinition, groups config.AllowedGroups) (Document, error) {
	g := b.Sudo.Scoped(groups)
	doc := make(Document, len(def.Properties)+1)
	for name, prop := range def.PropertiesWithUUID() {
		values, err := b.buildField(ctx, g, uri, name, prop, groups)
		if err != nil {
			return nil, err
		}
		doc[name] = Denumerate(values)
	}
	return doc, nil
}

func (b *Builder) buildField(ctx context.Context, g gateway.Gateway, uri, name string, prop *config.PropertyDefinition, groups config.AllowedGroups) ([]any, error) {
	switch prop.Kind {
	case config.KindSimple:
		return b.buildSimpleField(ctx, g, uri, prop)
	case config.KindLanguageString:
		return b.buildLanguageField(ctx, g, uri, prop)
	case config.KindAttachment:
		return b.buildAttachmentField(ctx, g, uri, prop)
	case config.KindNested:
		return b.buildNestedField(ctx, uri, prop, groups)
	default:
		return nil, fmt.Errorf("field %q: unsupported property kind %q", name, prop.Kind)
	}
}

func (b *Builder) buildSimpleField(ctx context.Context, g gateway.Gateway, uri string, prop *config.PropertyDefinition) ([]any, error) {
	query := fmt.Sprintf("SELECT DISTINCT ?v WHERE { <%s> %s ?v }", uri, prop.Path.SPARQLExpr())
	bindings, err := g.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(bindings))
	for _, row := range bindings {
		if v, ok := row["v"]; ok {
			values = append(values, rdfvalue.CoerceLiteral(v))
		}
	}
	return values, nil
}

func (b *Builder) buildLanguageField(ctx context.Context, g gateway.Gateway, uri string, prop *config.PropertyDefinition) ([]any, error) {
	query := fmt.Sprintf("SELECT DISTINCT ?v ?lang WHERE { <%s> %s ?v . BIND(LANG(?v) AS ?lang) }", uri, prop.Path.SPARQLExpr())
	bindings, err := g.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	buckets := map[string][]any{}
	for _, row := range bindings {
		v, ok := row["v"]
		if !ok {
			continue
		}
		lang := "default"
		if l, ok := row["lang"]; ok && l.Value != "" {
			lang = l.Value
		}
		buckets[lang] = append(buckets[lang], rdfvalue.CoerceLiteral(v))
	}
	if len(buckets) == 0 {
		return nil, nil
	}
	bucketMap := make(Document, len(buckets))
	for lang, vals := range buckets {
		bucketMap[lang] = Denumerate(vals)
	}
	return []any{bucketMap}, nil
}

func (b *Builder) buildAttachmentField(ctx context.Context, g gateway.Gateway, uri string, prop *config.PropertyDefinition) ([]any, error) {
	query := fmt.Sprintf("SELECT DISTINCT ?v WHERE { <%s> %s ?v }", uri, prop.Path.SPARQLExpr())
	bindings, err := g.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(bindings))
	for _, row := range bindings {
		fileIRI, ok := row["v"]
		if !ok {
			continue
		}
		values = append(values, b.buildAttachment(ctx, fileIRI.Value))
	}
	return values, nil
}

func (b *Builder) buildAttachment(ctx context.Context, fileIRI string) Document {
	path := b.resolveAttachmentPath(fileIRI)
	info, err := os.Stat(path)
	if err != nil || info.Size() > b.MaxFileSize {
		return Document{"content": nil}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		b.Log.Error("failed to read attachment", "path", path, "err", err)
		return Document{"content": nil}
	}
	text, null := b.Cache.Get(ctx, path, data)
	if null {
		return Document{"content": nil}
	}
	return Document{"content": text}
}

func (b *Builder) resolveAttachmentPath(fileIRI string) string {
	rel := strings.TrimPrefix(fileIRI, ShareURIScheme)
	return filepathJoin(b.AttachmentBase, rel)
}

func filepathJoin(base, rel string) string {
	if strings.HasSuffix(base, "/") {
		return base + rel
	}
	return base + "/" + rel
}

func (b *Builder) buildNestedField(ctx context.Context, uri string, prop *config.PropertyDefinition, groups config.AllowedGroups) ([]any, error) {
	g := b.Sudo.Scoped(groups)
	query := fmt.Sprintf("SELECT DISTINCT ?v WHERE { <%s> %s ?v }", uri, prop.Path.SPARQLExpr())
	bindings, err := g.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	nestedDef := &config.TypeDefinition{TypeName: "nested", Properties: prop.Nested}
	values := make([]any, 0, len(bindings))
	for _, row := range bindings {
		related, ok := row["v"]
		if !ok {
			continue
		}
		child, err := b.buildSimple(ctx, related.Value, nestedDef, groups)
		if err != nil {
			return nil, err
		}
		child["uri"] = related.Value
		values = append(values, child)
	}
	return values, nil
}
