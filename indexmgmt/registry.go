package indexmgmt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/gateway"
	"github.com/deltasync/deltasync/indexsyncerrors"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/metrics"
)

const authGraph = "http://mu.semte.ch/graphs/authorization"

// Registry is the in-memory catalog of Index entries, keyed by type_name
// then by the canonical allowed_groups key. The registry mutex guards only
// the map structure; it is never held across a rebuild or any I/O.
type Registry struct {
	Sudo   gateway.Gateway
	Engine gateway.SearchEngine
	Log    logging.Logger

	PersistIndexes bool

	mu     sync.Mutex
	byType map[string]map[string]*Index
}

func NewRegistry(sudo gateway.Gateway, engine gateway.SearchEngine, log logging.Logger, persistIndexes bool) *Registry {
	return &Registry{
		Sudo:           sudo,
		Engine:         engine,
		Log:            log,
		PersistIndexes: persistIndexes,
		byType:         make(map[string]map[string]*Index),
	}
}

// LoadCatalog populates the in-memory cache from the persisted triplestore
// catalog without touching Search-Engine state.
func (r *Registry) LoadCatalog(ctx context.Context) error {
	query := fmt.Sprintf(`SELECT ?uri ?type ?name ?allowed ?used WHERE {
  GRAPH <%s> {
    ?uri a <http://mu.semte.ch/vocabularies/search/ElasticsearchIndex> ;
         <http://mu.semte.ch/vocabularies/search/objectType> ?type ;
         <http://mu.semte.ch/vocabularies/search/indexName> ?name .
    OPTIONAL { ?uri <http://mu.semte.ch/vocabularies/search/hasAllowedGroup> ?allowed }
    OPTIONAL { ?uri <http://mu.semte.ch/vocabularies/search/hasUsedGroup> ?used }
  }
}`, authGraph)
	rows, err := r.Sudo.Select(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: loading index catalog: %v", indexsyncerrors.ErrTransport, err)
	}
	byURI := map[string]*Index{}
	for _, row := range rows {
		uriTerm, ok := row["uri"]
		if !ok {
			continue
		}
		idx, ok := byURI[uriTerm.Value]
		if !ok {
			idx = &Index{
				URI:      uriTerm.Value,
				TypeName: row["type"].Value,
				Name:     row["name"].Value,
				state:    StateInvalid,
			}
			byURI[uriTerm.Value] = idx
		}
		if g, ok := row["allowed"]; ok {
			if grp, err := decodeGroup(g.Value); err == nil {
				idx.AllowedGroups = append(idx.AllowedGroups, grp)
			}
		}
		if g, ok := row["used"]; ok {
			if grp, err := decodeGroup(g.Value); err == nil {
				idx.UsedGroups = append(idx.UsedGroups, grp)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, idx := range byURI {
		groupKey := idx.AllowedGroups.Canonical()
		if r.byType[idx.TypeName] == nil {
			r.byType[idx.TypeName] = make(map[string]*Index)
		}
		r.byType[idx.TypeName][groupKey] = idx
		metrics.IndexState.WithLabelValues(idx.TypeName, idx.Name).Set(float64(idx.state))
	}
	return nil
}

// PurgeCatalog removes every persisted index from both the triplestore
// catalog and the Search Engine, used when PersistIndexes is false.
func (r *Registry) PurgeCatalog(ctx context.Context) error {
	query := fmt.Sprintf(`SELECT ?uri ?name WHERE {
  GRAPH <%s> {
    ?uri a <http://mu.semte.ch/vocabularies/search/ElasticsearchIndex> ;
         <http://mu.semte.ch/vocabularies/search/indexName> ?name .
  }
}`, authGraph)
	rows, err := r.Sudo.Select(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: listing stale index catalog: %v", indexsyncerrors.ErrTransport, err)
	}
	for _, row := range rows {
		name := row["name"].Value
		if err := r.Engine.DeleteIndex(ctx, name); err != nil {
			r.Log.Warn("failed to delete stale search index", "name", name, "err", err)
		}
		uri := row["uri"].Value
		del := fmt.Sprintf(`DELETE WHERE { GRAPH <%s> { <%s> ?p ?o } }`, authGraph, uri)
		if err := r.Sudo.Update(ctx, del); err != nil {
			r.Log.Warn("failed to delete stale catalog row", "uri", uri, "err", err)
		}
	}
	return nil
}

// Lookup returns the existing Index for (typeName, allowedGroups), if any.
func (r *Registry) Lookup(typeName string, allowedGroups config.AllowedGroups) (*Index, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	table := r.byType[typeName]
	if table == nil {
		return nil, false
	}
	idx, ok := table[allowedGroups.Canonical()]
	return idx, ok
}

// EnsureIndex returns the Index for (typeName, allowedGroups), creating the
// catalog row, cache entry, and backing Search-Engine index if none of
// them yet exist. New indexes start in StateInvalid.
func (r *Registry) EnsureIndex(ctx context.Context, def *config.TypeDefinition, allowedGroups, usedGroups config.AllowedGroups) (*Index, error) {
	groupKey := allowedGroups.Canonical()

	r.mu.Lock()
	if r.byType[def.TypeName] == nil {
		r.byType[def.TypeName] = make(map[string]*Index)
	}
	if idx, ok := r.byType[def.TypeName][groupKey]; ok {
		r.mu.Unlock()
		return idx, nil
	}
	idx := &Index{
		URI:           "http://mu.semte.ch/search-indexes/" + uuid.NewString(),
		Name:          generateIndexName(def.TypeName, allowedGroups),
		TypeName:      def.TypeName,
		AllowedGroups: allowedGroups.Sorted(),
		UsedGroups:    usedGroups.Sorted(),
		state:         StateInvalid,
	}
	r.byType[def.TypeName][groupKey] = idx
	r.mu.Unlock()

	if r.PersistIndexes {
		if err := r.persistCatalogRow(ctx, idx); err != nil {
			return nil, err
		}
	}

	exists, err := r.Engine.IndexExists(ctx, idx.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: checking search index %s: %v", indexsyncerrors.ErrTransport, idx.Name, err)
	}
	if !exists {
		if err := r.Engine.CreateIndex(ctx, idx.Name, def.Mappings, def.Settings); err != nil {
			return nil, fmt.Errorf("%w: creating search index %s: %v", indexsyncerrors.ErrTransport, idx.Name, err)
		}
	}
	metrics.IndexState.WithLabelValues(idx.TypeName, idx.Name).Set(float64(idx.state))
	return idx, nil
}

func (r *Registry) persistCatalogRow(ctx context.Context, idx *Index) error {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT DATA { GRAPH <%s> { <%s> a <http://mu.semte.ch/vocabularies/search/ElasticsearchIndex> ;\n", authGraph, idx.URI)
	fmt.Fprintf(&b, "  <http://mu.semte.ch/vocabularies/core/uuid> \"%s\" ;\n", uuid.NewString())
	fmt.Fprintf(&b, "  <http://mu.semte.ch/vocabularies/search/objectType> \"%s\" ;\n", idx.TypeName)
	fmt.Fprintf(&b, "  <http://mu.semte.ch/vocabularies/search/indexName> \"%s\" .\n", idx.Name)
	for _, g := range idx.AllowedGroups {
		fmt.Fprintf(&b, "  <%s> <http://mu.semte.ch/vocabularies/search/hasAllowedGroup> \"%s\" .\n", idx.URI, encodeGroup(g))
	}
	for _, g := range idx.UsedGroups {
		fmt.Fprintf(&b, "  <%s> <http://mu.semte.ch/vocabularies/search/hasUsedGroup> \"%s\" .\n", idx.URI, encodeGroup(g))
	}
	b.WriteString("} }")
	if err := r.Sudo.Update(ctx, b.String()); err != nil {
		return fmt.Errorf("%w: persisting index catalog row: %v", indexsyncerrors.ErrTransport, err)
	}
	return nil
}

// RemoveIndex deletes the catalog entry and the underlying Search-Engine
// index for (typeName, allowedGroups).
func (r *Registry) RemoveIndex(ctx context.Context, typeName string, allowedGroups config.AllowedGroups) error {
	groupKey := allowedGroups.Canonical()

	r.mu.Lock()
	table := r.byType[typeName]
	var idx *Index
	if table != nil {
		idx = table[groupKey]
		delete(table, groupKey)
	}
	r.mu.Unlock()

	if idx == nil {
		return nil
	}
	if err := r.Engine.DeleteIndex(ctx, idx.Name); err != nil {
		return fmt.Errorf("%w: deleting search index %s: %v", indexsyncerrors.ErrTransport, idx.Name, err)
	}
	if r.PersistIndexes {
		del := fmt.Sprintf(`DELETE WHERE { GRAPH <%s> { <%s> ?p ?o } }`, authGraph, idx.URI)
		if err := r.Sudo.Update(ctx, del); err != nil {
			return fmt.Errorf("%w: deleting catalog row %s: %v", indexsyncerrors.ErrTransport, idx.URI, err)
		}
	}
	return nil
}

// IndexesForType returns every currently registered Index for typeName,
// regardless of allowed_groups — used by the Update Handler, which must
// consider every authorization scope an incoming job's type_name is
// indexed under.
func (r *Registry) IndexesForType(typeName string) []*Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	table := r.byType[typeName]
	out := make([]*Index, 0, len(table))
	for _, idx := range table {
		out = append(out, idx)
	}
	return out
}

// AllIndexes returns every tracked Index across every type_name.
func (r *Registry) AllIndexes() []*Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Index
	for _, table := range r.byType {
		for _, idx := range table {
			out = append(out, idx)
		}
	}
	return out
}
