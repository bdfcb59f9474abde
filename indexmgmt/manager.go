package indexmgmt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/docbuilder"
	"github.com/deltasync/deltasync/indexsyncerrors"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/metrics"
)

// Manager owns the Index lifecycle state machine on top of a Registry:
// ensuring indexes exist, rebuilding them from scratch, and exposing the
// three operations the rest of the pipeline calls.
type Manager struct {
	Registry  *Registry
	Model     *config.Model
	Builder   *docbuilder.Builder
	Log       logging.Logger
	BatchSize int
}

func NewManager(registry *Registry, model *config.Model, builder *docbuilder.Builder, log logging.Logger, batchSize int) *Manager {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Manager{Registry: registry, Model: model, Builder: builder, Log: log, BatchSize: batchSize}
}

// Initialize loads or purges the persisted catalog, then ensures and
// rebuilds every (type_definition, eager group) pair not already valid.
func (m *Manager) Initialize(ctx context.Context, eagerGroups []config.AllowedGroups) error {
	if m.Registry.PersistIndexes {
		if err := m.Registry.LoadCatalog(ctx); err != nil {
			return err
		}
	} else {
		if err := m.Registry.PurgeCatalog(ctx); err != nil {
			return err
		}
	}

	for _, groups := range eagerGroups {
		for _, def := range m.Model.Types {
			idx, err := m.Registry.EnsureIndex(ctx, def, groups, nil)
			if err != nil {
				m.Log.Error("failed to ensure eager index", "type", def.TypeName, "err", err)
				continue
			}
			if idx.State() != StateValid {
				if err := m.rebuild(ctx, idx, def); err != nil {
					m.Log.Error("eager rebuild failed", "type", def.TypeName, "index", idx.Name, "err", err)
				}
			}
		}
	}
	return nil
}

// FetchIndexesFor resolves the index set for (def, allowedGroups): one
// index per singleton of allowedGroups when additive is set, otherwise a
// single index for the full set. Every returned index has been refreshed
// to StateValid, or is reported invalid via its own State().
func (m *Manager) FetchIndexesFor(ctx context.Context, def *config.TypeDefinition, allowedGroups, usedGroups config.AllowedGroups, additive bool) ([]*Index, error) {
	var groupSets []config.AllowedGroups
	if additive {
		groupSets = allowedGroups.Singletons()
	} else {
		groupSets = []config.AllowedGroups{allowedGroups}
	}

	out := make([]*Index, 0, len(groupSets))
	for _, groups := range groupSets {
		idx, err := m.Registry.EnsureIndex(ctx, def, groups, usedGroups)
		if err != nil {
			return nil, err
		}
		if idx.State() != StateValid {
			if err := m.rebuild(ctx, idx, def); err != nil {
				m.Log.Error("index rebuild failed", "type", def.TypeName, "index", idx.Name, "err", err)
			}
		}
		out = append(out, idx)
	}
	return out, nil
}

// RemoveIndex deletes the catalog entry and the underlying Search-Engine
// index for (typeName, allowedGroups).
func (m *Manager) RemoveIndex(ctx context.Context, typeName string, allowedGroups config.AllowedGroups) error {
	return m.Registry.RemoveIndex(ctx, typeName, allowedGroups)
}

// Invalidate transitions idx back to StateInvalid so the next
// FetchIndexesFor call schedules a rebuild.
func (m *Manager) Invalidate(idx *Index) {
	idx.setState(StateInvalid)
	metrics.IndexState.WithLabelValues(idx.TypeName, idx.Name).Set(float64(StateInvalid))
}

// rebuild runs the full state machine transition: invalid -> updating ->
// valid on success, invalid on any failure. The per-index mutex serializes
// this; the registry mutex is never held here.
func (m *Manager) rebuild(ctx context.Context, idx *Index, def *config.TypeDefinition) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := time.Now()
	idx.state = StateUpdating
	metrics.IndexState.WithLabelValues(idx.TypeName, idx.Name).Set(float64(StateUpdating))
	metrics.RebuildCount.WithLabelValues(idx.TypeName, "update").Inc()

	err := m.rebuildLocked(ctx, idx, def)
	metrics.RebuildDuration.WithLabelValues(idx.TypeName).Observe(time.Since(start).Seconds())
	if err != nil {
		idx.state = StateInvalid
		metrics.IndexState.WithLabelValues(idx.TypeName, idx.Name).Set(float64(StateInvalid))
		metrics.RebuildResults.WithLabelValues(idx.TypeName, "error").Inc()
		m.Log.ErrorCtx(ctx, "index rebuild failed", "type", idx.TypeName, "index", idx.Name, "err", err)
		return err
	}
	idx.state = StateValid
	metrics.IndexState.WithLabelValues(idx.TypeName, idx.Name).Set(float64(StateValid))
	metrics.RebuildResults.WithLabelValues(idx.TypeName, "success").Inc()
	return nil
}

// rebuildLocked repopulates idx from scratch. A single resource's document
// build or upsert failing does not abort the rebuild: that resource is
// logged and skipped, and every other resource still gets indexed. Only a
// failure in listing resources or in the clear/refresh bracketing the loop
// aborts the whole rebuild, since those leave the index in no well-defined
// state to finish populating.
func (m *Manager) rebuildLocked(ctx context.Context, idx *Index, def *config.TypeDefinition) error {
	if err := m.Registry.Engine.ClearIndex(ctx, idx.Name); err != nil {
		return fmt.Errorf("%w: clearing index %s: %v", indexsyncerrors.ErrTransport, idx.Name, err)
	}

	offset := 0
	for {
		subjects, err := m.listResources(ctx, def, offset, m.BatchSize)
		if err != nil {
			return err
		}
		if len(subjects) == 0 {
			break
		}
		for _, subject := range subjects {
			doc, err := m.Builder.Build(ctx, subject, def, idx.AllowedGroups)
			if err != nil {
				m.Log.ErrorCtx(ctx, "skipping resource: building document failed", "type", def.TypeName, "index", idx.Name, "subject", subject, "err", err)
				metrics.DocumentsBuilt.WithLabelValues(def.TypeName, "error").Inc()
				continue
			}
			if err := m.Registry.Engine.UpsertDocument(ctx, idx.Name, subject, doc); err != nil {
				m.Log.ErrorCtx(ctx, "skipping resource: upserting document failed", "type", def.TypeName, "index", idx.Name, "subject", subject, "err", err)
				metrics.DocumentsBuilt.WithLabelValues(def.TypeName, "error").Inc()
				continue
			}
			metrics.DocumentsBuilt.WithLabelValues(def.TypeName, "success").Inc()
		}
		if len(subjects) < m.BatchSize {
			break
		}
		offset += m.BatchSize
	}

	if err := m.Registry.Engine.RefreshIndex(ctx, idx.Name); err != nil {
		return fmt.Errorf("%w: refreshing index %s: %v", indexsyncerrors.ErrTransport, idx.Name, err)
	}
	return nil
}

func (m *Manager) listResources(ctx context.Context, def *config.TypeDefinition, offset, limit int) ([]string, error) {
	values := make([]string, len(def.RDFTypes))
	for i, t := range def.RDFTypes {
		values[i] = "<" + t + ">"
	}
	query := fmt.Sprintf(
		"SELECT DISTINCT ?s WHERE { ?s a ?type . FILTER(?type IN (%s)) } ORDER BY ?s LIMIT %d OFFSET %d",
		strings.Join(values, ", "), limit, offset,
	)
	rows, err := m.Registry.Sudo.Select(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: listing resources for %s: %v", indexsyncerrors.ErrTransport, def.TypeName, err)
	}
	subjects := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := row["s"]; ok {
			subjects = append(subjects, s.Value)
		}
	}
	return subjects, nil
}
