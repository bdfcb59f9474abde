package updatehandler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/docbuilder"
	"github.com/deltasync/deltasync/gateway"
	"github.com/deltasync/deltasync/indexmgmt"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/router"
)

type fakeSpool struct {
	mu    sync.Mutex
	acked []router.Job
}

func (f *fakeSpool) Ack(job router.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, job)
	return nil
}

func (f *fakeSpool) ackedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.acked)
}

type fakeGateway struct {
	mu       sync.Mutex
	askFor   map[string]bool
	askErr   error
	scoped   []config.AllowedGroups
	selected map[string][]gateway.Binding
}

func (f *fakeGateway) Select(_ context.Context, query string) ([]gateway.Binding, error) {
	for substr, rows := range f.selected {
		if strings.Contains(query, substr) {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeGateway) Ask(_ context.Context, query string) (bool, error) {
	if f.askErr != nil {
		return false, f.askErr
	}
	for substr, v := range f.askFor {
		if strings.Contains(query, substr) {
			return v, nil
		}
	}
	return false, nil
}

func (f *fakeGateway) Update(context.Context, string) error { return nil }

func (f *fakeGateway) Scoped(groups config.AllowedGroups) gateway.Gateway {
	f.mu.Lock()
	f.scoped = append(f.scoped, groups)
	f.mu.Unlock()
	return f
}

type fakeSearchEngine struct {
	mu       sync.Mutex
	upserted map[string]map[string]map[string]any
	deleted  map[string][]string
}

func newFakeSearchEngine() *fakeSearchEngine {
	return &fakeSearchEngine{
		upserted: map[string]map[string]map[string]any{},
		deleted:  map[string][]string{},
	}
}

func (f *fakeSearchEngine) IndexExists(context.Context, string) (bool, error)              { return true, nil }
func (f *fakeSearchEngine) CreateIndex(context.Context, string, map[string]any, map[string]any) error {
	return nil
}
func (f *fakeSearchEngine) DeleteIndex(context.Context, string) error { return nil }
func (f *fakeSearchEngine) ClearIndex(context.Context, string) error  { return nil }
func (f *fakeSearchEngine) RefreshIndex(context.Context, string) error { return nil }

func (f *fakeSearchEngine) UpsertDocument(_ context.Context, name, id string, body map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserted[name] == nil {
		f.upserted[name] = map[string]map[string]any{}
	}
	f.upserted[name][id] = body
	return nil
}

func (f *fakeSearchEngine) DeleteDocument(_ context.Context, name, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[name] = append(f.deleted[name], id)
	return nil
}

func newTestHandler(t *testing.T, fg *fakeGateway, fs *fakeSearchEngine, model *config.Model, registry *indexmgmt.Registry) *Handler {
	t.Helper()
	log := logging.NewSlogLogger(slog.LevelError)
	cache, err := docbuilder.NewExtractionCache(t.TempDir(), nil, log)
	if err != nil {
		t.Fatalf("new extraction cache: %v", err)
	}
	builder := docbuilder.NewBuilder(fg, model, t.TempDir(), 1<<20, cache, log)
	return New(fg, registry, model, builder, log, 1, 10)
}

func booksModel() (*config.Model, *config.TypeDefinition) {
	def := &config.TypeDefinition{
		TypeName: "books",
		RDFTypes: []string{"http://schema.org/Book"},
		Properties: map[string]*config.PropertyDefinition{
			"title": {Kind: config.KindSimple, Path: config.PropertyPath{{Predicate: "http://purl.org/dc/terms/title"}}},
		},
	}
	return &config.Model{Types: map[string]*config.TypeDefinition{"books": def}}, def
}

func TestProcessUpdateUpsertsWhenResourceExists(t *testing.T) {
	model, def := booksModel()
	fg := &fakeGateway{askFor: map[string]bool{"a ?type": true}}
	fs := newFakeSearchEngine()
	registry := indexmgmt.NewRegistry(fg, fs, logging.NewSlogLogger(slog.LevelError), false)
	groups := config.AllowedGroups{{Name: "readers"}}
	idx, err := registry.EnsureIndex(context.Background(), def, groups, nil)
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	h := newTestHandler(t, fg, fs, model, registry)
	h.process(context.Background(), router.Job{Op: router.OpUpdate, Subject: "http://example.org/book/1", TypeName: "books"})

	if _, ok := fs.upserted[idx.Name]["http://example.org/book/1"]; !ok {
		t.Error("expected resource to be upserted")
	}
}

func TestProcessUpdateSkipsWhenResourceMissing(t *testing.T) {
	model, def := booksModel()
	fg := &fakeGateway{askFor: map[string]bool{"a ?type": false}}
	fs := newFakeSearchEngine()
	registry := indexmgmt.NewRegistry(fg, fs, logging.NewSlogLogger(slog.LevelError), false)
	groups := config.AllowedGroups{{Name: "readers"}}
	idx, err := registry.EnsureIndex(context.Background(), def, groups, nil)
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	h := newTestHandler(t, fg, fs, model, registry)
	h.process(context.Background(), router.Job{Op: router.OpUpdate, Subject: "http://example.org/book/1", TypeName: "books"})

	if _, ok := fs.upserted[idx.Name]["http://example.org/book/1"]; ok {
		t.Error("expected no upsert when resource does not exist under this scope")
	}
}

func TestProcessDeleteRemovesWhenResourceGone(t *testing.T) {
	model, def := booksModel()
	fg := &fakeGateway{askFor: map[string]bool{"a ?type": false}}
	fs := newFakeSearchEngine()
	registry := indexmgmt.NewRegistry(fg, fs, logging.NewSlogLogger(slog.LevelError), false)
	groups := config.AllowedGroups{{Name: "readers"}}
	idx, err := registry.EnsureIndex(context.Background(), def, groups, nil)
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	h := newTestHandler(t, fg, fs, model, registry)
	h.process(context.Background(), router.Job{Op: router.OpDelete, Subject: "http://example.org/book/1", TypeName: "books"})

	found := false
	for _, id := range fs.deleted[idx.Name] {
		if id == "http://example.org/book/1" {
			found = true
		}
	}
	if !found {
		t.Error("expected resource to be deleted once it no longer exists under this scope")
	}
}

func TestProcessDeleteSkipsWhenResourceStillVisible(t *testing.T) {
	model, def := booksModel()
	fg := &fakeGateway{askFor: map[string]bool{"a ?type": true}}
	fs := newFakeSearchEngine()
	registry := indexmgmt.NewRegistry(fg, fs, logging.NewSlogLogger(slog.LevelError), false)
	groups := config.AllowedGroups{{Name: "readers"}}
	idx, err := registry.EnsureIndex(context.Background(), def, groups, nil)
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	h := newTestHandler(t, fg, fs, model, registry)
	h.process(context.Background(), router.Job{Op: router.OpDelete, Subject: "http://example.org/book/1", TypeName: "books"})

	if len(fs.deleted[idx.Name]) != 0 {
		t.Errorf("expected delete to be skipped while still visible under this scope, got %v", fs.deleted[idx.Name])
	}
}

func TestRunDrainsQueueAfterContextCancellation(t *testing.T) {
	model, def := booksModel()
	fg := &fakeGateway{askFor: map[string]bool{"a ?type": true}}
	fs := newFakeSearchEngine()
	registry := indexmgmt.NewRegistry(fg, fs, logging.NewSlogLogger(slog.LevelError), false)
	groups := config.AllowedGroups{{Name: "readers"}}
	idx, err := registry.EnsureIndex(context.Background(), def, groups, nil)
	if err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	h := newTestHandler(t, fg, fs, model, registry)
	if err := h.Enqueue(router.Job{Op: router.OpUpdate, Subject: "http://example.org/book/1", TypeName: "books"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(runDone)
	}()
	cancel()
	<-runDone

	if _, ok := fs.upserted[idx.Name]["http://example.org/book/1"]; !ok {
		t.Error("expected the already-enqueued job to drain before shutdown completes")
	}
}

func TestRunAcksSpoolAfterSuccessfulReconciliation(t *testing.T) {
	model, def := booksModel()
	fg := &fakeGateway{askFor: map[string]bool{"a ?type": true}}
	fs := newFakeSearchEngine()
	registry := indexmgmt.NewRegistry(fg, fs, logging.NewSlogLogger(slog.LevelError), false)
	groups := config.AllowedGroups{{Name: "readers"}}
	if _, err := registry.EnsureIndex(context.Background(), def, groups, nil); err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	h := newTestHandler(t, fg, fs, model, registry)
	sp := &fakeSpool{}
	h.WithSpool(sp)
	job := router.Job{Op: router.OpUpdate, Subject: "http://example.org/book/1", TypeName: "books"}
	if err := h.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(runDone)
	}()
	cancel()
	<-runDone

	if sp.ackedCount() != 1 {
		t.Fatalf("expected the reconciled job to be acked once, got %d", sp.ackedCount())
	}
}

func TestRunDoesNotAckSpoolWhenReconciliationFails(t *testing.T) {
	model, def := booksModel()
	fg := &fakeGateway{askErr: errors.New("triplestore unreachable")}
	fs := newFakeSearchEngine()
	registry := indexmgmt.NewRegistry(fg, fs, logging.NewSlogLogger(slog.LevelError), false)
	groups := config.AllowedGroups{{Name: "readers"}}
	if _, err := registry.EnsureIndex(context.Background(), def, groups, nil); err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	h := newTestHandler(t, fg, fs, model, registry)
	sp := &fakeSpool{}
	h.WithSpool(sp)
	job := router.Job{Op: router.OpUpdate, Subject: "http://example.org/book/1", TypeName: "books"}
	if err := h.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(runDone)
	}()
	cancel()
	<-runDone

	if sp.ackedCount() != 0 {
		t.Fatalf("expected a failed reconciliation not to ack the spool, got %d acks", sp.ackedCount())
	}
}
