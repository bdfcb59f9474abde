package indexmgmt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/gateway"
)

type fakeGateway struct {
	mu               sync.Mutex
	selectByContains map[string][]gateway.Binding
	updatesIssued    []string
}

func (f *fakeGateway) Select(_ context.Context, query string) ([]gateway.Binding, error) {
	for substr, rows := range f.selectByContains {
		if strings.Contains(query, substr) {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeGateway) Ask(context.Context, string) (bool, error) { return false, nil }

func (f *fakeGateway) Update(_ context.Context, query string) error {
	f.mu.Lock()
	f.updatesIssued = append(f.updatesIssued, query)
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) Scoped(config.AllowedGroups) gateway.Gateway { return f }

type fakeSearchEngine struct {
	mu            sync.Mutex
	exists        map[string]bool
	created       map[string]bool
	cleared       map[string]int
	docs          map[string]map[string]map[string]any
	failUpsertIDs map[string]bool
}

func newFakeSearchEngine() *fakeSearchEngine {
	return &fakeSearchEngine{
		exists:        map[string]bool{},
		created:       map[string]bool{},
		cleared:       map[string]int{},
		docs:          map[string]map[string]map[string]any{},
		failUpsertIDs: map[string]bool{},
	}
}

func (f *fakeSearchEngine) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists[name], nil
}

func (f *fakeSearchEngine) CreateIndex(_ context.Context, name string, _, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists[name] = true
	f.created[name] = true
	return nil
}

func (f *fakeSearchEngine) DeleteIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.exists, name)
	delete(f.docs, name)
	return nil
}

func (f *fakeSearchEngine) ClearIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[name] {
		return fmt.Errorf("index %s does not exist", name)
	}
	f.cleared[name]++
	f.docs[name] = map[string]map[string]any{}
	return nil
}

func (f *fakeSearchEngine) RefreshIndex(context.Context, string) error { return nil }

func (f *fakeSearchEngine) UpsertDocument(_ context.Context, name, id string, body map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsertIDs[id] {
		return fmt.Errorf("simulated upsert failure for %s", id)
	}
	if f.docs[name] == nil {
		f.docs[name] = map[string]map[string]any{}
	}
	f.docs[name][id] = body
	return nil
}

func (f *fakeSearchEngine) DeleteDocument(_ context.Context, name, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[name] != nil {
		delete(f.docs[name], id)
	}
	return nil
}
