package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/deltasync/deltasync/indexsyncerrors"
)

// ElasticsearchEngine implements SearchEngine against an Elasticsearch (or
// OpenSearch) HTTP API — the concrete backend a "search:ElasticsearchIndex"
// catalog row refers to.
type ElasticsearchEngine struct {
	BaseURL string
	Client  *http.Client
}

func NewElasticsearchEngine(baseURL string, client *http.Client) *ElasticsearchEngine {
	if client == nil {
		client = &http.Client{}
	}
	return &ElasticsearchEngine{BaseURL: baseURL, Client: client}
}

func (e *ElasticsearchEngine) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request: %v", indexsyncerrors.ErrTransport, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", indexsyncerrors.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", indexsyncerrors.ErrTransport, err)
	}
	return resp, nil
}

func (e *ElasticsearchEngine) IndexExists(ctx context.Context, name string) (bool, error) {
	resp, err := e.request(ctx, http.MethodHead, "/"+name, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (e *ElasticsearchEngine) CreateIndex(ctx context.Context, name string, mappings, settings map[string]any) error {
	body := map[string]any{}
	if len(mappings) > 0 {
		body["mappings"] = mappings
	}
	if len(settings) > 0 {
		body["settings"] = settings
	}
	resp, err := e.request(ctx, http.MethodPut, "/"+name, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return e.drainError(resp)
}

func (e *ElasticsearchEngine) DeleteIndex(ctx context.Context, name string) error {
	resp, err := e.request(ctx, http.MethodDelete, "/"+name, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return e.drainError(resp)
}

func (e *ElasticsearchEngine) ClearIndex(ctx context.Context, name string) error {
	resp, err := e.request(ctx, http.MethodPost, "/"+name+"/_delete_by_query", map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return e.drainError(resp)
}

func (e *ElasticsearchEngine) RefreshIndex(ctx context.Context, name string) error {
	resp, err := e.request(ctx, http.MethodPost, "/"+name+"/_refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return e.drainError(resp)
}

func (e *ElasticsearchEngine) UpsertDocument(ctx context.Context, name, id string, body map[string]any) error {
	resp, err := e.request(ctx, http.MethodPut, "/"+name+"/_doc/"+id, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return e.drainError(resp)
}

func (e *ElasticsearchEngine) DeleteDocument(ctx context.Context, name, id string) error {
	resp, err := e.request(ctx, http.MethodDelete, "/"+name+"/_doc/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return e.drainError(resp)
}

func (e *ElasticsearchEngine) drainError(resp *http.Response) error {
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", indexsyncerrors.ErrQuery, resp.StatusCode, string(payload))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
