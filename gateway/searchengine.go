package gateway

import "context"

// SearchEngine is the narrow contract the core requires of the inverted
// index backend. DeleteDocument on a missing id must not be
// fatal — implementations should translate "not found" into nil, not an
// error, or callers should treat indexsyncerrors.ErrNotFound as a no-op.
type SearchEngine interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, mappings, settings map[string]any) error
	DeleteIndex(ctx context.Context, name string) error
	ClearIndex(ctx context.Context, name string) error
	RefreshIndex(ctx context.Context, name string) error
	UpsertDocument(ctx context.Context, name, id string, body map[string]any) error
	DeleteDocument(ctx context.Context, name, id string) error
}
