package docbuilder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deltasync/deltasync/logging"
)

// TextExtractor is the external collaborator that turns a binary
// attachment into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string, data []byte) (string, error)
}

// ExtractionCache fronts TextExtractor with a two-level cache keyed by
// the SHA-256 of the file bytes: an in-memory LRU hot layer over a
// filesystem directory that survives restarts.
//
// Filesystem writes are idempotent for identical content, so concurrent
// writers racing on the same key are safe.
type ExtractionCache struct {
	baseDir   string
	extractor TextExtractor
	mem       *lru.Cache[string, string]
	log       logging.Logger
}

func NewExtractionCache(baseDir string, extractor TextExtractor, log logging.Logger) (*ExtractionCache, error) {
	mem, err := lru.New[string, string](4096)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &ExtractionCache{baseDir: baseDir, extractor: extractor, mem: mem, log: log}, nil
}

// Get returns the extracted text for data at path, or null=true when the
// extractor returned an error — the caller then emits {content: null} for
// this file. A cache-file read miss falls through to extraction, and a
// failed cache-file write is logged; neither makes the result null.
func (c *ExtractionCache) Get(ctx context.Context, path string, data []byte) (text string, null bool) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if v, ok := c.mem.Get(key); ok {
		return v, false
	}
	if v, ok := c.readFS(key); ok {
		c.mem.Add(key, v)
		return v, false
	}

	extracted, err := c.extractor.Extract(ctx, path, data)
	if err != nil {
		c.log.Error("text extraction failed", "path", path, "err", err)
		return "", true
	}
	if err := c.writeFS(key, extracted); err != nil {
		c.log.Error("failed to persist extraction cache entry", "key", key, "err", err)
	}
	c.mem.Add(key, extracted)
	return extracted, false
}

func (c *ExtractionCache) cachePath(key string) string {
	return filepath.Join(c.baseDir, key)
}

func (c *ExtractionCache) readFS(key string) (string, bool) {
	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *ExtractionCache) writeFS(key, text string) error {
	return os.WriteFile(c.cachePath(key), []byte(text), 0o644)
}
