package pipeline

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/logging"
)

func testConfig() *config.Config {
	def := &config.TypeDefinition{
		TypeName: "books",
		RDFTypes: []string{"http://schema.org/Book"},
	}
	return &config.Config{
		Model:     &config.Model{Types: map[string]*config.TypeDefinition{"books": def}},
		BatchSize: 50,
	}
}

func TestNewAssemblesWithoutSpool(t *testing.T) {
	log := logging.NewSlogLogger(slog.LevelError)
	opts := Options{
		TriplestoreEndpoint: "http://triplestore.invalid/sparql",
		SearchEngineBaseURL: "http://search.invalid",
		AttachmentBase:      t.TempDir(),
		ExtractionCacheBase: t.TempDir(),
		Workers:             2,
		QueueLimit:          10,
	}
	p, err := New(testConfig(), opts, log)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Spool != nil {
		t.Error("expected no spool when SpoolDir is empty")
	}
	if p.Handler.Workers != 2 {
		t.Errorf("expected handler to inherit worker count, got %d", p.Handler.Workers)
	}
}

func TestNewOpensSpoolWhenConfigured(t *testing.T) {
	log := logging.NewSlogLogger(slog.LevelError)
	opts := Options{
		TriplestoreEndpoint: "http://triplestore.invalid/sparql",
		SearchEngineBaseURL: "http://search.invalid",
		AttachmentBase:      t.TempDir(),
		ExtractionCacheBase: t.TempDir(),
		SpoolDir:            filepath.Join(t.TempDir(), "spool"),
		Workers:             1,
		QueueLimit:          10,
	}
	p, err := New(testConfig(), opts, log)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Close()
	if p.Spool == nil {
		t.Error("expected spool to be opened when SpoolDir is set")
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	log := logging.NewSlogLogger(slog.LevelError)
	opts := Options{
		TriplestoreEndpoint: "http://triplestore.invalid/sparql",
		SearchEngineBaseURL: "http://search.invalid",
		AttachmentBase:      t.TempDir(),
		ExtractionCacheBase: t.TempDir(),
		Workers:             1,
		QueueLimit:          10,
	}
	p, err := New(testConfig(), opts, log)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := p.Ingest(nil, []byte(`{"not":"an array"}`)); err == nil {
		t.Error("expected a non-array payload to be rejected")
	}
}
