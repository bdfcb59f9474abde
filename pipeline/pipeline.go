// Package pipeline wires the Triplestore Gateway, Search Engine, Index
// Registry, Index Manager, Delta Router, and Update Handler into one
// running system, mirroring the collaborator-struct-plus-mutex shape the
// rest of this codebase uses for its stateful types.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/docbuilder"
	"github.com/deltasync/deltasync/gateway"
	"github.com/deltasync/deltasync/indexmgmt"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/rdfvalue"
	"github.com/deltasync/deltasync/router"
	"github.com/deltasync/deltasync/spool"
	"github.com/deltasync/deltasync/updatehandler"
)

// Options collects the knobs Pipeline needs beyond what config.Config
// already carries: the two endpoints config.go has no opinion about, and
// the optional durable spool directory.
type Options struct {
	TriplestoreEndpoint string
	SearchEngineBaseURL string
	AttachmentBase      string
	ExtractionCacheBase string
	SpoolDir            string // empty disables the durable job spool
	Workers             int
	QueueLimit          int
}

// Pipeline is the assembled system: every component the service
// entrypoint needs to start and stop.
type Pipeline struct {
	Config *config.Config
	Log    logging.Logger

	Gateway  gateway.Gateway
	Engine   gateway.SearchEngine
	Registry *indexmgmt.Registry
	Manager  *indexmgmt.Manager
	Builder  *docbuilder.Builder
	Router   *router.Router
	Handler  *updatehandler.Handler
	Spool    *spool.Spool
}

// New assembles every collaborator but does not start background work —
// callers call Initialize then Run.
func New(cfg *config.Config, opts Options, log logging.Logger) (*Pipeline, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	sudo := gateway.NewSudoGateway(opts.TriplestoreEndpoint, httpClient)
	engine := gateway.NewElasticsearchEngine(opts.SearchEngineBaseURL, httpClient)

	extractionCache, err := docbuilder.NewExtractionCache(opts.ExtractionCacheBase, nil, log)
	if err != nil {
		return nil, fmt.Errorf("building extraction cache: %w", err)
	}
	builder := docbuilder.NewBuilder(sudo, cfg.Model, opts.AttachmentBase, cfg.MaximumFileSize, extractionCache, log)

	registry := indexmgmt.NewRegistry(sudo, engine, log, cfg.PersistIndexes)
	manager := indexmgmt.NewManager(registry, cfg.Model, builder, log, cfg.BatchSize)

	r := router.New(sudo, cfg.Model, log)
	handler := updatehandler.New(sudo, registry, cfg.Model, builder, log, opts.Workers, opts.QueueLimit)

	var js *spool.Spool
	if opts.SpoolDir != "" {
		js, err = spool.Open(opts.SpoolDir)
		if err != nil {
			return nil, fmt.Errorf("opening job spool: %w", err)
		}
		handler.WithSpool(js)
	}

	return &Pipeline{
		Config:   cfg,
		Log:      log,
		Gateway:  sudo,
		Engine:   engine,
		Registry: registry,
		Manager:  manager,
		Builder:  builder,
		Router:   r,
		Handler:  handler,
		Spool:    js,
	}, nil
}

// Initialize loads or purges the persisted catalog and runs eager
// indexing, then replays any job the spool recorded but never saw
// acknowledged — work that was in flight when a prior process crashed.
func (p *Pipeline) Initialize(ctx context.Context) error {
	if err := p.Manager.Initialize(ctx, p.Config.EagerIndexingGroups); err != nil {
		return fmt.Errorf("initializing index manager: %w", err)
	}
	if p.Spool == nil {
		return nil
	}
	pending, err := p.Spool.Pending()
	if err != nil {
		return fmt.Errorf("replaying job spool: %w", err)
	}
	for _, job := range pending {
		if err := p.Handler.Enqueue(job); err != nil {
			return fmt.Errorf("re-enqueueing spooled job: %w", err)
		}
	}
	p.Log.Info("replayed spooled jobs", "count", len(pending))
	return nil
}

// Ingest routes an incoming delta message and enqueues the resulting
// jobs, persisting each to the spool first when one is configured.
func (p *Pipeline) Ingest(ctx context.Context, msg []byte) (int, error) {
	delta, err := rdfvalue.ParseDeltaMessage(msg)
	if err != nil {
		return 0, err
	}
	jobs, err := p.Router.Route(ctx, delta)
	if err != nil {
		return 0, fmt.Errorf("routing delta: %w", err)
	}
	for _, job := range jobs {
		if p.Spool != nil {
			if err := p.Spool.Append(job); err != nil {
				return 0, fmt.Errorf("spooling job: %w", err)
			}
		}
		if err := p.Handler.Enqueue(job); err != nil {
			return 0, fmt.Errorf("enqueueing job: %w", err)
		}
	}
	return len(jobs), nil
}

// Run starts the worker pool and blocks until ctx is done and the queue
// drains.
func (p *Pipeline) Run(ctx context.Context) {
	p.Handler.Run(ctx)
}

// Close releases the spool handle, if any.
func (p *Pipeline) Close() error {
	if p.Spool == nil {
		return nil
	}
	return p.Spool.Close()
}
