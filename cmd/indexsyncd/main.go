// Command indexsyncd runs the delta-driven index maintenance service:
// it ingests delta messages over HTTP, maintains the Search-Engine
// indexes, and exposes admin/health endpoints.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deltasync/deltasync/adminrpc"
	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/metrics"
	"github.com/deltasync/deltasync/pipeline"
	"github.com/deltasync/deltasync/spool"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the type-definition configuration file")
	triplestore := flag.String("triplestore", "http://localhost:8890/sparql", "SPARQL 1.1 Query/Update endpoint")
	searchEngine := flag.String("search-engine", "http://localhost:9200", "Search Engine base URL")
	attachmentBase := flag.String("attachment-base", "/data/attachments", "filesystem base for attachment files")
	cacheBase := flag.String("cache-base", "/data/extraction-cache", "filesystem base for the extraction cache")
	spoolDir := flag.String("queue-dir", "", "optional durable job spool directory; empty disables it")
	listenAddr := flag.String("listen", ":8888", "admin/ingestion HTTP listen address")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	log := logging.NewSlogLogger(parseLevel(*logLevel))
	metrics.MustRegister(prometheus.DefaultRegisterer)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading configuration failed", "err", err)
		os.Exit(1)
	}

	opts := pipeline.Options{
		TriplestoreEndpoint: *triplestore,
		SearchEngineBaseURL: *searchEngine,
		AttachmentBase:      *attachmentBase,
		ExtractionCacheBase: *cacheBase,
		SpoolDir:            *spoolDir,
		Workers:             cfg.NumberOfThreads,
		QueueLimit:          cfg.MaxBatches * cfg.BatchSize,
	}
	p, err := pipeline.New(cfg, opts, log)
	if err != nil {
		log.Error("assembling pipeline failed", "err", err)
		os.Exit(1)
	}
	defer p.Close()

	if p.Spool != nil {
		if err := prometheus.DefaultRegisterer.Register(spool.NewCollector(p.Spool)); err != nil {
			log.Error("registering spool collector failed", "err", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := p.Initialize(ctx); err != nil {
		log.Error("initializing pipeline failed", "err", err)
		os.Exit(1)
	}

	admin := adminrpc.New(p, p.Handler, p.Registry, cfg.Model, log)
	go func() {
		if err := adminrpc.Serve(ctx, *listenAddr, admin); err != nil {
			log.Error("admin server stopped", "err", err)
		}
	}()

	log.Info("indexsyncd started", "listen", *listenAddr)
	p.Run(ctx)
	log.Info("indexsyncd stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
