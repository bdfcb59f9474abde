package updatehandler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/deltasync/deltasync/concurrent"
	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/docbuilder"
	"github.com/deltasync/deltasync/gateway"
	"github.com/deltasync/deltasync/indexmgmt"
	"github.com/deltasync/deltasync/indexsyncerrors"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/metrics"
	"github.com/deltasync/deltasync/router"
)

// spool is the subset of *spool.Spool the handler needs to acknowledge a
// reconciled job; declared locally so this package never imports spool
// and a nil interface value can stand in for "no durable spool
// configured" without a separate enabled flag.
type spool interface {
	Ack(job router.Job) error
}

// Handler pulls jobs off a Queue and reconciles each affected Index
// against the triplestore and the Search Engine.
type Handler struct {
	Base     gateway.Gateway
	Registry *indexmgmt.Registry
	Model    *config.Model
	Builder  *docbuilder.Builder
	Log      logging.Logger
	Queue    *Queue
	Workers  int
	Spool    spool

	// inFlight tracks the job each worker is currently reconciling, keyed
	// by router.Job.Key(). Exposed read-only for admin introspection;
	// nothing in the reconciliation path depends on its contents.
	inFlight *concurrent.Map[string, router.Job]
}

func New(base gateway.Gateway, registry *indexmgmt.Registry, model *config.Model, builder *docbuilder.Builder, log logging.Logger, workers, queueLimit int) *Handler {
	if workers <= 0 {
		workers = 1
	}
	return &Handler{
		Base:     base,
		Registry: registry,
		Model:    model,
		Builder:  builder,
		Log:      log,
		Queue:    NewQueue(queueLimit),
		Workers:  workers,
		inFlight: concurrent.NewMap[string, router.Job](),
	}
}

// WithSpool attaches a durable job spool whose Ack is called once a job
// has been fully reconciled across every affected index. Call before Run.
func (h *Handler) WithSpool(s spool) *Handler {
	h.Spool = s
	return h
}

// InFlight returns a snapshot of the jobs currently being reconciled by a
// worker, for admin status reporting.
func (h *Handler) InFlight() []router.Job {
	out := make([]router.Job, 0, h.inFlight.Size())
	h.inFlight.Range(func(_ string, job router.Job) bool {
		out = append(out, job)
		return true
	})
	return out
}

// Enqueue submits a job, blocking on backpressure per Queue.Enqueue. The
// Delta Router must call this from a thread distinct from any worker to
// avoid deadlock against a full queue.
func (h *Handler) Enqueue(job router.Job) error {
	return h.Queue.Enqueue(job)
}

// Run starts the worker pool and blocks until every worker exits, which
// happens once ctx is done and the queue has drained.
func (h *Handler) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = h.Queue.Close()
	}()

	var wg sync.WaitGroup
	for i := 0; i < h.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.runWorker(ctx)
		}()
	}
	wg.Wait()
}

func (h *Handler) runWorker(ctx context.Context) {
	for {
		job, err := h.Queue.Dequeue()
		if err != nil {
			return
		}
		h.inFlight.Store(job.Key(), job)
		err = h.process(ctx, job)
		h.inFlight.Delete(job.Key())

		if h.Spool == nil {
			continue
		}
		if err != nil {
			// Left pending: the spool replays it on the next restart rather
			// than losing a job some index never got to see.
			continue
		}
		if err := h.Spool.Ack(job); err != nil {
			h.Log.ErrorCtx(ctx, "acknowledging job in spool failed", "type", job.TypeName, "subject", job.Subject, "err", err)
		}
	}
}

// process reconciles job against every index registered for its type,
// returning the first error encountered. It does not stop at the first
// failing index — every index gets a chance to reconcile — but a caller
// deciding whether the job is fully done (e.g. whether to Ack a durable
// spool entry) must treat any returned error as "not fully reconciled".
func (h *Handler) process(ctx context.Context, job router.Job) error {
	def, ok := h.Model.Types[job.TypeName]
	if !ok {
		h.Log.ErrorCtx(ctx, "job references unknown type definition", "type", job.TypeName, "subject", job.Subject)
		metrics.JobsProcessed.WithLabelValues(string(job.Op), "error").Inc()
		return fmt.Errorf("%w: %s", indexsyncerrors.ErrTypeUnknown, job.TypeName)
	}

	var firstErr error
	for _, idx := range h.Registry.IndexesForType(job.TypeName) {
		if err := h.processForIndex(ctx, job, def, idx); err != nil {
			h.Log.ErrorCtx(ctx, "job failed for index", "type", job.TypeName, "subject", job.Subject, "index", idx.Name, "err", err)
			metrics.JobsProcessed.WithLabelValues(string(job.Op), "error").Inc()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.JobsProcessed.WithLabelValues(string(job.Op), "success").Inc()
	}
	return firstErr
}

func (h *Handler) processForIndex(ctx context.Context, job router.Job, def *config.TypeDefinition, idx *indexmgmt.Index) error {
	scoped := h.Base.Scoped(idx.AllowedGroups)
	exists, err := h.resourceExists(ctx, scoped, job.Subject, def)
	if err != nil {
		return fmt.Errorf("%w: existence check for %s: %v", indexsyncerrors.ErrQuery, job.Subject, err)
	}

	switch job.Op {
	case router.OpUpdate:
		if !exists {
			// Not visible under this index's authorization scope, or
			// deleted out from under us between route and dequeue.
			return nil
		}
		doc, err := h.Builder.Build(ctx, job.Subject, def, idx.AllowedGroups)
		if err != nil {
			return fmt.Errorf("building document: %w", err)
		}
		if err := h.Registry.Engine.UpsertDocument(ctx, idx.Name, job.Subject, doc); err != nil {
			return fmt.Errorf("%w: upserting document: %v", indexsyncerrors.ErrTransport, err)
		}
		return nil

	case router.OpDelete:
		if exists {
			// Still visible under this scope: the delete applied to some
			// other authorization context, this index keeps the document.
			return nil
		}
		if err := h.Registry.Engine.DeleteDocument(ctx, idx.Name, job.Subject); err != nil {
			return fmt.Errorf("%w: deleting document: %v", indexsyncerrors.ErrTransport, err)
		}
		return nil

	default:
		return fmt.Errorf("unrecognized job op %q", job.Op)
	}
}

func (h *Handler) resourceExists(ctx context.Context, scoped gateway.Gateway, subject string, def *config.TypeDefinition) (bool, error) {
	types := make([]string, len(def.RDFTypes))
	for i, t := range def.RDFTypes {
		types[i] = "<" + t + ">"
	}
	query := fmt.Sprintf("ASK { <%s> a ?type . FILTER(?type IN (%s)) }", subject, strings.Join(types, ", "))
	return scoped.Ask(ctx, query)
}
