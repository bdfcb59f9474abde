// Package adminrpc exposes a small JSON-over-HTTP admin surface for
// operating the pipeline: health, delta ingestion, and index status.
package adminrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deltasync/deltasync/config"
	"github.com/deltasync/deltasync/indexmgmt"
	"github.com/deltasync/deltasync/indexsyncerrors"
	"github.com/deltasync/deltasync/logging"
	"github.com/deltasync/deltasync/updatehandler"
)

// Ingester is the one pipeline.Pipeline method the admin surface needs: it
// parses, routes, spools (when configured), and enqueues a delta message
// as one unit, so handleDelta never has to duplicate that sequencing
// itself.
type Ingester interface {
	Ingest(ctx context.Context, msg []byte) (int, error)
}

// Server wires the admin HTTP surface to the running pipeline's
// collaborators.
type Server struct {
	Ingester Ingester
	Handler  *updatehandler.Handler
	Registry *indexmgmt.Registry
	Model    *config.Model
	Log      logging.Logger
}

func New(ingester Ingester, h *updatehandler.Handler, registry *indexmgmt.Registry, model *config.Model, log logging.Logger) *Server {
	return &Server{Ingester: ingester, Handler: h, Registry: registry, Model: model, Log: log}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/delta", s.handleDelta)
	mux.HandleFunc("/status/indexes", s.handleIndexStatus)
	mux.HandleFunc("/status/inflight", s.handleInFlight)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleDelta accepts a delta message and hands it to the pipeline's
// Ingest, which parses, routes, spools (when configured), and enqueues
// the resulting jobs as one unit. It responds before jobs have
// necessarily been reconciled — ingestion success means "accepted", not
// "indexed".
func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	n, err := s.Ingester.Ingest(r.Context(), raw)
	switch {
	case err == nil:
		// fall through to the success response below
	case errors.Is(err, indexsyncerrors.ErrConfig):
		http.Error(w, "invalid delta message: "+err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, indexsyncerrors.ErrQueueClosed):
		s.Log.ErrorCtx(r.Context(), "ingest rejected: queue closed", "err", err)
		http.Error(w, "service shutting down", http.StatusServiceUnavailable)
		return
	default:
		s.Log.ErrorCtx(r.Context(), "ingest failed", "err", err)
		http.Error(w, "ingest failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jobs_accepted": n})
}

type indexStatus struct {
	TypeName      string               `json:"type_name"`
	Name          string               `json:"name"`
	State         string               `json:"state"`
	AllowedGroups config.AllowedGroups `json:"allowed_groups"`
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	var out []indexStatus
	for typeName := range s.Model.Types {
		for _, idx := range s.Registry.IndexesForType(typeName) {
			out = append(out, indexStatus{
				TypeName:      idx.TypeName,
				Name:          idx.Name,
				State:         idx.State().String(),
				AllowedGroups: idx.AllowedGroups,
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleInFlight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Handler.InFlight())
}

// Serve runs the admin HTTP server until ctx is done.
func Serve(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{Addr: addr, Handler: s.Mux()}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
