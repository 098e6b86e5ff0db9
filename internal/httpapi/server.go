// Package httpapi serves the local read-only status API: health, the last
// tick's snapshot and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"cloudpico-sensorsim/internal/journal"
	"cloudpico-sensorsim/internal/metrics"
	"cloudpico-sensorsim/internal/status"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type StatusSource interface {
	Snapshot() status.Snapshot
}

type JournalSummarizer interface {
	Summary(ctx context.Context) ([]journal.ChannelSummary, error)
}

type Deps struct {
	Status  StatusSource
	Metrics *metrics.Metrics
	// Journal is optional.
	Journal JournalSummarizer
	Logger  *slog.Logger
}

type statusResponse struct {
	status.Snapshot
	Journal []journal.ChannelSummary `json:"journal,omitempty"`
}

type api struct {
	deps Deps
}

// NewRouter builds the status API handler with request logging and panic
// recovery applied.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	a := &api{deps: deps}

	r := mux.NewRouter()
	r.Handle("/healthz", deps.Metrics.WrapHandler("/healthz", http.HandlerFunc(a.handleHealthz))).Methods(http.MethodGet)
	r.Handle("/status", deps.Metrics.WrapHandler("/status", http.HandlerFunc(a.handleStatus))).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.WrapHandler("/metrics", deps.Metrics.Handler())).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(deps.Logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(false),
	)
	return requestLogger(deps.Logger, recovery(r))
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Snapshot: a.deps.Status.Snapshot()}

	if a.deps.Journal != nil {
		summary, err := a.deps.Journal.Summary(r.Context())
		if err != nil {
			a.deps.Logger.Warn("journal summary", "error", err)
		} else {
			resp.Journal = summary
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": msg,
	})
}
