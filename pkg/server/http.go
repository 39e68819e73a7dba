package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bastiangx/pantry/internal/logger"
	"github.com/bastiangx/pantry/pkg/index"
	"github.com/bastiangx/pantry/pkg/metrics"
	"github.com/bastiangx/pantry/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// HTTPServer serves the completer as a small JSON API:
//
//	GET /suggest?q=be&limit=5
//	GET /valid?token=beef
//	GET /stats
//	GET /healthz
//	GET /metrics
type HTTPServer struct {
	completer suggest.ICompleter
	gate      *index.Gate
	metrics   *metrics.Metrics
	router    *mux.Router
	srv       *http.Server
	logger    *log.Logger
}

// NewHTTPServer wires the routes. gate and m may be nil.
func NewHTTPServer(addr string, completer suggest.ICompleter, gate *index.Gate, m *metrics.Metrics) *HTTPServer {
	h := &HTTPServer{
		completer: completer,
		gate:      gate,
		metrics:   m,
		router:    mux.NewRouter(),
		logger:    logger.New("http"),
	}
	h.router.HandleFunc("/suggest", h.handleSuggest).Methods(http.MethodGet)
	h.router.HandleFunc("/valid", h.handleValid).Methods(http.MethodGet)
	h.router.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	h.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if m != nil {
		h.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	h.router.Use(h.logRequests)

	h.srv = &http.Server{
		Addr:              addr,
		Handler:           h.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return h
}

// Handler returns the routed handler, mainly for tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (h *HTTPServer) ListenAndServe() error {
	h.logger.Infof("Listening on %s", h.srv.Addr)
	if err := h.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}

func (h *HTTPServer) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("q")
	if prefix == "" {
		writeJSON(w, http.StatusBadRequest, CompletionError{Error: "missing q parameter", Code: http.StatusBadRequest})
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, CompletionError{Error: "invalid limit", Code: http.StatusBadRequest})
			return
		}
		limit = n
	}

	start := time.Now()
	suggestions := h.completer.Complete(prefix, limit)
	writeJSON(w, http.StatusOK, CompletionResponse{
		Suggestions: toWire(suggestions),
		Count:       len(suggestions),
		TimeTaken:   time.Since(start).Microseconds(),
	})
}

func (h *HTTPServer) handleValid(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	ok, ids := h.completer.Validate(token)
	writeJSON(w, http.StatusOK, ValidateResponse{Token: token, Valid: ok, IDs: ids})
}

func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	st := h.completer.Stats()
	resp := StatsResponse{Status: "ok", Tokens: st["tokens"], Queries: st["queries"]}
	if h.gate != nil {
		rep := h.gate.LastReport()
		resp.State = rep.State.String()
		resp.Source = string(rep.Source)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Marshaling response: %v", err)
	}
}
