package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wamstack/wamstack/pkg/hub"
	"github.com/wamstack/wamstack/server/internal/alerts"
	"github.com/wamstack/wamstack/server/internal/analysis"
	"github.com/wamstack/wamstack/server/internal/metrics"
	"github.com/wamstack/wamstack/server/internal/receiver"
	"github.com/wamstack/wamstack/server/internal/store"
)

const (
	defaultLimit = 200
	maxBodyBytes = 8 << 20
)

// Options wires the handler to the server's components.
type Options struct {
	Receiver *receiver.Receiver
	Store    store.Store
	Alerts   *alerts.Engine
	Hub      *hub.Hub

	// Backend names the storage backend for /health.
	Backend string
}

// Handler serves the REST API, the push stream endpoints, and /metrics.
type Handler struct {
	opts   Options
	router *mux.Router
}

// New creates a Handler and registers all routes.
func New(opts Options) http.Handler {
	h := &Handler{opts: opts, router: mux.NewRouter()}

	r := h.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/stream", opts.Hub.ServeSSE).Methods(http.MethodGet)
	r.Handle("/ws/stream", opts.Hub).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(instrument, compress)
	v1.HandleFunc("/sensor", h.sensor).Methods(http.MethodPost)
	v1.HandleFunc("/readings", h.readings).Methods(http.MethodGet)
	v1.HandleFunc("/thresholds", h.getThresholds).Methods(http.MethodGet)
	v1.HandleFunc("/thresholds", h.setThresholds).Methods(http.MethodPost, http.MethodPut)
	v1.HandleFunc("/alerts", h.alerts).Methods(http.MethodGet)
	v1.HandleFunc("/analyze", h.analyze).Methods(http.MethodPost)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /health.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"backend":     h.opts.Backend,
		"subscribers": h.opts.Hub.Count(),
	})
}

// sensor handles POST /api/v1/sensor: one raw reading object.
func (h *Handler) sensor(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(w, r, &raw); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	rec, err := h.opts.Receiver.Ingest(r.Context(), raw)
	if errors.Is(err, receiver.ErrEmpty) {
		jsonErr(w, http.StatusBadRequest, "no json payload")
		return
	}
	if err != nil {
		slog.Error("api: ingest failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not store reading")
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"ok": true, "id": rec.ID})
}

// readings returns GET /api/v1/readings?limit=K, newest first.
func (h *Handler) readings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.opts.Store.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("api: read readings", "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not read readings")
		return
	}
	jsonResp(w, http.StatusOK, recs)
}

// getThresholds returns GET /api/v1/thresholds.
func (h *Handler) getThresholds(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.opts.Receiver.Thresholds())
}

// setThresholds handles POST|PUT /api/v1/thresholds. Bounds absent from the
// body keep their current values.
func (h *Handler) setThresholds(w http.ResponseWriter, r *http.Request) {
	th := h.opts.Receiver.Thresholds()
	if err := decodeBody(w, r, &th); err != nil {
		jsonErr(w, http.StatusBadRequest, "expected JSON object")
		return
	}
	if err := th.Validate(); err != nil {
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.opts.Receiver.SetThresholds(r.Context(), th); err != nil {
		slog.Error("api: set thresholds", "err", err)
		jsonErr(w, http.StatusInternalServerError, "could not save thresholds")
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"ok": true, "thresholds": th})
}

// alerts returns GET /api/v1/alerts?limit=K, newest first.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, h.opts.Alerts.Recent(limit))
}

type analyzeRequest struct {
	Rows   []map[string]any `json:"rows"`
	Inputs string           `json:"inputs"`
}

// analyze handles POST /api/v1/analyze with {"rows": [...]}.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Rows) == 0 {
		jsonErr(w, http.StatusBadRequest, "no rows supplied: send rows for local analysis")
		return
	}
	res := analysis.Local(req.Rows, h.opts.Receiver.Thresholds())
	slog.Info("api: local analysis", "rows", len(req.Rows), "breaches", len(res.Breaches))
	jsonResp(w, http.StatusOK, res)
}

// --- middleware -------------------------------------------------------------

func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// instrument observes request latency labelled by route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (s *statusWriter) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// --- helpers ----------------------------------------------------------------

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, map[string]string{"error": msg})
}
