package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wamstack/wamstack/console/internal/analysis"
	"github.com/wamstack/wamstack/console/internal/engine"
	"github.com/wamstack/wamstack/console/internal/normalize"
	"github.com/wamstack/wamstack/pkg/types"
)

// maxBody bounds request bodies.
const maxBody = 8 << 20

// Analyzer is the external analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, rows []types.Reading) (analysis.Result, error)
}

// Options wires a Handler.
type Options struct {
	Engine   *engine.Engine
	Analyzer Analyzer
	Snapshot Fetcher

	// Views serves /ws/view. May be nil.
	Views http.Handler

	// AnalysisRows is how many recent readings are sent for analysis.
	AnalysisRows int

	// SnapshotLimit is how many readings a refetch requests.
	SnapshotLimit int
}

// Handler is the console HTTP handler.
type Handler struct {
	opts Options
	mux  *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(opts Options) http.Handler {
	h := &Handler{opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("/health", h.health)
	h.mux.HandleFunc("/api/v1/view", h.view)
	h.mux.HandleFunc("/api/v1/readings", h.readings)
	h.mux.HandleFunc("/api/v1/import", h.importRecords)
	h.mux.HandleFunc("/api/v1/thresholds", h.thresholds)
	h.mux.HandleFunc("/api/v1/analyze", h.analyze)
	h.mux.HandleFunc("/api/v1/analysis/clear", h.clearAnalysis)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.Handle("/metrics", promhttp.Handler())
	if opts.Views != nil {
		h.mux.Handle("/ws/view", opts.Views)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// view returns GET /api/v1/view.
func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.opts.Engine.View())
}

// readings handles POST /api/v1/readings: one manually entered record.
func (h *Handler) readings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var rec normalize.Record
	if err := decodeBody(w, r, &rec); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if rec == nil {
		jsonErr(w, http.StatusBadRequest, "expected a JSON object")
		return
	}
	if !h.opts.Engine.Append(rec, engine.SourceManual) {
		jsonErr(w, http.StatusUnprocessableEntity, "record has no ph, tds, turbidity or iron value")
		return
	}
	jsonResp(w, http.StatusCreated, ingestResponse{Admitted: 1})
}

// importRecords handles POST /api/v1/import: a JSON array of raw records.
func (h *Handler) importRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var recs []normalize.Record
	if err := decodeBody(w, r, &recs); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	n := h.opts.Engine.Load(recs, engine.SourceImport)
	h.opts.Engine.Notify(fmt.Sprintf("Imported %d rows", n), engine.LevelOK)
	jsonResp(w, http.StatusOK, ingestResponse{Admitted: n, Dropped: len(recs) - n})
}

// thresholds handles GET and POST /api/v1/thresholds. POST merges the given
// bounds over the ones in effect.
func (h *Handler) thresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, h.opts.Engine.Thresholds())
	case http.MethodPost, http.MethodPut:
		th := h.opts.Engine.Thresholds()
		if err := decodeBody(w, r, &th); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.opts.Engine.SetThresholds(th); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonResp(w, http.StatusOK, th)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// analyze handles POST /api/v1/analyze.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.opts.Analyzer == nil {
		jsonErr(w, http.StatusServiceUnavailable, "analysis not configured")
		return
	}

	rows := h.opts.Engine.Tail(h.opts.AnalysisRows)
	res, err := h.opts.Analyzer.Analyze(r.Context(), rows)
	switch {
	case errors.Is(err, analysis.ErrBusy):
		jsonErr(w, http.StatusConflict, "analysis already in progress")
		return
	case err != nil:
		msg := err.Error()
		var ae *analysis.Error
		if errors.As(err, &ae) {
			msg = ae.Message
		}
		slog.Warn("api: analysis failed", "err", err)
		h.opts.Engine.Notify("Analyze failed: "+msg, engine.LevelWarn)
		jsonErr(w, http.StatusBadGateway, msg)
		return
	}

	h.opts.Engine.ApplyAnalysis(res.Text, res.Chart)
	jsonResp(w, http.StatusOK, h.opts.Engine.Advisory())
}

// clearAnalysis handles POST /api/v1/analysis/clear.
func (h *Handler) clearAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.opts.Engine.ClearAnalysis()
	jsonResp(w, http.StatusOK, h.opts.Engine.Advisory())
}

// snapshot handles POST /api/v1/snapshot: a manual retry of the startup fetch.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.opts.Snapshot == nil {
		jsonErr(w, http.StatusServiceUnavailable, "snapshot not configured")
		return
	}
	n, err := Sync(r.Context(), h.opts.Snapshot, h.opts.Engine, h.opts.SnapshotLimit)
	if err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, ingestResponse{Admitted: n})
}

// --- helpers ----------------------------------------------------------------

type ingestResponse struct {
	Admitted int `json:"admitted"`
	Dropped  int `json:"dropped"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
