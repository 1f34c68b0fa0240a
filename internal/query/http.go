package query

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// maxRequestBody bounds a POST /api/query body.
const maxRequestBody = 1 << 20

// Handler binds the query surface to HTTP. One POST endpoint accepts the
// message-style envelope; each operation also has a GET convenience
// route.
type Handler struct {
	service *Service
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewHandler creates the HTTP binding of the query surface.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		service: service,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /api/query", h.handleQuery)
	h.mux.HandleFunc("GET /api/history", h.handleHistory)
	h.mux.HandleFunc("GET /api/visits", h.handleVisits)
	h.mux.HandleFunc("GET /api/most-visited", h.handleMostVisited)
	h.mux.HandleFunc("GET /api/top-domains", h.handleTopDomains)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return h
}

// ServeHTTP dispatches to the route table with request logging.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	h.mux.ServeHTTP(rec, r)

	h.logger.InfoContext(r.Context(), "request handled",
		"method", r.Method,
		"page", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start).String())
}

// handleQuery serves the message-style endpoint: the body is one Request
// envelope, the response one Response envelope. Operation failures stay
// HTTP 200; only an unreadable body is an HTTP-level error.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req Request

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, failure(fmt.Errorf("decode request: %w", err)))
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.Do(r.Context(), req))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, failure(err))
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.Do(r.Context(), Request{
		Op:     OpGetHistory,
		Params: Params{Days: days},
	}))
}

func (h *Handler) handleVisits(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Do(r.Context(), Request{
		Op:     OpGetVisits,
		Params: Params{URL: r.URL.Query().Get("url")},
	}))
}

func (h *Handler) handleMostVisited(w http.ResponseWriter, r *http.Request) {
	h.handleRanked(w, r, OpGetMostVisited)
}

func (h *Handler) handleTopDomains(w http.ResponseWriter, r *http.Request) {
	h.handleRanked(w, r, OpGetTopVisitedDomains)
}

// handleRanked serves the operations sharing the (days, limit) signature.
func (h *Handler) handleRanked(w http.ResponseWriter, r *http.Request, op string) {
	days, err := intParam(r, "days")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, failure(err))
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, failure(err))
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.Do(r.Context(), Request{
		Op:     op,
		Params: Params{Days: days, Limit: limit},
	}))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// intParam reads an optional non-negative integer query parameter; a
// missing parameter is zero, which the service replaces with its default.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s parameter %q", name, raw)
	}
	return v, nil
}

// statusRecorder captures the final status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
