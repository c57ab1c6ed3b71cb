package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except the health and readiness
// probes) must include a valid Authorization: Bearer <token> header.
func (s *LedgerServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/claims", s.handleClaim)
	mux.HandleFunc("POST /v1/events/{id}/success", s.handleReportSuccess)
	mux.HandleFunc("POST /v1/events/{id}/failure", s.handleReportFailure)
	mux.HandleFunc("GET /v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/stats", s.handleGetStats)
	mux.HandleFunc("GET /v1/alerts/check", s.handleCheckAlerts)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/ready", s.handleReady)
	return RequestIDMiddleware(LoggingMiddleware(s.logger, AuthMiddleware(authToken, mux)))
}

// handleClaim handles POST /v1/claims.
func (s *LedgerServer) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req rpc.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.claim(r.Context(), &req)
	var ie inputError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.Is(err, errUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleReportSuccess handles POST /v1/events/{id}/success.
func (s *LedgerServer) handleReportSuccess(w http.ResponseWriter, r *http.Request) {
	s.ledger.ReportSuccess(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// handleReportFailure handles POST /v1/events/{id}/failure.
func (s *LedgerServer) handleReportFailure(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.ledger.ReportFailure(r.Context(), r.PathValue("id"), body.Error)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEvent handles GET /v1/events/{id}.
func (s *LedgerServer) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListEvents handles GET /v1/events.
func (s *LedgerServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := rpc.ListEventsRequest{
		EventType: q.Get("type"),
		Newest:    q.Get("order") == "newest",
	}
	if v := q.Get("status"); v != "" {
		req.Status = strings.Split(v, ",")
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		req.Offset = n
	}

	filter, err := s.listFilter(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := s.ledger.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*model.Record{}
	}
	writeJSON(w, http.StatusOK, rpc.ListEventsResponse{Events: recs})
}

// handleGetStats handles GET /v1/stats.
func (s *LedgerServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.GetStats(r.Context()))
}

// handleCheckAlerts handles GET /v1/alerts/check.
func (s *LedgerServer) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusNotImplemented, "health monitor not configured")
		return
	}
	report, err := s.monitor.Check(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleHealth handles GET /v1/health.
func (s *LedgerServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady handles GET /v1/ready.
func (s *LedgerServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
