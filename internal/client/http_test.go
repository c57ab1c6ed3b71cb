package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler, token string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", token)
}

func TestHTTPClient_Claim(t *testing.T) {
	h := &testHandler{responseBody: `{"granted":true,"duplicate":false,"reason":"new","attempts":1}`}
	c := newTestClient(t, h, "secret")

	resp, err := c.Claim(context.Background(), "evt_1", "invoice.paid")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/claims" {
		t.Errorf("request = %s %s, want POST /v1/claims", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content type = %q", h.contentType)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("authorization = %q", h.auth)
	}
	if h.body != `{"event_id":"evt_1","event_type":"invoice.paid"}` {
		t.Errorf("body = %s", h.body)
	}
	if !resp.Granted || resp.Reason != "new" || resp.Attempts != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHTTPClient_ClaimUnavailable(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusServiceUnavailable,
		responseBody: `{"granted":false,"duplicate":false,"reason":"store_unavailable"}`,
	}
	c := newTestClient(t, h, "")

	_, err := c.Claim(context.Background(), "evt_1", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "store_unavailable" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestHTTPClient_ReportSuccess(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c := newTestClient(t, h, "")

	if err := c.ReportSuccess(context.Background(), "evt/1"); err != nil {
		t.Fatalf("ReportSuccess: %v", err)
	}
	if h.method != http.MethodPost || h.rawPath != "/v1/events/evt%2F1/success" {
		t.Errorf("request = %s %s, want escaped id", h.method, h.rawPath)
	}
	if h.auth != "" {
		t.Errorf("expected no authorization header, got %q", h.auth)
	}
}

func TestHTTPClient_ReportFailure(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c := newTestClient(t, h, "")

	if err := c.ReportFailure(context.Background(), "evt_1", "upstream timeout"); err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}
	if h.path != "/v1/events/evt_1/failure" {
		t.Errorf("path = %s", h.path)
	}
	if h.body != `{"error":"upstream timeout"}` {
		t.Errorf("body = %s", h.body)
	}
}

func TestHTTPClient_GetEvent(t *testing.T) {
	h := &testHandler{responseBody: `{"event_id":"evt_1","event_type":"invoice.paid","status":"failed","attempts":2,"last_error":"boom","created_at":"2026-03-01T12:00:00Z","claimed_at":"2026-03-01T12:05:00Z"}`}
	c := newTestClient(t, h, "")

	rec, err := c.GetEvent(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if h.method != http.MethodGet || h.path != "/v1/events/evt_1" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if rec.Status != model.StatusFailed || rec.Attempts != 2 || rec.LastError != "boom" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.ProcessedAt != nil {
		t.Errorf("expected nil processed_at, got %v", rec.ProcessedAt)
	}
}

func TestHTTPClient_GetEventNotFound(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNotFound, responseBody: `{"error":"event not found"}`}
	c := newTestClient(t, h, "")

	_, err := c.GetEvent(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "event not found" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if apiErr.Error() != "HTTP 404: event not found" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestHTTPClient_ListEvents(t *testing.T) {
	h := &testHandler{responseBody: `{"events":[{"event_id":"evt_1","status":"processing"},{"event_id":"evt_2","status":"failed"}]}`}
	c := newTestClient(t, h, "")

	recs, err := c.ListEvents(context.Background(), &rpc.ListEventsRequest{
		Status:    []string{"processing", "failed"},
		EventType: "invoice.paid",
		Newest:    true,
		Limit:     10,
		Offset:    20,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	for _, want := range []string{"status=processing%2Cfailed", "type=invoice.paid", "order=newest", "limit=10", "offset=20"} {
		if !strings.Contains(h.query, want) {
			t.Errorf("query %q missing %q", h.query, want)
		}
	}
	if len(recs) != 2 || recs[1].EventID != "evt_2" {
		t.Errorf("unexpected records %+v", recs)
	}
}

func TestHTTPClient_ListEventsNoFilters(t *testing.T) {
	h := &testHandler{responseBody: `{"events":[]}`}
	c := newTestClient(t, h, "")

	recs, err := c.ListEvents(context.Background(), &rpc.ListEventsRequest{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if h.query != "" {
		t.Errorf("expected empty query, got %q", h.query)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestHTTPClient_GetStats(t *testing.T) {
	h := &testHandler{responseBody: `{"total":3,"processed":1,"failed":1,"processing":1,"exhausted":0,"recent_events":[],"recent_by_type":[{"event_type":"invoice.paid","count":3}]}`}
	c := newTestClient(t, h, "")

	stats, err := c.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Total != 3 || len(stats.RecentByType) != 1 || stats.RecentByType[0].Count != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHTTPClient_CheckAlerts(t *testing.T) {
	h := &testHandler{responseBody: `{"severity":"warning","message":"1 of 10 events failed","window":"1h0m0s","total":10,"failed":1,"failure_rate":0.1}`}
	c := newTestClient(t, h, "")

	report, err := c.CheckAlerts(context.Background())
	if err != nil {
		t.Fatalf("CheckAlerts: %v", err)
	}
	if h.path != "/v1/alerts/check" {
		t.Errorf("path = %s", h.path)
	}
	if report.Severity != health.SeverityWarning || report.Failed != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c := newTestClient(t, h, "")

	got, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if got != "ok" {
		t.Errorf("Health() = %q, want ok", got)
	}
}

func TestHTTPClient_NonJSONError(t *testing.T) {
	h := &testHandler{statusCode: http.StatusBadGateway, responseBody: "bad gateway\n"}
	c := newTestClient(t, h, "")

	_, err := c.GetStats(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "bad gateway" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestHTTPClient_ImplementsLedgerClient(t *testing.T) {
	var _ LedgerClient = (*HTTPClient)(nil)
}
