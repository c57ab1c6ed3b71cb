package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/health"
	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/rpc"
)

// DefaultTimeout bounds every HTTP request.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements LedgerClient using the ledger HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Claim(ctx context.Context, eventID, eventType string) (*rpc.ClaimResponse, error) {
	var resp rpc.ClaimResponse
	req := rpc.ClaimRequest{EventID: eventID, EventType: eventType}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/claims", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ReportSuccess(ctx context.Context, eventID string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(eventID)+"/success", nil, nil)
}

func (c *HTTPClient) ReportFailure(ctx context.Context, eventID, errMsg string) error {
	body := map[string]string{"error": errMsg}
	return c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(eventID)+"/failure", body, nil)
}

func (c *HTTPClient) GetEvent(ctx context.Context, eventID string) (*model.Record, error) {
	var rec model.Record
	if err := c.doJSON(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(eventID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) ListEvents(ctx context.Context, req *rpc.ListEventsRequest) ([]*model.Record, error) {
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.EventType != "" {
		q.Set("type", req.EventType)
	}
	if req.Newest {
		q.Set("order", "newest")
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp rpc.ListEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) GetStats(ctx context.Context) (*model.Stats, error) {
	var stats model.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *HTTPClient) CheckAlerts(ctx context.Context) (*health.Report, error) {
	var report health.Report
	if err := c.doJSON(ctx, http.MethodGet, "/v1/alerts/check", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for 204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			switch {
			case errResp.Error != "":
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
			case errResp.Reason != "":
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Reason}
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
