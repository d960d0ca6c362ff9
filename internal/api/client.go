// Package api provides the HTTP client for the anomaly analysis backend.
//
// The backend owns all of the hard domain logic (rule engines, ML scoring,
// clustering); skywatch only consumes its request/response interface. Errors
// are surfaced as plain error returns - a non-2xx status is an error, and a
// cancelled context propagates context.Canceled so callers can tell a
// superseded request from a genuine failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/abelbrown/skywatch/internal/anomaly"
)

// userAgent identifies skywatch to the backend.
const userAgent = "Skywatch/1.0 (+https://github.com/abelbrown/skywatch)"

// Rule is one entry of the backend's rule catalog.
type Rule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Client talks to the anomaly backend.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for the backend at baseURL with the given
// request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// AnomaliesRange fetches detections with event time in [start, end) epoch
// seconds. Used for historical windows and realtime poll windows.
func (c *Client) AnomaliesRange(ctx context.Context, start, end int64) ([]anomaly.Record, error) {
	return c.getRecords(ctx, "/api/v1/anomalies", rangeQuery(start, end))
}

// ResearchRange fetches detections from the research corpus for [start, end).
func (c *Client) ResearchRange(ctx context.Context, start, end int64) ([]anomaly.Record, error) {
	return c.getRecords(ctx, "/api/v1/research/anomalies", rangeQuery(start, end))
}

// RuleAnomalies fetches all detections matched by a single rule.
func (c *Client) RuleAnomalies(ctx context.Context, ruleID string) ([]anomaly.Record, error) {
	return c.getRecords(ctx, "/api/v1/rules/"+url.PathEscape(ruleID)+"/anomalies", nil)
}

// Rules fetches the rule catalog.
func (c *Client) Rules(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	if err := c.getJSON(ctx, "/api/v1/rules", nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// FeedbackRecords fetches the curated feedback history.
func (c *Client) FeedbackRecords(ctx context.Context) ([]anomaly.Record, error) {
	return c.getRecords(ctx, "/api/v1/feedback/records", nil)
}

// FeedbackLegacy fetches the legacy feedback source. Only consulted when the
// curated source yields nothing - the two are never merged.
func (c *Client) FeedbackLegacy(ctx context.Context) ([]anomaly.Record, error) {
	return c.getRecords(ctx, "/api/v1/feedback/legacy", nil)
}

// SubmitLabel reports an operator verdict on a record to the backend.
func (c *Client) SubmitLabel(ctx context.Context, flightID string, timestamp int64, label anomaly.Label) error {
	body, err := json.Marshal(map[string]any{
		"flight_id": flightID,
		"timestamp": timestamp,
		"label":     label,
	})
	if err != nil {
		return fmt.Errorf("api: failed to encode label: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/feedback", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("api: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api: submit label: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("api: submit label: HTTP %d", resp.StatusCode)
	}
	return nil
}

func rangeQuery(start, end int64) url.Values {
	q := url.Values{}
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("end", strconv.FormatInt(end, 10))
	return q
}

func (c *Client) getRecords(ctx context.Context, path string, query url.Values) ([]anomaly.Record, error) {
	var records []anomaly.Record
	if err := c.getJSON(ctx, path, query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// getJSON performs a GET and decodes the response body into out. A malformed
// body is reported as an error, same as any transport failure - the caller
// treats both as a transient fetch failure.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("api: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		io.CopyN(io.Discard, resp.Body, 512)
		return fmt.Errorf("api: fetch %s: HTTP %d %s", path, resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: fetch %s: failed to decode response: %w", path, err)
	}
	return nil
}
