// Package database provides the Supabase integration: a PostgREST client and
// typed repositories for the marketplace tables.
package database

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/purpose-technology/namapp-server/internal/httputil"
)

// Client wraps the Supabase REST API.
type Client struct {
	url        string
	anonKey    string
	serviceKey string
	httpClient *http.Client
	recorder   BackendRecorder
}

// BackendRecorder receives one observation per backend call. Satisfied by
// *metrics.Metrics; nil disables recording.
type BackendRecorder interface {
	RecordBackendRequest(backend, operation, outcome string)
}

// Config holds Supabase connection settings.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
}

// NewClient creates a new Supabase client.
func NewClient(cfg Config, recorder BackendRecorder) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	parsed, err := neturl.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("supabase URL must be a valid URL")
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("supabase URL must not include user info")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase service key is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("supabase anon key is required")
	}

	transport := http.DefaultTransport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		cloned := base.Clone()
		if cloned.TLSClientConfig != nil {
			cloned.TLSClientConfig = cloned.TLSClientConfig.Clone()
			if cloned.TLSClientConfig.MinVersion < tls.VersionTLS12 {
				cloned.TLSClientConfig.MinVersion = tls.VersionTLS12
			}
		} else {
			cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		transport = cloned
	}

	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		recorder: recorder,
	}, nil
}

// URL returns the project base URL.
func (c *Client) URL() string {
	return c.url
}

const (
	maxSupabaseResponseBytes  = 8 << 20  // 8 MiB
	maxSupabaseErrorBodyBytes = 32 << 10 // 32 KiB
)

// request makes an HTTP request to the Supabase REST API. An empty bearer
// uses the service-role key, which bypasses row-level security.
func (c *Client) request(ctx context.Context, method, table string, body interface{}, query, bearer string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.url, neturl.PathEscape(table))
	if query != "" {
		url += "?" + query
	}

	data, err := c.do(ctx, method, url, body, bearer)
	c.record("rest."+table, err)
	return data, err
}

// rpc invokes a PostgREST stored function.
func (c *Client) rpc(ctx context.Context, fn string, body interface{}, bearer string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/rpc/%s", c.url, neturl.PathEscape(fn))
	data, err := c.do(ctx, http.MethodPost, url, body, bearer)
	c.record("rpc."+fn, err)
	return data, err
}

// count returns the exact row count for table restricted by query, without
// materializing rows.
func (c *Client) count(ctx context.Context, table, query, bearer string) (int64, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.url, neturl.PathEscape(table))
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.setAuthHeaders(req, bearer)
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("count."+table, err)
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSupabaseErrorBodyBytes))

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("supabase API error %d", resp.StatusCode)
		c.record("count."+table, err)
		return 0, err
	}

	total, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	c.record("count."+table, err)
	return total, err
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, bearer string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, bearer)
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, maxSupabaseErrorBodyBytes)
		if readErr != nil {
			return nil, fmt.Errorf("read error response: %w", readErr)
		}
		msg := strings.TrimSpace(string(respBody))
		if truncated {
			msg += "...(truncated)"
		}
		return nil, fmt.Errorf("supabase API error %d: %s", resp.StatusCode, msg)
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxSupabaseResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

// setAuthHeaders applies the key pair for the request: the service role when
// bearer is empty, otherwise the anon key plus the caller's own token so
// row-level security applies.
func (c *Client) setAuthHeaders(req *http.Request, bearer string) {
	if bearer == "" {
		req.Header.Set("apikey", c.serviceKey)
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
		return
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
}

func (c *Client) record(operation string, err error) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.recorder.RecordBackendRequest("supabase", operation, outcome)
}

// parseContentRangeTotal extracts the total from a PostgREST Content-Range
// header such as "0-24/3573" or "*/0".
func parseContentRangeTotal(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", header)
	}
	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse Content-Range %q: %w", header, err)
	}
	return total, nil
}
