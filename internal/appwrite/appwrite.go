// Package appwrite is a read-only client for the legacy document store. The
// marketplace migrated to the relational platform; what remains here is the
// original apps collection, which the admin dashboard still counts so
// unmigrated submissions stay visible.
package appwrite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/purpose-technology/namapp-server/internal/httputil"
)

// Config holds document store connection settings.
type Config struct {
	Endpoint   string
	ProjectID  string
	APIKey     string
	DatabaseID string
}

// BackendRecorder mirrors database.BackendRecorder; nil disables recording.
type BackendRecorder interface {
	RecordBackendRequest(backend, operation, outcome string)
}

// Client talks to the Appwrite Databases API.
type Client struct {
	endpoint   string
	projectID  string
	apiKey     string
	databaseID string
	httpClient *http.Client
	recorder   BackendRecorder
}

// Document is one legacy record. Only the fields the dashboard needs are
// bound; the rest of the payload is ignored.
type Document struct {
	ID        string    `json:"$id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"$createdAt"`
}

type listResponse struct {
	Total     int64      `json:"total"`
	Documents []Document `json:"documents"`
}

// NewClient creates a document store client.
func NewClient(cfg Config, recorder BackendRecorder) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("appwrite endpoint is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("appwrite project id is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("appwrite api key is required")
	}
	if cfg.DatabaseID == "" {
		return nil, fmt.Errorf("appwrite database id is required")
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		projectID:  cfg.ProjectID,
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		recorder:   recorder,
	}, nil
}

// ListDocuments returns up to limit documents from a collection together
// with the collection's total count.
func (c *Client) ListDocuments(ctx context.Context, collection string, limit int) ([]Document, int64, error) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, 0, fmt.Errorf("collection is required")
	}
	if limit <= 0 {
		limit = 100
	}

	url := fmt.Sprintf("%s/databases/%s/collections/%s/documents?queries[]=%s",
		c.endpoint,
		neturl.PathEscape(c.databaseID),
		neturl.PathEscape(collection),
		neturl.QueryEscape(fmt.Sprintf(`{"method":"limit","values":[%d]}`, limit)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Appwrite-Project", c.projectID)
	req.Header.Set("X-Appwrite-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("documents.list", err)
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _, _ := httputil.ReadAllWithLimit(resp.Body, 32<<10)
		err := fmt.Errorf("appwrite API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		c.record("documents.list", err)
		return nil, 0, err
	}

	body, err := httputil.ReadAllStrict(resp.Body, 8<<20)
	if err != nil {
		c.record("documents.list", err)
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.record("documents.list", err)
		return nil, 0, fmt.Errorf("unmarshal documents: %w", err)
	}
	c.record("documents.list", nil)
	return parsed.Documents, parsed.Total, nil
}

func (c *Client) record(operation string, err error) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.recorder.RecordBackendRequest("appwrite", operation, outcome)
}
