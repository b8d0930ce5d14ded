// Package sms sends order notifications through the SMS gateway. Delivery is
// best-effort: failures are logged by callers, never retried, and never fail
// the triggering request.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/purpose-technology/namapp-server/internal/httputil"
)

// Config holds SMS gateway settings. A blank URL disables sending.
type Config struct {
	URL    string
	APIKey string
	Sender string
}

// BackendRecorder mirrors database.BackendRecorder; nil disables recording.
type BackendRecorder interface {
	RecordBackendRequest(backend, operation, outcome string)
}

// Client talks to the SMS gateway.
type Client struct {
	url        string
	apiKey     string
	sender     string
	httpClient *http.Client
	recorder   BackendRecorder
}

// NewClient creates an SMS client. When cfg.URL is blank it returns a
// disabled client whose Send is a no-op; wiring stays unconditional.
func NewClient(cfg Config, recorder BackendRecorder) *Client {
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		recorder:   recorder,
	}
}

// Enabled reports whether a gateway is configured.
func (c *Client) Enabled() bool {
	return c.url != ""
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// Send delivers one message. Returns an error for the caller to log; the
// caller decides that it never propagates further.
func (c *Client) Send(ctx context.Context, to, message string) error {
	if !c.Enabled() {
		return nil
	}
	to = strings.ReplaceAll(strings.TrimSpace(to), " ", "")
	if !phonePattern.MatchString(to) {
		return fmt.Errorf("invalid recipient number")
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("empty message")
	}

	payload, err := json.Marshal(sendRequest{To: to, From: c.sender, Message: message})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(err)
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _, _ := httputil.ReadAllWithLimit(resp.Body, 8<<10)
		err := fmt.Errorf("sms gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		c.record(err)
		return err
	}
	c.record(nil)
	return nil
}

func (c *Client) record(err error) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.recorder.RecordBackendRequest("sms", "messages.send", outcome)
}
