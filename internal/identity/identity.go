// Package identity resolves bearer tokens to verified principals against the
// hosted identity service (Supabase GoTrue).
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/purpose-technology/namapp-server/internal/httputil"
)

// Principal is the verified identity behind a bearer token. Request-scoped;
// never persisted.
type Principal struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_confirmed_at,omitempty"`
}

// ErrTokenRejected marks tokens the identity service refused, as opposed to
// the resolution call itself failing. Callers treat both the same way
// (denied), so this mostly matters for logging.
var ErrTokenRejected = fmt.Errorf("token rejected by identity service")

// BackendRecorder mirrors database.BackendRecorder; nil disables recording.
type BackendRecorder interface {
	RecordBackendRequest(backend, operation, outcome string)
}

// Client talks to the GoTrue auth API.
type Client struct {
	url        string
	anonKey    string
	httpClient *http.Client
	recorder   BackendRecorder
	now        func() time.Time
}

// Config holds identity service settings. URL and AnonKey are the same
// project URL and anon key the data client uses.
type Config struct {
	URL     string
	AnonKey string
}

// NewClient creates an identity client.
func NewClient(cfg Config, recorder BackendRecorder) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("identity URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("identity anon key is required")
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		recorder:   recorder,
		now:        time.Now,
	}, nil
}

// Verify resolves a bearer token to its principal. Not retried: any failure,
// whether the token was rejected or the call itself broke, is terminal for
// the request. Tokens that are well-formed JWTs with an already-past expiry
// are rejected locally without the remote call; the outcome is identical.
func (c *Client) Verify(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenRejected)
	}
	if expiredLocally(token, c.now()) {
		return nil, fmt.Errorf("%w: token expired", ErrTokenRejected)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("auth.user", err)
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.record("auth.user", ErrTokenRejected)
		return nil, ErrTokenRejected
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("identity API error %d", resp.StatusCode)
		c.record("auth.user", err)
		return nil, err
	}

	body, err := httputil.ReadAllStrict(resp.Body, 64<<10)
	if err != nil {
		c.record("auth.user", err)
		return nil, fmt.Errorf("read identity response: %w", err)
	}

	var principal Principal
	if err := unmarshalPrincipal(body, &principal); err != nil {
		c.record("auth.user", err)
		return nil, err
	}
	c.record("auth.user", nil)
	return &principal, nil
}

func (c *Client) record(operation string, err error) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.recorder.RecordBackendRequest("identity", operation, outcome)
}

// expiredLocally reports whether token parses as a JWT whose exp claim is
// already past. Signature verification stays with the identity service; this
// only short-circuits the obvious case.
func expiredLocally(token string, now time.Time) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
