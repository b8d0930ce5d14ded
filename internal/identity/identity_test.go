package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, AnonKey: "anon-key"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerify_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Fatalf("apikey = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer some-token" {
			t.Fatalf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","email":"user@example.com","email_confirmed_at":"2025-03-01T10:00:00Z"}`))
	}))

	principal, err := client.Verify(context.Background(), "some-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.ID != "u1" || principal.Email != "user@example.com" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if principal.EmailVerifiedAt == nil {
		t.Fatal("expected email verification timestamp")
	}
}

func TestVerify_EmptyToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request for empty token")
	}))

	_, err := client.Verify(context.Background(), "  ")
	if !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestVerify_ExpiredJWTShortCircuits(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("expired token must not reach the identity service")
	}))

	token := signedToken(t, time.Now().Add(-time.Hour))
	_, err := client.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestVerify_FutureExpiryGoesRemote(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1"}`))
	}))

	token := signedToken(t, time.Now().Add(time.Hour))
	principal, err := client.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.ID != "u1" {
		t.Fatalf("principal = %+v", principal)
	}
}

func TestVerify_OpaqueTokenGoesRemote(t *testing.T) {
	// Non-JWT tokens skip the local expiry check and defer entirely to the
	// identity service.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1"}`))
	}))

	if _, err := client.Verify(context.Background(), "opaque-session-token"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := client.Verify(context.Background(), "bad-token")
		if !errors.Is(err, ErrTokenRejected) {
			t.Fatalf("status %d: expected rejection, got %v", status, err)
		}
	}
}

func TestVerify_ServerErrorIsNotRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Verify(context.Background(), "some-token")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTokenRejected) {
		t.Fatal("a broken identity service is not a token rejection")
	}
}

func TestVerify_MissingID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"user@example.com"}`))
	}))

	if _, err := client.Verify(context.Background(), "some-token"); err == nil {
		t.Fatal("expected error for principal without id")
	}
}
