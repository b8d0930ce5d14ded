package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/purpose-technology/namapp-server/internal/admin"
	"github.com/purpose-technology/namapp-server/internal/config"
	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/health"
	"github.com/purpose-technology/namapp-server/internal/identity"
	"github.com/purpose-technology/namapp-server/internal/logging"
	"github.com/purpose-technology/namapp-server/internal/metrics"
	"github.com/purpose-technology/namapp-server/internal/middleware"
	"github.com/purpose-technology/namapp-server/internal/sms"
)

// testBackend fakes the hosted platform: the identity API under /auth/v1 and
// the data API under /rest/v1, on one server. role controls what the users
// table returns; dataRequests counts /rest/v1 traffic.
type testBackend struct {
	role         string
	tokenStatus  int
	dataRequests int64
	server       *httptest.Server
	rows         map[string]string
}

func newTestBackend(t *testing.T, role string) *testBackend {
	t.Helper()
	b := &testBackend{
		role:        role,
		tokenStatus: http.StatusOK,
		rows: map[string]string{
			"orders":                  `[{"id":"o1","user_id":"u1","status":"pending","total_amount":100}]`,
			"apps":                    `[{"status":"approved","downloads":3}]`,
			"products":                `[{"status":"active"}]`,
			"product_ratings":         `[{"rating":4}]`,
			"contact_messages":        `[{"status":"new"}]`,
			"driving_school_bookings": `[]`,
		},
	}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/user":
			if b.tokenStatus != http.StatusOK {
				w.WriteHeader(b.tokenStatus)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"u1","email":"user@example.com"}`))

		case strings.HasPrefix(r.URL.Path, "/rest/v1/"):
			atomic.AddInt64(&b.dataRequests, 1)
			table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")

			if table == "users" {
				if r.Method == http.MethodHead {
					w.Header().Set("Content-Range", "*/5")
					w.WriteHeader(http.StatusOK)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				if b.role == "" {
					_, _ = w.Write([]byte(`[]`))
					return
				}
				_, _ = w.Write([]byte(`[{"id":"u1","role":"` + b.role + `"}]`))
				return
			}
			if r.Method == http.MethodHead {
				w.Header().Set("Content-Range", "*/2")
				w.WriteHeader(http.StatusOK)
				return
			}
			if r.Method == http.MethodPatch && table == "orders" {
				if strings.Contains(r.URL.RawQuery, "missing") {
					w.Header().Set("Content-Type", "application/json")
					_, _ = w.Write([]byte(`[]`))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[{"id":"o1","user_id":"u1","status":"shipped","total_amount":100,"phone":"+264811234567"}]`))
				return
			}
			body, ok := b.rows[table]
			if !ok {
				body = `[]`
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func newTestRouter(t *testing.T, backend *testBackend) http.Handler {
	t.Helper()
	logger := logging.New("test", "error", "json")
	m := metrics.New("test")

	dbClient, err := database.NewClient(database.Config{
		URL:        backend.server.URL,
		AnonKey:    "anon-key",
		ServiceKey: "service-key",
	}, m)
	if err != nil {
		t.Fatalf("database client: %v", err)
	}
	repo := database.NewRepository(dbClient)

	idClient, err := identity.NewClient(identity.Config{
		URL:     backend.server.URL,
		AnonKey: "anon-key",
	}, m)
	if err != nil {
		t.Fatalf("identity client: %v", err)
	}

	gate := admin.NewGate(idClient, repo, logger)
	return newRouter(routerDeps{
		cfg: &config.Config{
			Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
		},
		logger:     logger,
		metrics:    m,
		repo:       repo,
		gate:       gate,
		aggregator: admin.NewAggregator(repo, nil, "", logger, m),
		sms:        sms.NewClient(sms.Config{}, m),
		checker:    health.NewChecker(logger, m),
		limiter:    middleware.NewRateLimiter(1000, 1000),
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestAdminEndpoints_MissingCredential(t *testing.T) {
	backend := newTestBackend(t, "admin")
	router := newTestRouter(t, backend)

	for _, path := range []string{"/admin/orders", "/admin/stats", "/admin/contacts"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", path, rec.Code)
		}
		if code := decodeErrorCode(t, rec); code != "CREDENTIAL_MISSING" {
			t.Fatalf("%s: code = %s", path, code)
		}
	}
	// Denial happens before any data leaves the backend.
	if n := atomic.LoadInt64(&backend.dataRequests); n != 0 {
		t.Fatalf("backend saw %d data requests for unauthenticated calls", n)
	}
}

func TestAdminEndpoints_RejectedToken(t *testing.T) {
	backend := newTestBackend(t, "admin")
	backend.tokenStatus = http.StatusUnauthorized
	router := newTestRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "CREDENTIAL_INVALID" {
		t.Fatalf("code = %s", code)
	}
}

func TestAdminEndpoints_NonAdminGetsNothing(t *testing.T) {
	backend := newTestBackend(t, "developer")
	router := newTestRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "INSUFFICIENT_PRIVILEGE" {
		t.Fatalf("code = %s", code)
	}
	if strings.Contains(rec.Body.String(), "o1") {
		t.Fatal("order data leaked through a denial")
	}
}

func TestAdminOrders_List(t *testing.T) {
	router := newTestRouter(t, newTestBackend(t, "admin"))

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var orders []database.Order
	if err := json.NewDecoder(rec.Body).Decode(&orders); err != nil {
		t.Fatalf("body must be a bare array of orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o1" {
		t.Fatalf("unexpected body: %+v", orders)
	}
}

func TestAdminOrders_UpdateStatus(t *testing.T) {
	router := newTestRouter(t, newTestBackend(t, "admin"))

	req := httptest.NewRequest(http.MethodPatch, "/admin/orders",
		strings.NewReader(`{"id":"o1","status":"shipped"}`))
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var order database.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if order.Status != database.OrderStatusShipped {
		t.Fatalf("status = %q", order.Status)
	}
}

func TestAdminOrders_UpdateStatus_Invalid(t *testing.T) {
	router := newTestRouter(t, newTestBackend(t, "admin"))

	cases := []struct {
		name string
		body string
		want int
		code string
	}{
		{"unknown status", `{"id":"o1","status":"teleported"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing id", `{"status":"shipped"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing status", `{"id":"o1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown order", `{"id":"missing","status":"shipped"}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/admin/orders", strings.NewReader(tc.body))
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
			if code := decodeErrorCode(t, rec); code != tc.code {
				t.Fatalf("code = %s, want %s", code, tc.code)
			}
		})
	}
}

func TestAdminStats(t *testing.T) {
	router := newTestRouter(t, newTestBackend(t, "admin"))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var snap admin.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalUsers != 5 {
		t.Fatalf("totalUsers = %d", snap.TotalUsers)
	}
	if snap.TotalApps != 1 || snap.TotalDownloads != 3 {
		t.Fatalf("apps = %d downloads = %d", snap.TotalApps, snap.TotalDownloads)
	}
	if snap.TotalOrders != 1 || snap.TotalOrderValue != 100 {
		t.Fatalf("orders = %d value = %v", snap.TotalOrders, snap.TotalOrderValue)
	}
}

func TestPublicCatalog_NoCredentialNeeded(t *testing.T) {
	router := newTestRouter(t, newTestBackend(t, ""))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/apps", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, newTestBackend(t, "admin"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
