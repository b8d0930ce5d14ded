package appwrite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Endpoint:   server.URL,
		ProjectID:  "namapp",
		APIKey:     "legacy-key",
		DatabaseID: "marketplace",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func TestNewClient_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing endpoint", Config{ProjectID: "p", APIKey: "k", DatabaseID: "d"}},
		{"missing project", Config{Endpoint: "http://x", APIKey: "k", DatabaseID: "d"}},
		{"missing key", Config{Endpoint: "http://x", ProjectID: "p", DatabaseID: "d"}},
		{"missing database", Config{Endpoint: "http://x", ProjectID: "p", APIKey: "k"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(tc.cfg, nil); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestListDocuments(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/databases/marketplace/collections/apps/documents") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Appwrite-Project"); got != "namapp" {
			t.Fatalf("project header = %q", got)
		}
		if got := r.Header.Get("X-Appwrite-Key"); got != "legacy-key" {
			t.Fatalf("key header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":57,"documents":[
			{"$id":"doc-1","status":"approved","$createdAt":"2024-05-01T10:00:00.000+00:00"},
			{"$id":"doc-2","status":"pending","$createdAt":"2024-05-02T10:00:00.000+00:00"}
		]}`))
	})

	docs, total, err := client.ListDocuments(context.Background(), "apps", 100)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 57 {
		t.Fatalf("total = %d, want 57", total)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	if docs[0].ID != "doc-1" || docs[0].Status != "approved" {
		t.Fatalf("unexpected first document %+v", docs[0])
	}
}

func TestListDocuments_EmptyCollection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected, got %s %s", r.Method, r.URL.Path)
	})

	if _, _, err := client.ListDocuments(context.Background(), "  ", 10); err == nil {
		t.Fatal("expected error for blank collection")
	}
}

func TestListDocuments_APIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid key"}`))
	})

	_, _, err := client.ListDocuments(context.Background(), "apps", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid key") {
		t.Fatalf("error should carry status and body, got %v", err)
	}
}
