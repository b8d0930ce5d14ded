package database

import (
	"context"
	"net/http"
	"testing"
)

func TestUsers_GetUserRole_MissingRowIsUnspecified(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/users" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})))

	role, err := repo.GetUserRole(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserRole: %v", err)
	}
	if role != RoleUnspecified {
		t.Fatalf("role = %q, want unspecified", role)
	}
}

func TestUsers_GetUserRole_Admin(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "eq.u1" {
			t.Fatalf("id filter = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"u1","role":"admin"}]`))
	})))

	role, err := repo.GetUserRole(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserRole: %v", err)
	}
	if role != RoleAdmin {
		t.Fatalf("role = %q, want admin", role)
	}
}

func TestUsers_GetUserRole_TransportErrorSurfaces(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})))

	_, err := repo.GetUserRole(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestUsers_GetUserRole_EmptyID(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.String())
	})))

	if _, err := repo.GetUserRole(context.Background(), ""); err == nil || !IsInvalidInput(err) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestUsers_CountUsers(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Fatalf("method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Range", "*/42")
		w.WriteHeader(http.StatusOK)
	})))

	total, err := repo.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if total != 42 {
		t.Fatalf("total = %d, want 42", total)
	}
}
