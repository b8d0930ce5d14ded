package database

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestApps_ListApprovedApps_Filter(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "eq."+AppStatusApproved {
			t.Fatalf("status filter = %q", got)
		}
		if got := r.URL.Query().Get("order"); got != "created_at.desc" {
			t.Fatalf("order = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a1","name":"NamTaxi","status":"approved","downloads":12}]`))
	})))

	apps, err := repo.ListApprovedApps(context.Background())
	if err != nil {
		t.Fatalf("ListApprovedApps: %v", err)
	}
	if len(apps) != 1 || apps[0].Downloads != 12 {
		t.Fatalf("unexpected apps: %+v", apps)
	}
}

func TestApps_CreateApp_ForcesPending(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body AppCreate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode create body: %v", err)
		}
		if body.Status != AppStatusPending {
			t.Fatalf("status = %q, want pending", body.Status)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]App{{ID: body.ID, Name: body.Name, Status: body.Status}})
	})))

	app, err := repo.CreateApp(context.Background(), AppCreate{
		ID:          "a1",
		Name:        "NamTaxi",
		DeveloperID: "dev1",
		Status:      AppStatusApproved,
	})
	if err != nil {
		t.Fatalf("CreateApp: %v", err)
	}
	if app.Status != AppStatusPending {
		t.Fatalf("status = %q", app.Status)
	}
}

func TestApps_UpdateAppStatus_RejectsUnknown(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.String())
	})))

	if _, err := repo.UpdateAppStatus(context.Background(), "a1", "published"); err == nil || !IsInvalidInput(err) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestApps_IncrementDownloads_RPC(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/increment_app_downloads" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode rpc body: %v", err)
		}
		if body["app_id"] != "a1" {
			t.Fatalf("app_id = %q", body["app_id"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a1","name":"NamTaxi","status":"approved","downloads":13,"apk_url":"https://cdn.example.com/a1.apk"}]`))
	})))

	app, err := repo.IncrementDownloads(context.Background(), "a1")
	if err != nil {
		t.Fatalf("IncrementDownloads: %v", err)
	}
	if app.Downloads != 13 {
		t.Fatalf("downloads = %d, want 13", app.Downloads)
	}
}

func TestApps_GetApp_NotFound(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})))

	_, err := repo.GetApp(context.Background(), "missing")
	if err == nil || !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
