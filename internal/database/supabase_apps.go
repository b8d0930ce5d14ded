package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	AppStatusPending  = "pending"
	AppStatusApproved = "approved"
	AppStatusRejected = "rejected"
)

var appStatuses = []string{
	AppStatusPending,
	AppStatusApproved,
	AppStatusRejected,
}

// App represents a listed application.
type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	DeveloperID string    `json:"developer_id"`
	Status      string    `json:"status"`
	Downloads   int64     `json:"downloads"`
	IconURL     string    `json:"icon_url,omitempty"`
	APKURL      string    `json:"apk_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AppCreate is the payload for a new submission. Submissions always start as
// pending; the status is set server-side, not by the caller.
type AppCreate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	DeveloperID string `json:"developer_id"`
	Status      string `json:"status"`
	IconURL     string `json:"icon_url,omitempty"`
	APKURL      string `json:"apk_url,omitempty"`
}

func (c AppCreate) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(c.DeveloperID) == "" {
		return fmt.Errorf("%w: developer_id cannot be empty", ErrInvalidInput)
	}
	return nil
}

// ListApprovedApps returns apps visible in the public catalog, newest first.
func (r *Repository) ListApprovedApps(ctx context.Context) ([]App, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	query := "status=eq." + AppStatusApproved + "&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "apps", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list apps: %v", ErrDatabaseError, err)
	}

	var apps []App
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("%w: unmarshal apps: %v", ErrDatabaseError, err)
	}
	return apps, nil
}

// GetApp returns one app by id.
func (r *Repository) GetApp(ctx context.Context, id string) (*App, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}

	query := "id=eq." + url.QueryEscape(id) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "apps", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: get app: %v", ErrDatabaseError, err)
	}

	var apps []App
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("%w: unmarshal apps: %v", ErrDatabaseError, err)
	}
	if len(apps) == 0 {
		return nil, NewNotFoundError("app", id)
	}
	return &apps[0], nil
}

// CreateApp inserts a new submission.
func (r *Repository) CreateApp(ctx context.Context, create AppCreate) (*App, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := create.validate(); err != nil {
		return nil, err
	}
	create.Status = AppStatusPending

	data, err := r.client.request(ctx, "POST", "apps", create, "", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: create app: %v", ErrDatabaseError, err)
	}

	var apps []App
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("%w: unmarshal apps: %v", ErrDatabaseError, err)
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("%w: create app returned empty response", ErrDatabaseError)
	}
	return &apps[0], nil
}

// UpdateAppStatus moves a submission through review. Invalid statuses are
// rejected before any write.
func (r *Repository) UpdateAppStatus(ctx context.Context, id, status string) (*App, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if err := ValidateStatus(status, appStatuses); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	query := "id=eq." + url.QueryEscape(id)
	data, err := r.client.request(ctx, "PATCH", "apps", body, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: update app: %v", ErrDatabaseError, err)
	}

	var apps []App
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("%w: unmarshal apps: %v", ErrDatabaseError, err)
	}
	if len(apps) == 0 {
		return nil, NewNotFoundError("app", id)
	}
	return &apps[0], nil
}

// IncrementDownloads bumps the download counter atomically via a stored
// function and returns the APK URL for the client to fetch.
func (r *Repository) IncrementDownloads(ctx context.Context, id string) (*App, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}

	data, err := r.client.rpc(ctx, "increment_app_downloads", map[string]string{"app_id": id}, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: increment downloads: %v", ErrDatabaseError, err)
	}

	var apps []App
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("%w: unmarshal apps: %v", ErrDatabaseError, err)
	}
	if len(apps) == 0 {
		return nil, NewNotFoundError("app", id)
	}
	return &apps[0], nil
}

// UpdateAppIcon points an app at a freshly uploaded icon.
func (r *Repository) UpdateAppIcon(ctx context.Context, id, iconURL string) (*App, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(iconURL) == "" {
		return nil, fmt.Errorf("%w: icon URL cannot be empty", ErrInvalidInput)
	}

	body := map[string]interface{}{
		"icon_url":   iconURL,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	query := "id=eq." + url.QueryEscape(id)
	data, err := r.client.request(ctx, "PATCH", "apps", body, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: update app icon: %v", ErrDatabaseError, err)
	}

	var apps []App
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("%w: unmarshal apps: %v", ErrDatabaseError, err)
	}
	if len(apps) == 0 {
		return nil, NewNotFoundError("app", id)
	}
	return &apps[0], nil
}
