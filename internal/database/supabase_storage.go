package database

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/purpose-technology/namapp-server/internal/httputil"
)

const maxUploadBytes = 128 << 20 // 128 MiB, APK binaries included

// UploadObject stores an object in a Supabase Storage bucket using the
// service role and returns its public URL. Paths are caller-controlled but
// each segment is escaped before hitting the API.
func (r *Repository) UploadObject(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if err := r.ready(); err != nil {
		return "", err
	}
	bucket = strings.TrimSpace(bucket)
	path = strings.Trim(strings.TrimSpace(path), "/")
	if bucket == "" || path == "" {
		return "", fmt.Errorf("%w: bucket and path are required", ErrInvalidInput)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: object data cannot be empty", ErrInvalidInput)
	}
	if len(data) > maxUploadBytes {
		return "", fmt.Errorf("%w: object exceeds %d bytes", ErrInvalidInput, maxUploadBytes)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	escaped := escapePath(path)
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", r.client.url, neturl.PathEscape(bucket), escaped)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrDatabaseError, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	r.client.setAuthHeaders(req, "")

	resp, err := r.client.httpClient.Do(req)
	if err != nil {
		r.client.record("storage.upload", err)
		return "", fmt.Errorf("%w: upload object: %v", ErrDatabaseError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _, _ := httputil.ReadAllWithLimit(resp.Body, maxSupabaseErrorBodyBytes)
		err := fmt.Errorf("%w: storage API error %d: %s", ErrDatabaseError, resp.StatusCode, strings.TrimSpace(string(body)))
		r.client.record("storage.upload", err)
		return "", err
	}
	r.client.record("storage.upload", nil)

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", r.client.url, neturl.PathEscape(bucket), escaped), nil
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = neturl.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
