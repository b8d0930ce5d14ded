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
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	// RoleUnspecified is what a missing row or blank column resolves to. It
	// grants nothing.
	RoleUnspecified = ""
)

// User represents a row in the users table.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetUserRole returns the stored role for a user id. A missing row is not an
// error; it resolves to RoleUnspecified. Only transport and decode failures
// return an error, and callers are expected to treat those as "no rights".
func (r *Repository) GetUserRole(ctx context.Context, userID string) (string, error) {
	if err := r.ready(); err != nil {
		return RoleUnspecified, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return RoleUnspecified, fmt.Errorf("%w: userID cannot be empty", ErrInvalidInput)
	}

	query := "id=eq." + url.QueryEscape(userID) + "&select=id,role&limit=1"
	data, err := r.client.request(ctx, "GET", "users", nil, query, r.bearer)
	if err != nil {
		return RoleUnspecified, fmt.Errorf("%w: get user role: %v", ErrDatabaseError, err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return RoleUnspecified, fmt.Errorf("%w: unmarshal users: %v", ErrDatabaseError, err)
	}
	if len(users) == 0 {
		return RoleUnspecified, nil
	}
	return users[0].Role, nil
}

// GetUser returns a user row by id.
func (r *Repository) GetUser(ctx context.Context, userID string) (*User, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userID cannot be empty", ErrInvalidInput)
	}

	query := "id=eq." + url.QueryEscape(userID) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "users", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", ErrDatabaseError, err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("%w: unmarshal users: %v", ErrDatabaseError, err)
	}
	if len(users) == 0 {
		return nil, NewNotFoundError("user", userID)
	}
	return &users[0], nil
}

// CountUsers returns the exact user count without materializing rows.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	return r.Count(ctx, "users", "select=id")
}
