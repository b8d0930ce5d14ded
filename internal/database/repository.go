package database

import (
	"context"
	"fmt"
)

// Repository exposes typed table operations over a Client. The zero bearer
// form runs with the service-role key; it is the privileged handle built once
// at startup and shared across requests. WithUserToken derives a view bound
// to a caller's own token, so row-level security applies to its queries.
type Repository struct {
	client *Client
	bearer string
}

// NewRepository creates the privileged repository.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// WithUserToken returns a repository that runs queries as the token's user.
func (r *Repository) WithUserToken(token string) *Repository {
	return &Repository{client: r.client, bearer: token}
}

func (r *Repository) ready() error {
	if r == nil || r.client == nil {
		return fmt.Errorf("%w: repository not initialized", ErrInvalidInput)
	}
	return nil
}

// Rows returns the raw JSON array for table restricted by a PostgREST query
// string. The dashboard reduction consumes these payloads without binding
// them to record types so one malformed column cannot fail a whole read.
func (r *Repository) Rows(ctx context.Context, table, query string) ([]byte, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	data, err := r.client.request(ctx, "GET", table, nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrDatabaseError, table, err)
	}
	return data, nil
}

// Count returns the exact row count for table restricted by query.
func (r *Repository) Count(ctx context.Context, table, query string) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	total, err := r.client.count(ctx, table, query, r.bearer)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", ErrDatabaseError, table, err)
	}
	return total, nil
}
