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
	ProductStatusPending  = "pending"
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

var productStatuses = []string{
	ProductStatusPending,
	ProductStatusActive,
	ProductStatusInactive,
}

// Product represents a row in the products table.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       Amount    `json:"price"`
	Status      string    `json:"status"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListActiveProducts returns products visible in the public catalog, newest
// first.
func (r *Repository) ListActiveProducts(ctx context.Context) ([]Product, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	query := "status=eq." + ProductStatusActive + "&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "products", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %v", ErrDatabaseError, err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: unmarshal products: %v", ErrDatabaseError, err)
	}
	return products, nil
}

// GetProduct returns one product by id.
func (r *Repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}

	query := "id=eq." + url.QueryEscape(id) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "products", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: get product: %v", ErrDatabaseError, err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: unmarshal products: %v", ErrDatabaseError, err)
	}
	if len(products) == 0 {
		return nil, NewNotFoundError("product", id)
	}
	return &products[0], nil
}

// UpdateProductStatus changes catalog visibility for a product.
func (r *Repository) UpdateProductStatus(ctx context.Context, id, status string) (*Product, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if err := ValidateStatus(status, productStatuses); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	query := "id=eq." + url.QueryEscape(id)
	data, err := r.client.request(ctx, "PATCH", "products", body, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: update product: %v", ErrDatabaseError, err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: unmarshal products: %v", ErrDatabaseError, err)
	}
	if len(products) == 0 {
		return nil, NewNotFoundError("product", id)
	}
	return &products[0], nil
}
