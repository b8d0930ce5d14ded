package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Rating represents a row in the product_ratings table.
type Rating struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingCreate is the payload for a new rating.
type RatingCreate struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

func (c RatingCreate) validate() error {
	if strings.TrimSpace(c.ProductID) == "" {
		return fmt.Errorf("%w: product_id cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user_id cannot be empty", ErrInvalidInput)
	}
	if c.Rating < 1 || c.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrInvalidInput, c.Rating)
	}
	return nil
}

// ListRatingsForProduct returns a product's ratings newest first.
func (r *Repository) ListRatingsForProduct(ctx context.Context, productID string) ([]Rating, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: productID cannot be empty", ErrInvalidInput)
	}

	query := "product_id=eq." + url.QueryEscape(productID) + "&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "product_ratings", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list ratings: %v", ErrDatabaseError, err)
	}

	var ratings []Rating
	if err := json.Unmarshal(data, &ratings); err != nil {
		return nil, fmt.Errorf("%w: unmarshal product_ratings: %v", ErrDatabaseError, err)
	}
	return ratings, nil
}

// CreateRating inserts a new rating.
func (r *Repository) CreateRating(ctx context.Context, create RatingCreate) (*Rating, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := create.validate(); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "POST", "product_ratings", create, "", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: create rating: %v", ErrDatabaseError, err)
	}

	var ratings []Rating
	if err := json.Unmarshal(data, &ratings); err != nil {
		return nil, fmt.Errorf("%w: unmarshal product_ratings: %v", ErrDatabaseError, err)
	}
	if len(ratings) == 0 {
		return nil, fmt.Errorf("%w: create rating returned empty response", ErrDatabaseError)
	}
	return &ratings[0], nil
}
