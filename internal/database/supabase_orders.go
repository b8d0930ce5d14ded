package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

var orderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderStatuses returns the allowed order status values.
func OrderStatuses() []string {
	out := make([]string, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// Amount is a monetary value that tolerates sloppy upstream data: numbers,
// numeric strings, and null all decode; anything else coerces to 0 rather
// than failing the row.
type Amount float64

// UnmarshalJSON implements lenient numeric coercion at the boundary.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*a = 0
			return nil
		}
		*a = Amount(parsed)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*a = 0
		return nil
	}
	*a = Amount(f)
	return nil
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice Amount `json:"unit_price"`
}

// Order represents a row in the orders table.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Items       []OrderItem `json:"items"`
	TotalAmount Amount      `json:"total_amount"`
	Status      string      `json:"status"`
	Phone       string      `json:"phone,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderCreate is the payload for placing an order.
type OrderCreate struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Items       []OrderItem `json:"items"`
	TotalAmount Amount      `json:"total_amount"`
	Status      string      `json:"status"`
	Phone       string      `json:"phone,omitempty"`
}

func (c OrderCreate) validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user_id cannot be empty", ErrInvalidInput)
	}
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: order needs at least one item", ErrInvalidInput)
	}
	for _, item := range c.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item product_id cannot be empty", ErrInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", ErrInvalidInput)
		}
	}
	return nil
}

// ListOrders returns all orders newest first. With the privileged repository
// this is the admin view; with a user-token repository row-level security
// narrows it to the caller's rows.
func (r *Repository) ListOrders(ctx context.Context) ([]Order, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "GET", "orders", nil, "order=created_at.desc", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrDatabaseError, err)
	}

	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%w: unmarshal orders: %v", ErrDatabaseError, err)
	}
	return orders, nil
}

// ListOrdersForUser returns one user's orders newest first.
func (r *Repository) ListOrdersForUser(ctx context.Context, userID string) ([]Order, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userID cannot be empty", ErrInvalidInput)
	}

	query := "user_id=eq." + url.QueryEscape(userID) + "&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "orders", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrDatabaseError, err)
	}

	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%w: unmarshal orders: %v", ErrDatabaseError, err)
	}
	return orders, nil
}

// CreateOrder inserts a new order.
func (r *Repository) CreateOrder(ctx context.Context, create OrderCreate) (*Order, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := create.validate(); err != nil {
		return nil, err
	}
	create.Status = OrderStatusPending

	data, err := r.client.request(ctx, "POST", "orders", create, "", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrDatabaseError, err)
	}

	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%w: unmarshal orders: %v", ErrDatabaseError, err)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: create order returned empty response", ErrDatabaseError)
	}
	return &orders[0], nil
}

// UpdateOrderStatus transitions an order. The status is validated before any
// write; a successful update stamps updated_at and returns the new row; an
// unknown id is a not-found error, never a silent no-op. Single PATCH, last
// writer wins.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id, status string) (*Order, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if err := ValidateStatus(status, orderStatuses); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	query := "id=eq." + url.QueryEscape(id)
	data, err := r.client.request(ctx, "PATCH", "orders", body, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: update order: %v", ErrDatabaseError, err)
	}

	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%w: unmarshal orders: %v", ErrDatabaseError, err)
	}
	if len(orders) == 0 {
		return nil, NewNotFoundError("order", id)
	}
	return &orders[0], nil
}
