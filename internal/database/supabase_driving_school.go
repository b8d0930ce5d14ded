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
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

var bookingStatuses = []string{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// DrivingPackage represents a row in driving_school_packages.
type DrivingPackage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       Amount    `json:"price"`
	Lessons     int       `json:"lessons"`
	CreatedAt   time.Time `json:"created_at"`
}

// Booking represents a row in driving_school_bookings.
type Booking struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PackageID   string    `json:"package_id"`
	Phone       string    `json:"phone,omitempty"`
	PreferredAt time.Time `json:"preferred_at"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookingCreate is the payload for a new booking.
type BookingCreate struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PackageID   string    `json:"package_id"`
	Phone       string    `json:"phone,omitempty"`
	PreferredAt time.Time `json:"preferred_at"`
	Status      string    `json:"status"`
}

func (c BookingCreate) validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user_id cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(c.PackageID) == "" {
		return fmt.Errorf("%w: package_id cannot be empty", ErrInvalidInput)
	}
	if c.PreferredAt.IsZero() {
		return fmt.Errorf("%w: preferred_at is required", ErrInvalidInput)
	}
	return nil
}

// ListDrivingPackages returns all packages, cheapest first.
func (r *Repository) ListDrivingPackages(ctx context.Context) ([]DrivingPackage, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "GET", "driving_school_packages", nil, "order=price.asc", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list packages: %v", ErrDatabaseError, err)
	}

	var packages []DrivingPackage
	if err := json.Unmarshal(data, &packages); err != nil {
		return nil, fmt.Errorf("%w: unmarshal driving_school_packages: %v", ErrDatabaseError, err)
	}
	return packages, nil
}

// CountDrivingPackages returns the exact package count.
func (r *Repository) CountDrivingPackages(ctx context.Context) (int64, error) {
	return r.Count(ctx, "driving_school_packages", "select=id")
}

// CreateBooking inserts a new booking with status "pending".
func (r *Repository) CreateBooking(ctx context.Context, create BookingCreate) (*Booking, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := create.validate(); err != nil {
		return nil, err
	}
	create.Status = BookingStatusPending

	data, err := r.client.request(ctx, "POST", "driving_school_bookings", create, "", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: create booking: %v", ErrDatabaseError, err)
	}

	var bookings []Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("%w: unmarshal driving_school_bookings: %v", ErrDatabaseError, err)
	}
	if len(bookings) == 0 {
		return nil, fmt.Errorf("%w: create booking returned empty response", ErrDatabaseError)
	}
	return &bookings[0], nil
}

// ListBookings returns all bookings newest first (admin view).
func (r *Repository) ListBookings(ctx context.Context) ([]Booking, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "GET", "driving_school_bookings", nil, "order=created_at.desc", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings: %v", ErrDatabaseError, err)
	}

	var bookings []Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("%w: unmarshal driving_school_bookings: %v", ErrDatabaseError, err)
	}
	return bookings, nil
}

// ListBookingsForUser returns one user's bookings newest first.
func (r *Repository) ListBookingsForUser(ctx context.Context, userID string) ([]Booking, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userID cannot be empty", ErrInvalidInput)
	}

	query := "user_id=eq." + url.QueryEscape(userID) + "&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "driving_school_bookings", nil, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings: %v", ErrDatabaseError, err)
	}

	var bookings []Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("%w: unmarshal driving_school_bookings: %v", ErrDatabaseError, err)
	}
	return bookings, nil
}

// UpdateBookingStatus transitions a booking.
func (r *Repository) UpdateBookingStatus(ctx context.Context, id, status string) (*Booking, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if err := ValidateStatus(status, bookingStatuses); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	query := "id=eq." + url.QueryEscape(id)
	data, err := r.client.request(ctx, "PATCH", "driving_school_bookings", body, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: update booking: %v", ErrDatabaseError, err)
	}

	var bookings []Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("%w: unmarshal driving_school_bookings: %v", ErrDatabaseError, err)
	}
	if len(bookings) == 0 {
		return nil, NewNotFoundError("booking", id)
	}
	return &bookings[0], nil
}
