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
	ContactStatusNew     = "new"
	ContactStatusRead    = "read"
	ContactStatusReplied = "replied"
)

var contactStatuses = []string{
	ContactStatusNew,
	ContactStatusRead,
	ContactStatusReplied,
}

// Contact represents a row in the contact_messages table.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactCreate is the payload for a new contact message.
type ContactCreate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (c ContactCreate) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Email) == "" {
		return fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Message) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}
	return nil
}

// CreateContact inserts a new message with status "new".
func (r *Repository) CreateContact(ctx context.Context, create ContactCreate) (*Contact, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if err := create.validate(); err != nil {
		return nil, err
	}
	create.Status = ContactStatusNew

	data, err := r.client.request(ctx, "POST", "contact_messages", create, "", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: create contact: %v", ErrDatabaseError, err)
	}

	var contacts []Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("%w: unmarshal contact_messages: %v", ErrDatabaseError, err)
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("%w: create contact returned empty response", ErrDatabaseError)
	}
	return &contacts[0], nil
}

// ListContacts returns all contact messages newest first.
func (r *Repository) ListContacts(ctx context.Context) ([]Contact, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "GET", "contact_messages", nil, "order=created_at.desc", r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: list contacts: %v", ErrDatabaseError, err)
	}

	var contacts []Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("%w: unmarshal contact_messages: %v", ErrDatabaseError, err)
	}
	return contacts, nil
}

// UpdateContactStatus marks a message read or replied.
func (r *Repository) UpdateContactStatus(ctx context.Context, id, status string) (*Contact, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if err := ValidateStatus(status, contactStatuses); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	query := "id=eq." + url.QueryEscape(id)
	data, err := r.client.request(ctx, "PATCH", "contact_messages", body, query, r.bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: update contact: %v", ErrDatabaseError, err)
	}

	var contacts []Contact
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("%w: unmarshal contact_messages: %v", ErrDatabaseError, err)
	}
	if len(contacts) == 0 {
		return nil, NewNotFoundError("contact", id)
	}
	return &contacts[0], nil
}
