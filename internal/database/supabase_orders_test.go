package database

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestOrders_UpdateOrderStatus_RejectsUnknownStatus(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.String())
	})))

	_, err := repo.UpdateOrderStatus(context.Background(), "order-1", "teleported")
	if err == nil || !IsInvalidInput(err) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestOrders_UpdateOrderStatus_EmptyID(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.String())
	})))

	_, err := repo.UpdateOrderStatus(context.Background(), "  ", OrderStatusShipped)
	if err == nil || !IsInvalidInput(err) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestOrders_UpdateOrderStatus_NotFound(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})))

	_, err := repo.UpdateOrderStatus(context.Background(), "no-such-order", OrderStatusConfirmed)
	if err == nil || !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestOrders_UpdateOrderStatus_StampsUpdatedAt(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)

	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Fatalf("method = %s, want PATCH", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != "eq.order-1" {
			t.Fatalf("id filter = %q", got)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode patch body: %v", err)
		}
		if body["status"] != OrderStatusShipped {
			t.Fatalf("status = %v", body["status"])
		}
		stamp, ok := body["updated_at"].(string)
		if !ok {
			t.Fatalf("updated_at missing from patch body: %+v", body)
		}
		parsed, err := time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			t.Fatalf("updated_at not RFC3339: %v", err)
		}
		if parsed.Before(before) {
			t.Fatalf("updated_at %v predates the call", parsed)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"order-1","user_id":"u1","status":"shipped","total_amount":150}]`))
	})))

	order, err := repo.UpdateOrderStatus(context.Background(), "order-1", OrderStatusShipped)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if order.Status != OrderStatusShipped {
		t.Fatalf("status = %q", order.Status)
	}
}

func TestOrders_CreateOrder_ForcesPending(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body OrderCreate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode create body: %v", err)
		}
		if body.Status != OrderStatusPending {
			t.Fatalf("status = %q, want pending regardless of input", body.Status)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Order{{ID: body.ID, UserID: body.UserID, Status: body.Status}})
	})))

	order, err := repo.CreateOrder(context.Background(), OrderCreate{
		ID:     "order-1",
		UserID: "u1",
		Status: OrderStatusDelivered,
		Items:  []OrderItem{{ProductID: "p1", Quantity: 2, UnitPrice: 75}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != OrderStatusPending {
		t.Fatalf("status = %q", order.Status)
	}
}

func TestOrders_CreateOrder_Validation(t *testing.T) {
	repo := NewRepository(newClientWithHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.String())
	})))

	cases := []struct {
		name   string
		create OrderCreate
	}{
		{"no user", OrderCreate{Items: []OrderItem{{ProductID: "p1", Quantity: 1}}}},
		{"no items", OrderCreate{UserID: "u1"}},
		{"zero quantity", OrderCreate{UserID: "u1", Items: []OrderItem{{ProductID: "p1", Quantity: 0}}}},
		{"blank product", OrderCreate{UserID: "u1", Items: []OrderItem{{ProductID: " ", Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := repo.CreateOrder(context.Background(), tc.create); err == nil || !IsInvalidInput(err) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestOrders_EveryAllowedStatusValidates(t *testing.T) {
	for _, status := range OrderStatuses() {
		if err := ValidateStatus(status, orderStatuses); err != nil {
			t.Fatalf("status %q rejected: %v", status, err)
		}
	}
	if err := ValidateStatus("refunded", OrderStatuses()); err == nil {
		t.Fatal("unknown status accepted")
	}
}

func TestAmount_LenientDecoding(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"number", `150.5`, 150.5},
		{"numeric string", `"99.90"`, 99.9},
		{"null", `null`, 0},
		{"garbage string", `"N/A"`, 0},
		{"object", `{"x":1}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var a Amount
			if err := json.Unmarshal([]byte(tc.in), &a); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if float64(a) != tc.want {
				t.Fatalf("got %v, want %v", float64(a), tc.want)
			}
		})
	}
}
