package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/purpose-technology/namapp-server/internal/admin"
	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/errors"
	"github.com/purpose-technology/namapp-server/internal/httputil"
	"github.com/purpose-technology/namapp-server/internal/logging"
	"github.com/purpose-technology/namapp-server/internal/middleware"
	"github.com/purpose-technology/namapp-server/internal/sms"
)

// statusUpdate is the body shared by the admin PATCH endpoints: a row id and
// the status to move it to.
type statusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (u statusUpdate) validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(u.Status) == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// adminSession pulls the admin session placed in the context by the auth
// middleware. The router guarantees it is present on /admin routes; the nil
// check only guards against a miswired route.
func adminSession(w http.ResponseWriter, r *http.Request) (*admin.Session, bool) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, errors.Internal("no session on admin route", nil))
		return nil, false
	}
	return session, true
}

func listAdminOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		orders, err := session.Repo.ListOrders(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, orders)
	}
}

func updateOrderHandler(smsClient *sms.Client, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		var update statusUpdate
		if err := httputil.DecodeJSONBody(r, &update); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}
		if err := update.validate(); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		order, err := session.Repo.UpdateOrderStatus(r.Context(), update.ID, update.Status)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		if order.Status == database.OrderStatusShipped && order.Phone != "" {
			notifyShipped(r.Context(), smsClient, logger, order)
		}

		httputil.WriteJSON(w, http.StatusOK, order)
	}
}

// notifyShipped sends the shipping SMS. Delivery is best effort: a gateway
// failure is logged and never fails the status update that triggered it.
func notifyShipped(ctx context.Context, smsClient *sms.Client, logger *logging.Logger, order *database.Order) {
	if !smsClient.Enabled() {
		return
	}
	message := fmt.Sprintf("Your NamApp order %s has been shipped.", order.ID)
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := smsClient.Send(sendCtx, order.Phone, message); err != nil {
		logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"order_id": order.ID,
		}).Warn("shipping notification failed")
	}
}

func statsHandler(aggregator *admin.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := adminSession(w, r); !ok {
			return
		}
		snapshot := aggregator.ComputeSnapshot(r.Context())
		httputil.WriteJSON(w, http.StatusOK, snapshot)
	}
}

func listAdminContactsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		contacts, err := session.Repo.ListContacts(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"contacts": contacts,
			"count":    len(contacts),
		})
	}
}

func updateContactHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		var update statusUpdate
		if err := httputil.DecodeJSONBody(r, &update); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}
		if err := update.validate(); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		contact, err := session.Repo.UpdateContactStatus(r.Context(), update.ID, update.Status)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, contact)
	}
}

func updateAppStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		var update statusUpdate
		if err := httputil.DecodeJSONBody(r, &update); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}
		if err := update.validate(); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		app, err := session.Repo.UpdateAppStatus(r.Context(), update.ID, update.Status)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, app)
	}
}

func updateProductStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		var update statusUpdate
		if err := httputil.DecodeJSONBody(r, &update); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}
		if err := update.validate(); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		product, err := session.Repo.UpdateProductStatus(r.Context(), update.ID, update.Status)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, product)
	}
}

func listAdminBookingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		bookings, err := session.Repo.ListBookings(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"bookings": bookings,
			"count":    len(bookings),
		})
	}
}

func updateBookingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := adminSession(w, r)
		if !ok {
			return
		}

		var update statusUpdate
		if err := httputil.DecodeJSONBody(r, &update); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}
		if err := update.validate(); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		booking, err := session.Repo.UpdateBookingStatus(r.Context(), update.ID, update.Status)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, booking)
	}
}
