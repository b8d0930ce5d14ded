package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/purpose-technology/namapp-server/internal/admin"
	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/errors"
	"github.com/purpose-technology/namapp-server/internal/httputil"
	"github.com/purpose-technology/namapp-server/internal/logging"
	"github.com/purpose-technology/namapp-server/internal/middleware"
	"github.com/purpose-technology/namapp-server/internal/sms"
)

func userSession(w http.ResponseWriter, r *http.Request) (*admin.UserSession, bool) {
	session, ok := middleware.UserSessionFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, errors.Internal("no session on user route", nil))
		return nil, false
	}
	return session, true
}

// orderSubmission is the client payload for placing an order. The total is
// recomputed server-side from the items; a client-sent total is ignored.
type orderSubmission struct {
	Items []database.OrderItem `json:"items"`
	Phone string               `json:"phone,omitempty"`
}

func createOrderHandler(smsClient *sms.Client, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := userSession(w, r)
		if !ok {
			return
		}

		var submission orderSubmission
		if err := httputil.DecodeJSONBody(r, &submission); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		var total database.Amount
		for _, item := range submission.Items {
			total += item.UnitPrice * database.Amount(item.Quantity)
		}

		order, err := session.Repo.CreateOrder(r.Context(), database.OrderCreate{
			ID:          uuid.NewString(),
			UserID:      session.Principal.ID,
			Items:       submission.Items,
			TotalAmount: total,
			Phone:       submission.Phone,
		})
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		if smsClient.Enabled() && order.Phone != "" {
			notifyOrderPlaced(r.Context(), smsClient, logger, order)
		}

		logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"order_id": order.ID,
			"total":    float64(order.TotalAmount),
		}).Info("order placed")
		httputil.WriteJSON(w, http.StatusCreated, order)
	}
}

func notifyOrderPlaced(ctx context.Context, smsClient *sms.Client, logger *logging.Logger, order *database.Order) {
	message := fmt.Sprintf("Thank you for your NamApp order %s. We will confirm it shortly.", order.ID)
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := smsClient.Send(sendCtx, order.Phone, message); err != nil {
		logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"order_id": order.ID,
		}).Warn("order confirmation sms failed")
	}
}

func profileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := userSession(w, r)
		if !ok {
			return
		}

		// Read through the caller's own token so row-level security decides
		// what the profile exposes.
		user, err := session.Repo.GetUser(r.Context(), session.Principal.ID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, user)
	}
}

func listMyOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := userSession(w, r)
		if !ok {
			return
		}

		orders, err := session.Repo.ListOrdersForUser(r.Context(), session.Principal.ID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"orders": orders,
			"count":  len(orders),
		})
	}
}
