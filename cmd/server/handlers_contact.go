package main

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/errors"
	"github.com/purpose-technology/namapp-server/internal/health"
	"github.com/purpose-technology/namapp-server/internal/httputil"
	"github.com/purpose-technology/namapp-server/internal/logging"
)

// contactSubmission is the public contact-form payload.
type contactSubmission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func createContactHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var submission contactSubmission
		if err := httputil.DecodeJSONBody(r, &submission); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		contact, err := repo.CreateContact(r.Context(), database.ContactCreate{
			ID:      uuid.NewString(),
			Name:    submission.Name,
			Email:   submission.Email,
			Message: submission.Message,
		})
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, contact)
	}
}

func listPackagesHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packages, err := repo.ListDrivingPackages(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"packages": packages,
			"count":    len(packages),
		})
	}
}

// bookingSubmission is the client payload for a driving school booking.
type bookingSubmission struct {
	PackageID   string    `json:"package_id"`
	Phone       string    `json:"phone,omitempty"`
	PreferredAt time.Time `json:"preferred_at"`
}

func createBookingHandler(logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := userSession(w, r)
		if !ok {
			return
		}

		var submission bookingSubmission
		if err := httputil.DecodeJSONBody(r, &submission); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		booking, err := session.Repo.CreateBooking(r.Context(), database.BookingCreate{
			ID:          uuid.NewString(),
			UserID:      session.Principal.ID,
			PackageID:   submission.PackageID,
			Phone:       submission.Phone,
			PreferredAt: submission.PreferredAt,
		})
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"booking_id": booking.ID,
			"package_id": booking.PackageID,
		}).Info("driving school booking created")
		httputil.WriteJSON(w, http.StatusCreated, booking)
	}
}

func listMyBookingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := userSession(w, r)
		if !ok {
			return
		}

		bookings, err := session.Repo.ListBookingsForUser(r.Context(), session.Principal.ID)
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

func healthHandler(checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		state := "healthy"
		if !checker.Healthy() {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]interface{}{
			"status":    state,
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"backends":  checker.Results(),
		})
	}
}
