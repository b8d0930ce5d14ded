package main

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/purpose-technology/namapp-server/internal/admin"
	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/errors"
	"github.com/purpose-technology/namapp-server/internal/httputil"
	"github.com/purpose-technology/namapp-server/internal/logging"
	"github.com/purpose-technology/namapp-server/internal/middleware"
)

func listAppsHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := repo.ListApprovedApps(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"apps":  apps,
			"count": len(apps),
		})
	}
}

func getAppHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		app, err := repo.GetApp(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		// Pending and rejected apps stay invisible to the public catalog.
		if app.Status != database.AppStatusApproved {
			httputil.WriteError(w, r, errors.NotFound("app", id))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, app)
	}
}

func downloadAppHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		app, err := repo.GetApp(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if app.Status != database.AppStatusApproved {
			httputil.WriteError(w, r, errors.NotFound("app", id))
			return
		}

		updated, err := repo.IncrementDownloads(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"apk_url":   updated.APKURL,
			"downloads": updated.Downloads,
		})
	}
}

// appSubmission is the client payload for a new app. The developer id and
// status are never taken from the body.
type appSubmission struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	IconURL     string `json:"icon_url,omitempty"`
	APKURL      string `json:"apk_url,omitempty"`
}

func submitAppHandler(gate *admin.Gate, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := gate.AuthorizeSubmitter(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}

		var submission appSubmission
		if err := httputil.DecodeJSONBody(r, &submission); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		app, err := session.Repo.CreateApp(r.Context(), database.AppCreate{
			ID:          uuid.NewString(),
			Name:        submission.Name,
			Description: submission.Description,
			Category:    submission.Category,
			DeveloperID: session.PrincipalID,
			IconURL:     submission.IconURL,
			APKURL:      submission.APKURL,
		})
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"app_id":       app.ID,
			"developer_id": session.PrincipalID,
		}).Info("app submitted for review")
		httputil.WriteJSON(w, http.StatusCreated, app)
	}
}

const maxIconBytes = 2 << 20 // 2 MiB

// uploadAppIconHandler stores an icon for the caller's own submission and
// points the app row at it. Raw image body, content type from the header.
func uploadAppIconHandler(gate *admin.Gate, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := gate.AuthorizeSubmitter(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}

		id := mux.Vars(r)["id"]
		app, err := session.Repo.GetApp(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if app.DeveloperID != session.PrincipalID {
			httputil.WriteError(w, r, errors.Forbidden("not your submission"))
			return
		}

		contentType := r.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			httputil.WriteError(w, r, errors.Validation("icon must be an image"))
			return
		}
		data, err := httputil.ReadAllStrict(r.Body, maxIconBytes)
		if err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		iconURL, err := session.Repo.UploadObject(r.Context(), "app-assets", "icons/"+app.ID, data, contentType)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		updated, err := session.Repo.UpdateAppIcon(r.Context(), app.ID, iconURL)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"app_id": app.ID,
		}).Info("app icon updated")
		httputil.WriteJSON(w, http.StatusOK, updated)
	}
}

func listProductsHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := repo.ListActiveProducts(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"products": products,
			"count":    len(products),
		})
	}
}

func getProductHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		product, err := repo.GetProduct(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, product)
	}
}

func listRatingsHandler(repo *database.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := mux.Vars(r)["id"]
		ratings, err := repo.ListRatingsForProduct(r.Context(), productID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		var average float64
		if len(ratings) > 0 {
			var sum int
			for _, rating := range ratings {
				sum += rating.Rating
			}
			average = float64(sum) / float64(len(ratings))
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ratings": ratings,
			"count":   len(ratings),
			"average": average,
		})
	}
}

// ratingSubmission is the client payload for a rating; product and user ids
// come from the URL and the session.
type ratingSubmission struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func createRatingHandler(logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.UserSessionFromContext(r.Context())
		if !ok {
			httputil.WriteError(w, r, errors.Internal("no session on user route", nil))
			return
		}

		var submission ratingSubmission
		if err := httputil.DecodeJSONBody(r, &submission); err != nil {
			httputil.WriteError(w, r, errors.Validation(err.Error()))
			return
		}

		rating, err := session.Repo.CreateRating(r.Context(), database.RatingCreate{
			ID:        uuid.NewString(),
			ProductID: mux.Vars(r)["id"],
			UserID:    session.Principal.ID,
			Rating:    submission.Rating,
			Comment:   submission.Comment,
		})
		if err != nil {
			writeStoreError(w, r, err)
			return
		}

		logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"product_id": rating.ProductID,
			"rating":     rating.Rating,
		}).Info("product rated")
		httputil.WriteJSON(w, http.StatusCreated, rating)
	}
}
