package main

import (
	stderrors "errors"
	"net/http"

	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/errors"
	"github.com/purpose-technology/namapp-server/internal/httputil"
)

// writeStoreError maps repository errors onto the wire taxonomy. Validation
// failures and missing rows keep their own codes; anything else surfaces as
// a backend error carrying the store's message text.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *database.NotFoundError
	switch {
	case stderrors.As(err, &notFound):
		httputil.WriteError(w, r, errors.NotFound(notFound.Resource, notFound.ID))
	case database.IsInvalidInput(err):
		httputil.WriteError(w, r, errors.Validation(err.Error()))
	default:
		httputil.WriteError(w, r, errors.Internal(err.Error(), err))
	}
}
