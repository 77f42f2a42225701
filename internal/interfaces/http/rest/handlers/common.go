// Package handlers adapts HTTP requests to the recipe, category, user and share services.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "savethespice-backend/internal/errors"
	"savethespice-backend/internal/interfaces/http/rest/middleware"
)

const (
	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 1 << 20
	// maxBatchItems bounds the number of ids or items in one batch request.
	maxBatchItems = 100
)

// decodeJSON reads the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErrors.Validation(appErrors.CodeInvalidInput, "request body is required").Build()
		}
		return appErrors.Validation(appErrors.CodeInvalidInput, "malformed request body").
			WithDetails(err.Error()).
			Build()
	}
	return nil
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, appErrors.Validation(appErrors.CodeInvalidID, fmt.Sprintf("invalid id %q", raw)).Build()
	}
	return id, nil
}

func checkBatch(n int) error {
	if n > maxBatchItems {
		return appErrors.Validation(appErrors.CodeBatchTooLarge,
			fmt.Sprintf("at most %d items per request", maxBatchItems)).Build()
	}
	return nil
}

func userID(r *http.Request) string {
	return middleware.UserID(r.Context())
}
