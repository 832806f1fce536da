// Package httpx holds the JSON request and response helpers shared by handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/apperr"
	"github.com/ayush/storefront/backend/internal/logging"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message   string   `json:"message"`
	Errors    []string `json:"errors,omitempty"`
	Reference string   `json:"reference,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err according to its code. Server errors are logged
// with a fresh reference id which is the only detail returned to the client.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	body := ErrorBody{Message: apperr.Message(err), Errors: apperr.Details(err)}

	if status >= http.StatusInternalServerError {
		body.Reference = uuid.NewString()
		logging.Error(logger, "request failed", err,
			zap.String("reference", body.Reference),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	}

	WriteJSON(w, status, body)
}

// DecodeJSON reads a JSON request body into v. An empty body leaves v untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}
