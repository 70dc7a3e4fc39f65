package http

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
	"github.com/Swiftdaops/QuickClean/pkg/httputil"
	"github.com/Swiftdaops/QuickClean/pkg/validator"
)

// decodeBody decodes and validates a JSON body. It writes the error response
// and returns false when the body is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, err)
		return false
	}
	httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body"), logger)
	return false
}

// requireSession returns the request's session id, writing a 401 when the
// session middleware did not run.
func requireSession(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id := sessionIDFromContext(r.Context())
	if id == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("session required"), logger)
		return "", false
	}
	return id, true
}
