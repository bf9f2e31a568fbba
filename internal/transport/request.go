package transport

import (
	"net/http"
	"strconv"

	"minimarket/internal/middleware"

	"go.uber.org/zap"
)

// decodeRequest decodes and validates a JSON body, writing the error
// response itself when it returns false
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.Error(err), zap.String("path", r.URL.Path))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// sessionID returns the shopper session set by SessionMiddleware
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetSessionID(r.Context())
	if !ok || id == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing session")
		return "", false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter, def when absent
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
