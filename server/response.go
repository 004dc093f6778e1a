package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
	"github.com/teranos/punchclock/remote"
)

// maxBodyBytes bounds a single push batch
const maxBodyBytes = 8 << 20

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, remote.ErrorResponse{Error: message})
}

// writeFailure maps the error taxonomy onto HTTP status codes. Server-side
// failures are logged with their stack; the client only sees the message.
func writeFailure(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger, err error) {
	switch {
	case errors.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.IsNotFoundError(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.IsConflictError(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.IsAuthError(err):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		log.With(logger.FieldsFromContext(r.Context())...).Errorw("Request failed",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldError, err,
			"stack", errors.GetStack(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readJSON decodes a bounded JSON request body, answering 400 on failure
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
