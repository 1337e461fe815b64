package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

// MaxRequestBodySize bounds JSON request bodies.
const MaxRequestBodySize = 64 << 10

// ErrorHandler returns middleware that recovers from panics.
func ErrorHandler(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", map[string]any{
						"error":      err,
						"path":       r.URL.Path,
						"request_id": RequestID(r.Context()),
					})

					WriteError(w, protocol.NewInternalError(""))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// BodyLimit caps request bodies at MaxRequestBodySize.
func BodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// The status code is already written; an encoding failure cannot be reported.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteOK writes a success envelope around data.
func WriteOK[T any](w http.ResponseWriter, data T) {
	WriteJSON(w, protocol.OK(data), http.StatusOK)
}

// WriteError writes a failure envelope. The HTTP status follows the error
// code, and Retry-After is set when the error carries a retry hint.
func WriteError(w http.ResponseWriter, err *protocol.ErrorResponse) {
	status := HTTPStatusForErrorCode(err.Code)
	if err.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(*err.RetryAfter))
	}
	WriteJSON(w, protocol.Fail(err), status)
}

// HTTPStatusForErrorCode maps protocol error codes to HTTP status codes.
func HTTPStatusForErrorCode(code protocol.ErrorCode) int {
	switch code {
	case protocol.ErrCodeValidation:
		return http.StatusBadRequest

	case protocol.ErrCodeAuthentication,
		protocol.ErrCodeMissingToken,
		protocol.ErrCodeInvalidToken:
		return http.StatusUnauthorized

	case protocol.ErrCodeUserNotFound:
		return http.StatusNotFound

	case protocol.ErrCodeAccountLocked:
		return http.StatusLocked

	case protocol.ErrCodeTooManyRequests:
		return http.StatusTooManyRequests

	case protocol.ErrCodeNetwork:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
