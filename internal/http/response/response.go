// Package response writes the JSON envelope used by the plain HTTP
// endpoints of the web server (health checks, rate-limit rejections).
package response

import (
	"encoding/json"
	"net/http"

	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/logger"
)

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Success bool   `json:"success"`
}

// JSON writes data wrapped in an envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any, log *logger.Logger) {
	write(w, status, Envelope{Success: status < 400, Data: data}, log)
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, log *logger.Logger) {
	JSON(w, http.StatusOK, data, log)
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, message string, log *logger.Logger) {
	write(w, status, Envelope{Error: message}, log)
}

// TooManyRequests writes a 429 Too Many Requests response.
func TooManyRequests(w http.ResponseWriter, message string, log *logger.Logger) {
	write(w, http.StatusTooManyRequests, Envelope{
		Error: message,
		Code:  string(domainerrors.CodeRateLimited),
	}, log)
}

// HandleError writes the status and code carried by a domain error.
// Errors without a code become 500 and are logged.
func HandleError(w http.ResponseWriter, err error, log *logger.Logger) {
	code := domainerrors.CodeOf(err)
	if code == domainerrors.CodeInternal {
		if log != nil {
			log.WithError(err).Error("Unhandled error")
		}
		write(w, http.StatusInternalServerError, Envelope{Error: "internal server error", Code: string(code)}, log)
		return
	}
	write(w, code.HTTPStatus(), Envelope{Error: domainerrors.MessageOf(err), Code: string(code)}, log)
}

func write(w http.ResponseWriter, status int, envelope Envelope, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(envelope); err != nil && log != nil {
		log.Error("Failed to encode JSON response", "error", err)
	}
}
