package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/librarydesk/librarian/internal/errors"
)

// APIError is the JSON error body of every failed API call.
type APIError struct { //nolint:revive // reads better at call sites than api.Error
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// fromDomain converts a domain error into an APIError. The boolean is false
// when err carries no domain error.
func fromDomain(err error) (*APIError, bool) {
	var domainErr *domainerrors.Error
	if !errors.As(err, &domainErr) {
		return nil, false
	}
	return &APIError{
		status:  domainErr.HTTPStatus(),
		Code:    string(domainErr.Code),
		Message: domainErr.Message,
		Details: domainErr.Details,
	}, true
}

// RegisterErrorHandler makes huma render its errors as APIError, keeping
// the code of any domain error among errs.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			if apiErr, ok := fromDomain(err); ok {
				return apiErr
			}
		}

		apiErr := &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
		if len(errs) > 0 && status == http.StatusUnprocessableEntity {
			details := make([]string, 0, len(errs))
			for _, err := range errs {
				details = append(details, err.Error())
			}
			apiErr.Details = details
		}
		return apiErr
	}
}

// statusToCode names huma's own failures (bad input, unknown routes)
// with the domain codes. Upstream-only statuses become INTERNAL.
func statusToCode(status int) string {
	code := domainerrors.CodeForStatus(status)
	if code == domainerrors.CodeBackend {
		code = domainerrors.CodeInternal
	}
	return string(code)
}

// fail converts a service error into the StatusError huma writes. Errors
// without a domain code are logged and reported as internal.
func (s *Server) fail(op string, err error) error {
	if apiErr, ok := fromDomain(err); ok {
		if apiErr.status >= http.StatusInternalServerError {
			s.logger.WithError(err).Error("API operation failed", "operation", op)
		}
		return apiErr
	}
	s.logger.WithError(err).Error("API operation failed", "operation", op)
	return &APIError{
		status:  http.StatusInternalServerError,
		Code:    string(domainerrors.CodeInternal),
		Message: "unexpected error occurred",
	}
}
