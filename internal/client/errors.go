package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/support-desk/internal/api/dto"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

var (
	// ErrNoCredentials is returned before any request when no session exists.
	ErrNoCredentials = errors.New("supportdesk: no credentials set")
	// ErrAuthentication wraps failures that cleared the session.
	ErrAuthentication = errors.New("supportdesk: authentication failed")
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supportdesk: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var env dto.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
		return apiErr
	}
	apiErr.Code = codeForStatus(status)
	apiErr.Message = http.StatusText(status)
	return apiErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperrors.CodeValidation
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case http.StatusForbidden:
		return apperrors.CodeForbidden
	case http.StatusNotFound:
		return apperrors.CodeNotFound
	default:
		return apperrors.CodeInternal
	}
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsNotFound reports a missing ticket or user.
func IsNotFound(err error) bool { return hasCode(err, apperrors.CodeNotFound) }

// IsForbidden reports an insufficient role.
func IsForbidden(err error) bool { return hasCode(err, apperrors.CodeForbidden) }

// IsValidation reports rejected input.
func IsValidation(err error) bool { return hasCode(err, apperrors.CodeValidation) }

// IsUnauthorized reports missing or rejected credentials, including the
// client-side cases that never reached the server.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrNoCredentials) || errors.Is(err, ErrAuthentication) || hasCode(err, apperrors.CodeUnauthorized)
}
