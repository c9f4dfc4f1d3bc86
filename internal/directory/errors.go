package directory

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the directory API.
type APIError struct {
	StatusCode int
	Code       string // machine-readable error code from the response body, if any
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("directory: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("directory: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the directory.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the directory, which the
// client treats as evidence the operation was already applied.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsTransient reports whether err is worth retrying: a server error, or a
// not-found that may be eventual-consistency lag after a dependent create.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode >= 500
}

// isAlreadyExists matches the directory's "one or more added object
// references already exist" response to an add-member/add-owner call.
func isAlreadyExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusConflict {
		return true
	}
	return apiErr.StatusCode == http.StatusBadRequest &&
		apiErr.Code == "Request_BadRequest" // added references already exist
}
