package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the typed failure returned by every remote call. Status 0 means
// the request never produced an HTTP response (transport failure).
type Error struct {
	Status  int
	Code    string
	Message string

	cause error
}

func (e *Error) Error() string {
	switch {
	case e.Status == 0 && e.cause != nil:
		return fmt.Sprintf("api: %v", e.cause)
	case e.Code != "":
		return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, e.Message)
	default:
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// IsUnauthorized reports whether the backend rejected the bearer token.
func (e *Error) IsUnauthorized() bool { return e.Status == http.StatusUnauthorized }

// IsNotFound reports whether the requested resource does not exist.
func (e *Error) IsNotFound() bool { return e.Status == http.StatusNotFound }

// IsConflict reports whether the request conflicted with backend state.
func (e *Error) IsConflict() bool { return e.Status == http.StatusConflict }

// Temporary reports whether retrying the same call could succeed: transport
// failures and 5xx responses qualify, client errors do not.
func (e *Error) Temporary() bool {
	return e.Status == 0 || e.Status >= http.StatusInternalServerError
}

// AsError unwraps err into the typed API error when possible.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err carries a 401 response.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.IsUnauthorized()
}

// IsTemporary reports whether err is worth retrying or falling back from.
func IsTemporary(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Temporary()
}
