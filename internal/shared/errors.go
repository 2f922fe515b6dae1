package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the target user, role, or token does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPermissionDenied indicates the actor's role set is insufficient.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrPasswordMismatch indicates the confirmation field disagrees.
	ErrPasswordMismatch = errors.New("the passwords did not match")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ErrorList is a non-empty collection of human-readable failure
// descriptions returned by store operations instead of a single opaque
// error. Handlers surface it back to the form.
type ErrorList []string

// Error joins all descriptions.
func (e ErrorList) Error() string {
	return strings.Join(e, "; ")
}

// Errors converts err into an ErrorList, wrapping plain errors into a
// single-entry list. A nil err yields nil.
func Errors(err error) ErrorList {
	if err == nil {
		return nil
	}
	var list ErrorList
	if errors.As(err, &list) {
		return list
	}
	return ErrorList{err.Error()}
}

// UserSafeMessage maps internal errors to a message safe to render.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrPermissionDenied):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrInvalidCredentials):
		return "Login failed: Invalid email or password."
	default:
		var list ErrorList
		if errors.As(err, &list) {
			return list.Error()
		}
		return "Something went wrong. Please try again."
	}
}
