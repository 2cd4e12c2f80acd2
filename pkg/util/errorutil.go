package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds used across the service. Kinds stay internal; the HTTP boundary
// renders only the message, so "wrong password" and "no such account" are
// indistinguishable to callers.
const (
	KindMissingField   = "MISSING_FIELD"
	KindDuplicateEmail = "DUPLICATE_EMAIL"
	KindNotFound       = "NOT_FOUND"
	KindBadCredentials = "BAD_CREDENTIALS"
	KindNoToken        = "NO_TOKEN"
	KindInvalidToken   = "INVALID_TOKEN"
	KindUserGone       = "USER_GONE"
	KindUploadFailed   = "UPLOAD_FAILED"
	KindTransportError = "TRANSPORT_ERROR"
	KindRateLimited    = "RATE_LIMITED"
	KindInternal       = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Kind       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind, message string, status int) *DomainError {
	return &DomainError{Kind: kind, Message: message, HTTPStatus: status}
}

func NewMissingField(message string) error {
	return NewDomainError(KindMissingField, message, http.StatusBadRequest)
}

func NewDuplicateEmail() error {
	return NewDomainError(KindDuplicateEmail, "Account already exists", http.StatusConflict)
}

func NewNotFound(resource string) error {
	return NewDomainError(KindNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewBadCredentials() error {
	return NewDomainError(KindBadCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func NewNoToken() error {
	return NewDomainError(KindNoToken, "No token provided", http.StatusUnauthorized)
}

func NewInvalidToken(err error) error {
	return &DomainError{
		Kind:       KindInvalidToken,
		Message:    "Invalid or expired token",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

func NewUserGone() error {
	return NewDomainError(KindUserGone, "User not found", http.StatusUnauthorized)
}

func NewUploadFailed(err error) error {
	return &DomainError{
		Kind:       KindUploadFailed,
		Message:    "Error updating profile. Try again.",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewRateLimited() error {
	return NewDomainError(KindRateLimited, "Too many attempts. Try again later.", http.StatusTooManyRequests)
}

func NewInternalError(err error) error {
	return &DomainError{
		Kind:       KindInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Kind:       KindInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Kind == kind
}
