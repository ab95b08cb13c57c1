// Package services defines the business logic for accounts, conversations,
// and direct messages. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Account-related errors.
var (
	// ErrUsernameTaken is returned when registration requests a username that
	// already belongs to another account.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken is returned when registration requests an email address
	// that already belongs to another account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned when login fails, without revealing
	// whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken is returned when a bearer token is missing, malformed,
	// expired, or signed with the wrong key.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Messaging-related errors.
var (
	// ErrEmptyContent is returned when a message body is empty after
	// trimming whitespace.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrTooLong is returned when a message body exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message content too long")

	// ErrSelfMessage is returned when a user attempts to message themselves.
	ErrSelfMessage = errors.New("cannot message yourself")
)
