package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInternal           = errors.New("internal error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("already exists")
	ErrUnauthorized       = errors.New("unauthorized access")
)

// Sub-kinds of ErrUnauthorized. They all deny access but are reported separately.
var (
	ErrTokenMissing  = fmt.Errorf("%w: token missing", ErrUnauthorized)
	ErrInvalidToken  = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired  = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrTokenMismatch = fmt.Errorf("%w: token mismatch", ErrUnauthorized)
	ErrUserGone      = fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
)

func NewInvalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func WrapInternal(err error, context string) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, context, err)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsTokenExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// Message returns the client-facing text of a domain error: the wrapped sentinel chain
// without the internal cause. Internal errors collapse to a generic message.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case IsInternal(err):
		return "something went wrong"
	case IsInvalidArgument(err):
		return trimPrefix(err.Error(), ErrInvalidArgument.Error()+": ")
	case IsInvalidCredentials(err):
		return "invalid credentials"
	case IsAlreadyExists(err):
		return "user with same username or email already exists"
	case IsNotFound(err):
		return "user does not exist"
	case IsUnauthorized(err):
		return err.Error()
	default:
		return "something went wrong"
	}
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
