// Package errors provides the SQL Sentinel error taxonomy on top of the
// standard library errors package. Every failure surfaced by the core is
// tagged with a Category so callers can distinguish bad configuration from
// query-contract violations, adapter failures, and notification failures
// without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies an error for propagation policy decisions.
type Category string

const (
	// CategoryConfiguration marks fatal startup/reload errors (bad schedule
	// expressions, unparsable definitions).
	CategoryConfiguration Category = "configuration"
	// CategoryValidation marks query-contract violations.
	CategoryValidation Category = "validation"
	// CategoryExecution marks adapter, connection, and persistence failures.
	CategoryExecution Category = "execution"
	// CategoryNotification marks channel delivery failures after retries.
	CategoryNotification Category = "notification"
)

type categorizedError struct {
	category Category
	err      error
}

func (e *categorizedError) Error() string { return e.err.Error() }

func (e *categorizedError) Unwrap() error { return e.err }

// New creates a categorized error from a message.
func New(category Category, msg string) error {
	return &categorizedError{category: category, err: errors.New(msg)}
}

// Newf creates a categorized error from a format string.
func Newf(category Category, format string, args ...any) error {
	return &categorizedError{category: category, err: fmt.Errorf(format, args...)}
}

// Wrap attaches a category and message prefix to an existing error. The
// wrapped error stays reachable through errors.Is/As.
func Wrap(category Category, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &categorizedError{category: category, err: fmt.Errorf("%s: %w", msg, err)}
}

// CategoryOf returns the category of err, or the empty string if err carries
// none. The outermost category wins when errors are nested.
func CategoryOf(err error) Category {
	var ce *categorizedError
	if errors.As(err, &ce) {
		return ce.category
	}
	return ""
}

// HasCategory reports whether err (or any wrapped error) carries the given
// category.
func HasCategory(err error, category Category) bool {
	for err != nil {
		if ce, ok := err.(*categorizedError); ok && ce.category == category {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Stdlib passthrough, so callers only import this package.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Unwrap(err error) error { return errors.Unwrap(err) }

func Join(errs ...error) error { return errors.Join(errs...) }
