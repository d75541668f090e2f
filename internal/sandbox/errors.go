package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden marks a query rejected by policy before execution.
	ErrForbidden = errors.New("forbidden query")

	// ErrQueryFailed marks an engine-level failure while executing an
	// accepted query.
	ErrQueryFailed = errors.New("query failed")
)

// ForbiddenError reports why a query was rejected. Keyword is the denied
// keyword found, or empty when the statement is not a SELECT.
type ForbiddenError struct {
	Keyword string
	Reason  string
}

func (e *ForbiddenError) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("%s: keyword %s is not allowed", ErrForbidden, e.Keyword)
	}
	return fmt.Sprintf("%s: %s", ErrForbidden, e.Reason)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// QueryError carries the engine's native message for a failed query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", ErrQueryFailed, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }
