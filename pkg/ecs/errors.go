package ecs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Query errors

	ErrQueryMissingComponent = errors.New("query does not guarantee a required component")
	ErrNoQueryProvider       = errors.New("system state has no query provider")

	// Buffer errors

	ErrReadOnlyBuffer = errors.New("dynamic buffer is read-only")
	ErrInvalidBuffer  = errors.New("dynamic buffer is not bound to a chunk")
	ErrBufferIndex    = errors.New("dynamic buffer index out of range")

	// Job errors

	ErrJobPanicked       = errors.New("job panicked")
	ErrDependencyFailed  = errors.New("job dependency failed")
	ErrUnregisteredType  = errors.New("component type is not registered")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrComponentNotFound = errors.New("entity does not have the component")
	ErrNotEnableable     = errors.New("component type is not enableable")
)

// QueryRequirementError reports a caller-supplied query that does not guarantee
// every component type a declaration iterates.
type QueryRequirementError struct {
	Declaration string
	Missing     []string
}

func (e *QueryRequirementError) Error() string {
	return fmt.Sprintf("%s: supplied query is missing required component(s) %s",
		e.Declaration, strings.Join(e.Missing, ", "))
}

func (e *QueryRequirementError) Unwrap() error { return ErrQueryMissingComponent }
