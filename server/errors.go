package server

import (
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

var (
	// ErrWorkerUnavailable means the worker run loop has exited and cannot take commands
	ErrWorkerUnavailable = errors.New("worker unavailable")
)

// BindReason classifies a bind failure
type BindReason int

const (
	// BindOther is any failure not covered by another reason
	BindOther BindReason = iota
	// AddressInUse means another socket holds the address
	AddressInUse
	// PermissionDenied means the process may not bind the address
	PermissionDenied
)

func (r BindReason) String() string {
	switch r {
	case AddressInUse:
		return "address in use"
	case PermissionDenied:
		return "permission denied"
	default:
		return "bind failed"
	}
}

// BindError represents a failure to bind a listening socket
type BindError struct {
	Addr   string
	Reason BindReason
	Err    error
}

func newBindError(addr string, err error) *BindError {
	reason := BindOther
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		reason = AddressInUse
	case errors.Is(err, syscall.EACCES), errors.Is(err, os.ErrPermission):
		reason = PermissionDenied
	}

	return &BindError{
		Addr:   addr,
		Reason: reason,
		Err:    err,
	}
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %s: %v", e.Addr, e.Reason, e.Err)
}

// Unwrap returns the underlying error
func (e *BindError) Unwrap() error { return e.Err }

// Stage names the step that failed
func (e *BindError) Stage() string { return "bind" }
