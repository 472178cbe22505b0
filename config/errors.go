package config

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a configuration load failure
type ErrorKind int

const (
	// NotFound means the document does not exist
	NotFound ErrorKind = iota + 1
	// Unreadable means the document exists but could not be read
	Unreadable
	// Malformed means the document does not have the shape of its kind
	Malformed
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Unreadable:
		return "unreadable"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error represents a failure to load a configuration document
type Error struct {
	Kind ErrorKind
	Doc  Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s config %s: %v", e.Stage(), e.Doc, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error { return e.Err }

// Stage names the step that failed: open, read or parse
func (e *Error) Stage() string {
	switch e.Kind {
	case NotFound:
		return "open"
	case Unreadable:
		return "read"
	default:
		return "parse"
	}
}

// IsKind reports whether err is a configuration error of kind k
func IsKind(err error, k ErrorKind) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind == k
	}
	return false
}
