package identity

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a TLS identity build failure
type ErrorKind int

const (
	// KeyUnreadable means the key file could not be read or holds no usable key
	KeyUnreadable ErrorKind = iota + 1
	// CertUnreadable means the certificate file could not be read or parsed
	CertUnreadable
	// KeyCertMismatch means the key does not belong to the certificate
	KeyCertMismatch
	// Unsupported means the material is valid but cannot be used for TLS
	Unsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KeyUnreadable:
		return "key unreadable"
	case CertUnreadable:
		return "certificate unreadable"
	case KeyCertMismatch:
		return "key does not match certificate"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error represents a failure to build a TLS identity
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tls %s (%s): %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error { return e.Err }

// Stage names the step that failed
func (e *Error) Stage() string { return "tls" }

// IsKind reports whether err is an identity error of kind k
func IsKind(err error, k ErrorKind) bool {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr.Kind == k
	}
	return false
}
