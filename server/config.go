package server

import (
	"net/http"
	"time"

	"github.com/chrisvdg/contentserver/identity"
)

// DefaultDrainTimeout bounds how long a graceful stop waits for open requests
const DefaultDrainTimeout = 5 * time.Second

// Config represents the configuration of one worker
type Config struct {
	// ListenAddr is the plain http address, ignored when TLSOnly is set
	ListenAddr string
	// TLSListenAddr is the https address, used when TLS is set
	TLSListenAddr string
	TLSOnly       bool
	TLS           *identity.Identity
	Handler       http.Handler
	DrainTimeout  time.Duration
	// Metrics receives the worker state, a new registry is used when nil
	Metrics *Metrics
}
