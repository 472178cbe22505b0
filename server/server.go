package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdStop
)

func (k commandKind) String() string {
	switch k {
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	default:
		return "stop"
	}
}

type command struct {
	kind     commandKind
	graceful bool
	reply    chan error
}

// exit reports the end of a listener generation
type exit struct {
	gen int
	err error
}

// Start creates a worker, binds its sockets and starts serving on them.
// It returns once the worker is running, or with a *BindError when a socket
// could not be bound.
func Start(c *Config) (*Worker, error) {
	w := newWorker(c)

	ready := make(chan error, 1)
	go w.run(ready)
	err := <-ready
	if err != nil {
		return nil, err
	}
	c.Metrics.epochs.Inc()

	return w, nil
}

func newWorker(c *Config) *Worker {
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics()
	}

	w := &Worker{
		c:        c,
		srv:      &http.Server{Handler: c.Handler, ReadHeaderTimeout: 10 * time.Second},
		addr:     c.ListenAddr,
		tlsAddr:  c.TLSListenAddr,
		listenFn: net.Listen,
		cmds:     make(chan *command),
		exits:    make(chan exit),
		done:     make(chan struct{}),
	}
	if c.TLS == nil || c.TLSListenAddr == "" {
		w.tlsAddr = ""
	}
	if c.TLSOnly && w.tlsAddr != "" {
		w.addr = ""
	}
	w.setState(StateStarting)

	return w
}

// Worker owns the listening sockets of one epoch.
// Its commands are handled one at a time by a single run loop.
type Worker struct {
	c     *Config
	srv   *http.Server
	state atomic.Int32

	// set by the first bind
	addr    string
	tlsAddr string

	// owned by the run loop
	listenFn  func(network, address string) (net.Listener, error)
	listeners []net.Listener
	gen       int

	cmds  chan *command
	exits chan exit
	done  chan struct{}
	err   error
}

// State returns the current worker state
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Done is closed once the worker is stopped
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns why the worker stopped on its own, nil after a regular stop.
// Only valid once Done is closed.
func (w *Worker) Err() error {
	<-w.done
	return w.err
}

// Addr returns the bound plain http address, empty when not serving plain http
func (w *Worker) Addr() string {
	return w.addr
}

// TLSAddr returns the bound https address, empty when not serving https
func (w *Worker) TLSAddr() string {
	return w.tlsAddr
}

// Pause stops accepting new connections. Open connections keep being served.
func (w *Worker) Pause() error {
	return w.send(&command{kind: cmdPause})
}

// Resume accepts new connections again on the same addresses
func (w *Worker) Resume() error {
	return w.send(&command{kind: cmdResume})
}

// Stop ends the epoch. A graceful stop lets open requests finish within the
// drain timeout, then closes what is left. The sockets are released when
// Stop returns.
func (w *Worker) Stop(graceful bool) error {
	return w.send(&command{kind: cmdStop, graceful: graceful})
}

// send delivers cmd to the run loop and waits for its result
func (w *Worker) send(cmd *command) error {
	cmd.reply = make(chan error, 1)

	select {
	case w.cmds <- cmd:
	case <-w.done:
		return ErrWorkerUnavailable
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-w.done:
		// a stop replies right before the run loop exits
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrWorkerUnavailable
		}
	}
}

func (w *Worker) run(ready chan<- error) {
	defer close(w.done)

	err := w.listen()
	if err != nil {
		w.err = err
		w.setState(StateStopped)
		ready <- err
		return
	}
	w.setState(StateRunning)
	ready <- nil

	for {
		select {
		case cmd := <-w.cmds:
			log.Debugf("Worker received %s command", cmd.kind)
			cmd.reply <- w.handle(cmd)
			if cmd.kind == cmdStop {
				return
			}
		case e := <-w.exits:
			if e.gen != w.gen {
				continue
			}
			w.err = errors.Wrap(e.err, "listener failed")
			log.Errorf("Worker crashed: %s", w.err)
			w.srv.Close()
			w.setState(StateStopped)
			return
		}
	}
}

func (w *Worker) handle(cmd *command) error {
	switch cmd.kind {
	case cmdPause:
		return w.pause()
	case cmdResume:
		return w.resume()
	case cmdStop:
		return w.stop(cmd.graceful)
	default:
		return errors.Errorf("unknown command %d", cmd.kind)
	}
}

func (w *Worker) pause() error {
	if w.State() == StatePaused {
		return nil
	}
	// the closed generation is not a failure
	w.gen++
	w.closeListeners()
	w.setState(StatePaused)
	log.Info("Worker paused, not accepting new connections")

	return nil
}

func (w *Worker) resume() error {
	if w.State() == StateRunning {
		return nil
	}
	err := w.listen()
	if err != nil {
		return err
	}
	w.setState(StateRunning)
	log.Info("Worker resumed")

	return nil
}

func (w *Worker) stop(graceful bool) error {
	w.setState(StateStopping)
	w.gen++

	var err error
	if graceful {
		ctx, cancel := context.WithTimeout(context.Background(), w.c.DrainTimeout)
		defer cancel()
		err = w.srv.Shutdown(ctx)
		if err != nil {
			log.Warnf("Open connections not drained within %s, closing them", w.c.DrainTimeout)
			err = w.srv.Close()
		}
	} else {
		err = w.srv.Close()
	}
	w.closeListeners()
	w.setState(StateStopped)
	log.Info("Worker stopped")

	return errors.Wrap(err, "failed to stop server")
}

// listen binds the configured sockets and serves them as a new generation
func (w *Worker) listen() error {
	lns, err := w.bind()
	if err != nil {
		return err
	}

	w.gen++
	w.listeners = lns
	w.serve(w.gen, lns)

	return nil
}

// bind opens the plain and tls sockets. The addresses resolved by the first
// bind are kept so a resume binds the same ports.
func (w *Worker) bind() ([]net.Listener, error) {
	lns := []net.Listener{}

	if w.addr != "" {
		ln, err := w.listenFn("tcp", w.addr)
		if err != nil {
			return nil, newBindError(w.addr, err)
		}
		if w.gen == 0 {
			w.addr = ln.Addr().String()
		}
		lns = append(lns, ln)
		log.Infof("http server listening on: http://%s", getAddrString(w.addr))
	}

	if w.tlsAddr != "" {
		ln, err := w.listenFn("tcp", w.tlsAddr)
		if err != nil {
			closeAll(lns)
			return nil, newBindError(w.tlsAddr, err)
		}
		if w.gen == 0 {
			w.tlsAddr = ln.Addr().String()
		}
		lns = append(lns, tls.NewListener(ln, w.c.TLS.TLSConfig()))
		log.Infof("https server listening on: https://%s", getAddrString(w.tlsAddr))
	}

	if len(lns) == 0 {
		return nil, &BindError{Reason: BindOther, Err: errors.New("no listen address configured")}
	}

	return lns, nil
}

// serve runs one Serve call per listener. The first listener to fail closes
// the others and the generation is reported on exits.
func (w *Worker) serve(gen int, lns []net.Listener) {
	g, ctx := errgroup.WithContext(context.Background())
	for _, ln := range lns {
		ln := ln
		g.Go(func() error {
			return w.srv.Serve(ln)
		})
	}

	go func() {
		<-ctx.Done()
		closeAll(lns)
	}()

	go func() {
		err := g.Wait()
		select {
		case w.exits <- exit{gen: gen, err: err}:
		case <-w.done:
		}
	}()
}

func (w *Worker) closeListeners() {
	closeAll(w.listeners)
	w.listeners = nil
}

func (w *Worker) setState(s State) {
	from := w.State()
	if from != s && !from.canTransition(s) && s != StateStarting {
		log.Warnf("Unexpected worker transition %s -> %s", from, s)
	}
	w.state.Store(int32(s))
	w.c.Metrics.state.Set(float64(s))
}

func closeAll(lns []net.Listener) {
	for _, ln := range lns {
		ln.Close()
	}
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
