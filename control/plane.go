// Package control runs the server epochs and turns operator selections into
// worker commands
package control

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/chrisvdg/contentserver/config"
	"github.com/chrisvdg/contentserver/identity"
	"github.com/chrisvdg/contentserver/server"
	"github.com/chrisvdg/contentserver/site"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config represents a control plane configuration
type Config struct {
	Store    *config.Store
	Prompter Prompter
	Console  *Console
	// DrainTimeout bounds graceful stops, server.DefaultDrainTimeout when zero
	DrainTimeout time.Duration
	Metrics      *server.Metrics
	AccessLog    io.Writer
	// Watch reports changes of the documents on disk between reloads
	Watch bool
}

// New creates a control plane
func New(c *Config) *Plane {
	if c.Console == nil {
		c.Console = NewConsole(io.Discard)
	}
	if c.Metrics == nil {
		c.Metrics = server.NewMetrics()
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = server.DefaultDrainTimeout
	}

	return &Plane{c: c}
}

// Plane sequences epochs: each loads the configuration, builds the TLS
// identity, starts a worker and hands it to the operator until a reload or quit.
type Plane struct {
	c       *Config
	current atomic.Pointer[server.Worker]
}

// Run runs epochs until the operator quits or ctx is cancelled, both return
// nil. A failure to start the first epoch is returned, later failures are
// reported and leave the operator free to reload again.
func (p *Plane) Run(ctx context.Context) error {
	if p.c.Watch {
		stop := p.watch()
		defer stop()
	}

	for epoch := 1; ; epoch++ {
		w, err := p.startEpoch(epoch)
		if err != nil {
			if epoch == 1 {
				return err
			}
			log.Errorf("Epoch %d failed to start: %s", epoch, err)
			p.c.Console.Printf("Reload failed (%s): %s\nFix the configuration and select Reload again.\n", Stage(err), err)
		}
		p.current.Store(w)

		reload, err := p.operate(ctx, w)
		p.current.Store(nil)
		if err != nil || !reload {
			return err
		}
	}
}

// startEpoch loads the documents and starts a worker serving them
func (p *Plane) startEpoch(epoch int) (*server.Worker, error) {
	store := p.c.Store

	srv, err := store.Server()
	if err != nil {
		return nil, err
	}
	tlsConf, err := store.TLS()
	if err != nil {
		return nil, err
	}
	app, err := store.App()
	if err != nil {
		return nil, err
	}

	id, err := identity.Build(tlsConf, store.Resolve)
	if err != nil {
		return nil, err
	}
	renderer, err := site.NewRenderer(store.Resolve(app.Templates))
	if err != nil {
		return nil, &StageError{Step: "templates", Err: err}
	}
	routes := []string{app.CSS, app.CustomCSS, app.JavaScript}

	handler := server.NewRouter(&server.Site{
		Content:   store.Content,
		Renderer:  renderer,
		Assets:    site.LoadAssets(store.Resolve, routes...),
		Routes:    routes,
		Hostname:  srv.Hostname,
		Metrics:   p.c.Metrics,
		AccessLog: p.c.AccessLog,
	})

	w, err := server.Start(&server.Config{
		ListenAddr:    srv.Socket,
		TLSListenAddr: tlsConf.Socket,
		TLSOnly:       srv.Socket == tlsConf.Socket,
		TLS:           id,
		Handler:       handler,
		DrainTimeout:  p.c.DrainTimeout,
		Metrics:       p.c.Metrics,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Epoch %d started for %s", epoch, srv.Hostname)
	p.c.Console.Printf("Server running (epoch %d): %s\n", epoch, addrs(w))

	return w, nil
}

// operate runs the operator menu against w until the epoch ends. It reports
// whether a new epoch should be started. w is nil when the epoch failed to
// start, leaving only Reload and Quit meaningful.
func (p *Plane) operate(ctx context.Context, w *server.Worker) (bool, error) {
	console := p.c.Console

	for {
		choice, err := p.next(ctx, w)
		switch {
		case err == server.ErrWorkerUnavailable:
			return p.workerUnavailable(w)
		case err == ErrInputClosed:
			log.Warn("Operator input closed, serving until terminated")
			return p.wait(ctx, w)
		case err != nil:
			log.Infof("Terminating: %s", err)
			p.stop(w)
			return false, nil
		}

		switch choice {
		case ChoicePause, ChoiceResume:
			if w == nil {
				console.Printf("No server running.\n")
				continue
			}
			if choice == ChoicePause {
				err = w.Pause()
			} else {
				err = w.Resume()
			}
			if err == server.ErrWorkerUnavailable {
				return p.workerUnavailable(w)
			}
			if err != nil {
				console.Printf("%s failed: %s\n", choice, err)
				continue
			}
			if choice == ChoicePause {
				console.Printf("Server paused.\n")
			} else {
				console.Printf("Server resumed.\n")
			}
		case ChoiceReload:
			p.stop(w)
			console.Printf("Reloading.\n")
			return true, nil
		case ChoiceQuit:
			p.stop(w)
			console.Printf("Server stopped.\n")
			return false, nil
		}
	}
}

// next prompts the operator. The prompt is abandoned with
// ErrWorkerUnavailable when w stops on its own.
func (p *Plane) next(ctx context.Context, w *server.Worker) (Choice, error) {
	if w == nil {
		return p.c.Prompter.Next(ctx)
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.Done():
			cancel()
		case <-pctx.Done():
		}
	}()

	choice, err := p.c.Prompter.Next(pctx)
	if err != nil && ctx.Err() == nil && stopped(w) {
		return ChoiceNone, server.ErrWorkerUnavailable
	}

	return choice, err
}

// wait serves without operator input until ctx is cancelled or w stops on its own
func (p *Plane) wait(ctx context.Context, w *server.Worker) (bool, error) {
	var done <-chan struct{}
	if w != nil {
		done = w.Done()
	}

	select {
	case <-ctx.Done():
		p.stop(w)
		return false, nil
	case <-done:
		return p.workerUnavailable(w)
	}
}

func (p *Plane) workerUnavailable(w *server.Worker) (bool, error) {
	err := w.Err()
	if err == nil {
		err = server.ErrWorkerUnavailable
	}
	log.Errorf("Worker unavailable: %s", err)
	p.c.Console.Printf("Worker unavailable (%s), reloading.\n", err)

	return true, nil
}

// stop gracefully stops w and waits for its sockets to be released
func (p *Plane) stop(w *server.Worker) {
	if w == nil {
		return
	}
	err := w.Stop(true)
	if err != nil && err != server.ErrWorkerUnavailable {
		log.Errorf("Failed to stop worker: %s", err)
	}
	<-w.Done()
}

// watch reports document changes on the console until the returned func is called
func (p *Plane) watch() func() {
	w, err := config.NewWatcher(p.c.Store)
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		log.Warnf("Config changes will not be reported: %s", err)
		return func() {}
	}
	w.OnChange(func(k config.Kind) {
		p.c.Console.Printf("\n%s configuration changed on disk, select Reload to apply.\n", k)
	})

	return func() { w.Stop() }
}

func stopped(w *server.Worker) bool {
	select {
	case <-w.Done():
		return true
	default:
		return false
	}
}

func addrs(w *server.Worker) string {
	switch {
	case w.Addr() == "":
		return "https://" + w.TLSAddr()
	case w.TLSAddr() == "":
		return "http://" + w.Addr()
	default:
		return fmt.Sprintf("http://%s https://%s", w.Addr(), w.TLSAddr())
	}
}

// StageError tags an error with the startup step that produced it
type StageError struct {
	Step string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error { return e.Err }

// Stage names the step that failed
func (e *StageError) Stage() string { return e.Step }

// Stage returns the failing stage of err: open, read, parse, tls, bind or
// templates. Other errors are "startup".
func Stage(err error) string {
	var s interface{ Stage() string }
	if errors.As(err, &s) {
		return s.Stage()
	}
	return "startup"
}
