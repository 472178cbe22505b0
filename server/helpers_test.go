package server

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/chrisvdg/contentserver/config"
	"github.com/chrisvdg/contentserver/site"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// pickAddr finds a free TCP address for testing
func pickAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return addr
}

// canConnect reports whether a TCP connection to addr is accepted
func canConnect(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

type rendererFunc func(id string, ctx map[string]string) ([]byte, error)

func (f rendererFunc) Render(id string, ctx map[string]string) ([]byte, error) {
	return f(id, ctx)
}

func testContent() config.Content {
	return config.Content{Name: "home", Lang: "en", Charset: "utf-8"}
}

func testSite() *Site {
	return &Site{
		Content: func() (config.Content, error) { return testContent(), nil },
		Renderer: rendererFunc(func(id string, ctx map[string]string) ([]byte, error) {
			if id != IndexTemplate {
				return nil, &site.RenderError{Template: id, Err: site.ErrTemplateNotFound}
			}
			return []byte("<h1>" + ctx["name"] + "@" + ctx["hostname"] + "</h1>"), nil
		}),
		Assets:   site.LoadAssets(func(string) string { return "/nonexistent" }),
		Hostname: "test",
		Metrics:  NewMetrics(),
	}
}

func testHandler() http.Handler {
	return NewRouter(testSite())
}

var errBoom = errors.New("boom")

// failingListener wraps a listener and fails Accept once fail is closed
type failingListener struct {
	net.Listener
	fail chan struct{}
}

func (l *failingListener) Accept() (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Listener.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-l.fail:
		l.Listener.Close()
		return nil, errBoom
	}
}
