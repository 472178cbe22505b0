package control

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chrisvdg/contentserver/certtest"
	"github.com/chrisvdg/contentserver/config"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	b bytes.Buffer
	m sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.m.Lock()
	defer b.m.Unlock()
	return b.b.String()
}

// scriptedPrompter hands out choices sent by a test and signals every prompt
type scriptedPrompter struct {
	asked   chan struct{}
	choices chan Choice
}

func newScriptedPrompter() *scriptedPrompter {
	return &scriptedPrompter{
		asked:   make(chan struct{}),
		choices: make(chan Choice),
	}
}

func (p *scriptedPrompter) Next(ctx context.Context) (Choice, error) {
	select {
	case p.asked <- struct{}{}:
	case <-ctx.Done():
		return ChoiceNone, ctx.Err()
	}
	select {
	case c, ok := <-p.choices:
		if !ok {
			return ChoiceNone, ErrInputClosed
		}
		return c, nil
	case <-ctx.Done():
		return ChoiceNone, ctx.Err()
	}
}

// await waits until the plane prompts the operator
func (p *scriptedPrompter) await(t *testing.T) {
	t.Helper()
	select {
	case <-p.asked:
	case <-time.After(10 * time.Second):
		t.Fatal("operator was not prompted")
	}
}

// choose sends c and waits for the next prompt, which follows its completion
func (p *scriptedPrompter) choose(t *testing.T, c Choice) {
	t.Helper()
	p.choices <- c
	p.await(t)
}

func pickAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return addr
}

// testRoot is a server root with every document, template and asset
type testRoot struct {
	dir  string
	pair *certtest.Pair
}

func newTestRoot(t *testing.T, socket string) *testRoot {
	t.Helper()
	dir := t.TempDir()
	for _, d := range []string{config.DocDir, "templates", "css", "js", "ssl"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, d), 0755))
	}
	r := &testRoot{dir: dir, pair: certtest.Write(t, filepath.Join(dir, "ssl"), "valid")}

	r.write(t, "templates/index.html", `<html lang="{{.lang}}"><h1>{{.name}}</h1><p>{{.hostname}}</p></html>`)
	r.write(t, "css/site.css", `body{margin:0}`)
	r.write(t, "js/site.js", `console.log("hi")`)
	r.write(t, "json/content.json", `{"name":"home","url":"https://localhost","author":"me",
		"description":"test page","charset":"utf-8","lang":"en",
		"css":"/css/site.css","custom_css":"/css/custom.css","js":"/js/site.js"}`)
	r.write(t, "json/app.json", `{"templates":"templates/*.html","css":"/css/site.css",
		"custom_css":"/css/custom.css","javascript":"/js/site.js"}`)
	r.setSocket(t, socket)

	return r
}

func (r *testRoot) write(t *testing.T, name, data string) {
	t.Helper()
	require.NoError(t, ioutil.WriteFile(filepath.Join(r.dir, filepath.FromSlash(name)), []byte(data), 0644))
}

// setSocket points the plain and tls documents at socket
func (r *testRoot) setSocket(t *testing.T, socket string) {
	t.Helper()
	r.write(t, "json/server.json", fmt.Sprintf(`{"socket":%q,"hostname":"test"}`, socket))
	r.write(t, "json/tls.json", fmt.Sprintf(`{"certfile":"/ssl/valid.pem","keyfile":"/ssl/valid.key","socket":%q}`, socket))
}

// handshake reports whether a TLS handshake with addr completes
func (r *testRoot) handshake(addr string) bool {
	dialer := &net.Dialer{Timeout: time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{RootCAs: r.pair.Pool(), ServerName: "localhost"})
	if err != nil {
		return false
	}
	defer conn.Close()
	return conn.ConnectionState().HandshakeComplete
}

func canConnect(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

type planeRun struct {
	plane    *Plane
	prompter *scriptedPrompter
	out      *syncBuffer
	cancel   context.CancelFunc
	errs     chan error
}

func runPlane(t *testing.T, root *testRoot, watch bool) *planeRun {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &planeRun{
		prompter: newScriptedPrompter(),
		out:      &syncBuffer{},
		cancel:   cancel,
		errs:     make(chan error, 1),
	}
	r.plane = New(&Config{
		Store:        config.NewStore(root.dir),
		Prompter:     r.prompter,
		Console:      NewConsole(r.out),
		DrainTimeout: time.Second,
		Watch:        watch,
	})
	go func() { r.errs <- r.plane.Run(ctx) }()
	t.Cleanup(cancel)

	return r
}

func (r *planeRun) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errs:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("control plane did not return")
		return nil
	}
}
