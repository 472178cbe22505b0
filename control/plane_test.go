package control

import (
	"context"
	"crypto/tls"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrisvdg/contentserver/config"
	"github.com/chrisvdg/contentserver/identity"
	"github.com/chrisvdg/contentserver/server"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEpochs(t *testing.T) {
	assert := assert.New(t)
	a := pickAddr(t)
	root := newTestRoot(t, a)
	run := runPlane(t, root, false)

	// epoch 1 serves TLS on a
	run.prompter.await(t)
	assert.True(root.handshake(a))

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: root.pair.Pool(), ServerName: "localhost"},
	}}
	resp, err := client.Get("https://" + a + "/")
	require.NoError(t, err)
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(string(body), "<h1>home</h1>")
	assert.Contains(string(body), "<p>test</p>")
	client.CloseIdleConnections()

	run.prompter.choose(t, ChoicePause)
	assert.False(root.handshake(a))
	assert.Equal(server.StatePaused, run.plane.current.Load().State())

	run.prompter.choose(t, ChoiceResume)
	assert.True(root.handshake(a))

	// epoch 2 moves to b and releases a
	b := pickAddr(t)
	root.setSocket(t, b)
	first := run.plane.current.Load()
	run.prompter.choose(t, ChoiceReload)
	assert.Equal(server.StateStopped, first.State())
	assert.False(canConnect(a))
	assert.True(root.handshake(b))

	run.prompter.choices <- ChoiceQuit
	assert.NoError(run.wait(t))
	assert.False(canConnect(b))

	out := run.out.String()
	assert.Contains(out, "Server running (epoch 1): https://"+a)
	assert.Contains(out, "Server paused.")
	assert.Contains(out, "Server resumed.")
	assert.Contains(out, "Reloading.")
	assert.Contains(out, "Server running (epoch 2): https://"+b)
	assert.Contains(out, "Server stopped.")
}

func TestRunReloadSameSocket(t *testing.T) {
	a := pickAddr(t)
	root := newTestRoot(t, a)
	run := runPlane(t, root, false)
	run.prompter.await(t)

	// the next epoch can only bind a once the previous one released it
	for i := 0; i < 3; i++ {
		run.prompter.choose(t, ChoiceReload)
		assert.True(t, root.handshake(a))
	}
	assert.NotContains(t, run.out.String(), "Reload failed")

	run.prompter.choices <- ChoiceQuit
	assert.NoError(t, run.wait(t))
}

func TestRunPlainAndTLS(t *testing.T) {
	assert := assert.New(t)
	plain, secure := pickAddr(t), pickAddr(t)
	root := newTestRoot(t, secure)
	root.write(t, "json/server.json", `{"socket":"`+plain+`","hostname":"test"}`)
	run := runPlane(t, root, false)
	run.prompter.await(t)

	resp, err := http.Get("http://" + plain + "/css/site.css")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("text/css; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.True(root.handshake(secure))

	run.prompter.choices <- ChoiceQuit
	assert.NoError(run.wait(t))
	assert.False(canConnect(plain))
	assert.False(canConnect(secure))
}

func TestRunNoSelectionRedisplaysMenu(t *testing.T) {
	a := pickAddr(t)
	root := newTestRoot(t, a)
	run := runPlane(t, root, false)
	run.prompter.await(t)

	run.prompter.choose(t, ChoiceNone)
	run.prompter.choose(t, ChoiceNone)
	assert.True(t, root.handshake(a))

	run.prompter.choices <- ChoiceQuit
	assert.NoError(t, run.wait(t))
}

func TestRunFirstEpochFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root *testRoot)
		stage string
	}{
		{
			name:  "missing server document",
			setup: func(t *testing.T, root *testRoot) { os.Remove(filepath.Join(root.dir, "json", "server.json")) },
			stage: "open",
		},
		{
			name:  "malformed tls document",
			setup: func(t *testing.T, root *testRoot) { root.write(t, "json/tls.json", `{"certfile":"/ssl/valid.pem"}`) },
			stage: "parse",
		},
		{
			name: "key mismatch",
			setup: func(t *testing.T, root *testRoot) {
				other := newTestRoot(t, "127.0.0.1:0")
				key, err := ioutil.ReadFile(other.pair.KeyFile)
				require.NoError(t, err)
				root.write(t, "ssl/valid.key", string(key))
			},
			stage: "tls",
		},
		{
			name:  "no templates",
			setup: func(t *testing.T, root *testRoot) { os.Remove(filepath.Join(root.dir, "templates", "index.html")) },
			stage: "templates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newTestRoot(t, pickAddr(t))
			tt.setup(t, root)
			run := runPlane(t, root, false)

			err := run.wait(t)
			require.Error(t, err)
			assert.Equal(t, tt.stage, Stage(err))
		})
	}
}

func TestRunFirstEpochBindFailure(t *testing.T) {
	root := newTestRoot(t, pickAddr(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	root.setSocket(t, ln.Addr().String())

	run := runPlane(t, root, false)
	err = run.wait(t)
	var berr *server.BindError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, server.AddressInUse, berr.Reason)
	assert.Equal(t, "bind", Stage(err))
}

func TestRunReloadFailureIsRecoverable(t *testing.T) {
	assert := assert.New(t)
	a := pickAddr(t)
	root := newTestRoot(t, a)
	run := runPlane(t, root, false)
	run.prompter.await(t)

	root.write(t, "json/server.json", `{"socket":`)
	run.prompter.choose(t, ChoiceReload)
	assert.Contains(run.out.String(), "Reload failed (parse)")
	assert.Nil(run.plane.current.Load())
	// stale state is not resumed
	assert.False(canConnect(a))

	run.prompter.choose(t, ChoicePause)
	run.prompter.choose(t, ChoiceResume)
	assert.Contains(run.out.String(), "No server running.")
	assert.False(canConnect(a))

	root.setSocket(t, a)
	run.prompter.choose(t, ChoiceReload)
	assert.True(root.handshake(a))

	run.prompter.choices <- ChoiceQuit
	assert.NoError(run.wait(t))
}

func TestRunWorkerUnavailableForcesReload(t *testing.T) {
	assert := assert.New(t)
	a := pickAddr(t)
	root := newTestRoot(t, a)
	run := runPlane(t, root, false)
	run.prompter.await(t)

	first := run.plane.current.Load()
	require.NoError(t, first.Stop(false))

	run.prompter.await(t)
	assert.Contains(run.out.String(), "Worker unavailable")
	assert.Contains(run.out.String(), "Server running (epoch 2)")
	assert.NotEqual(first, run.plane.current.Load())
	assert.True(root.handshake(a))

	run.prompter.choices <- ChoiceQuit
	assert.NoError(run.wait(t))
}

func TestRunInputClosedServesUntilCancelled(t *testing.T) {
	a := pickAddr(t)
	root := newTestRoot(t, a)
	run := runPlane(t, root, false)
	run.prompter.await(t)

	close(run.prompter.choices)
	time.Sleep(100 * time.Millisecond)
	assert.True(t, root.handshake(a))

	run.cancel()
	assert.NoError(t, run.wait(t))
	assert.False(t, canConnect(a))
}

func TestRunCancelStopsServer(t *testing.T) {
	a := pickAddr(t)
	root := newTestRoot(t, a)
	run := runPlane(t, root, false)
	run.prompter.await(t)

	run.cancel()
	assert.NoError(t, run.wait(t))
	assert.False(t, canConnect(a))
}

func TestRunReportsConfigChanges(t *testing.T) {
	root := newTestRoot(t, pickAddr(t))
	run := runPlane(t, root, true)
	run.prompter.await(t)

	root.write(t, "json/content.json", `{}`)
	assert.Eventually(t, func() bool {
		return strings.Contains(run.out.String(), "content configuration changed on disk")
	}, 5*time.Second, 20*time.Millisecond)

	run.prompter.choices <- ChoiceQuit
	assert.NoError(t, run.wait(t))
}

func TestStage(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("read", Stage(&config.Error{Kind: config.Unreadable}))
	assert.Equal("tls", Stage(errors.Wrap(&identity.Error{Kind: identity.KeyCertMismatch}, "epoch")))
	assert.Equal("bind", Stage(&server.BindError{}))
	assert.Equal("templates", Stage(&StageError{Step: "templates", Err: errors.New("x")}))
	assert.Equal("startup", Stage(context.Canceled))
}
