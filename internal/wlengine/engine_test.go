package wlengine

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/coordinator"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	coord := coordinator.New(nil)
	e, err := New(slog.Default(), coord, nil, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		e.Stop()
		e.Close()
	})
	return e, e.SocketPath()
}

func TestBindListenSocketSkipsTaken(t *testing.T) {
	dir := t.TempDir()

	taken, err := net.ListenUnix("unix", &net.UnixAddr{Name: dir + "/wayland-0", Net: "unix"})
	require.NoError(t, err)
	defer taken.Close()

	ln, path, err := bindListenSocket(dir)
	require.NoError(t, err)
	defer ln.Close()

	require.Equal(t, dir+"/wayland-1", path)
}

func TestBindListenSocketExhausted(t *testing.T) {
	dir := t.TempDir()
	var listeners []*net.UnixListener
	defer func() {
		for _, l := range listeners {
			l.Close()
		}
	}()
	for n := 0; n <= 9; n++ {
		path := dir + "/wayland-" + string(rune('0'+n))
		ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
		require.NoError(t, err)
		listeners = append(listeners, ln)
	}

	_, _, err := bindListenSocket(dir)
	require.Error(t, err)
}

func TestClientHangupRemovesEverything(t *testing.T) {
	e, sock := newTestEngine(t)

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.clients) == 1 && len(e.byClientID) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.clients) == 0 && len(e.byClientID) == 0
	}, time.Second, 10*time.Millisecond)

	e.Stop()
	require.NoError(t, <-done)
}
