package dispatch

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fdHandler struct {
	fd     int
	events chan EventKind
}

func (h *fdHandler) FD() int { return h.fd }
func (h *fdHandler) HandleEvent(kind EventKind) {
	h.events <- kind
}

func pipeFDs(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestDispatcherDeliversReadEvent(t *testing.T) {
	d, err := New(slog.Default())
	require.NoError(t, err)
	defer d.Close()

	r, w := pipeFDs(t)
	h := &fdHandler{fd: r, events: make(chan EventKind, 4)}
	_, err = d.AddSource(h, Read)
	require.NoError(t, err)

	go func() { _ = d.Run() }()
	defer d.Stop()

	_, err = unix.Write(w, []byte("x"))
	require.NoError(t, err)

	select {
	case kind := <-h.events:
		require.True(t, kind&Read != 0)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never fired")
	}
}

func TestDispatcherRemovesHandlerOnHangup(t *testing.T) {
	d, err := New(slog.Default())
	require.NoError(t, err)
	defer d.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	a, b := fds[0], fds[1]
	t.Cleanup(func() { unix.Close(a) })

	h := &fdHandler{fd: a, events: make(chan EventKind, 4)}
	// Registered for no readiness kind: hang-up is always delivered, and
	// without Read the peer's close reports Hangup alone.
	id, err := d.AddSource(h, 0)
	require.NoError(t, err)

	go func() { _ = d.Run() }()
	defer d.Stop()

	unix.Close(b) // triggers HANGUP on a

	select {
	case kind := <-h.events:
		require.Equal(t, Hangup, kind)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never saw hangup")
	}

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		_, ok := d.byID[id]
		return !ok
	}, time.Second, 10*time.Millisecond, "handler must be removed after isolated HANGUP")
}

func TestStopEndsRun(t *testing.T) {
	d, err := New(slog.Default())
	require.NoError(t, err)
	defer d.Close()

	done := make(chan struct{})
	go func() {
		_ = d.Run()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	d.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
