package wlengine

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/driftwm/drift/internal/dispatch"
)

// bindListenSocket tries ${runtimeDir}/wayland-<n> for n in [0,9],
// keeping the first that binds (§4.6, §6 "Listen socket"). Fails if
// none are free.
func bindListenSocket(runtimeDir string) (*net.UnixListener, string, error) {
	var lastErr error
	for n := 0; n <= 9; n++ {
		path := filepath.Join(runtimeDir, fmt.Sprintf("wayland-%d", n))
		ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
		if err != nil {
			lastErr = err
			continue
		}
		return ln, path, nil
	}
	return nil, "", fmt.Errorf("bind listen socket: no wayland-0..9 free under %s: %w", runtimeDir, lastErr)
}

// rawListenerFD returns the listener's fd for epoll registration,
// without disturbing its ownership: Go's runtime keeps driving Accept
// through its own netpoller entry for the same fd, our dispatcher only
// uses this one to learn readiness.
func rawListenerFD(ln *net.UnixListener) (int, error) {
	rawConn, err := ln.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	ctrlErr := rawConn.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

// displayHandler is the dispatcher Handler for the listen socket
// (§4.6 "Install a display handler in a local dispatcher").
type displayHandler struct {
	fd     int
	engine *Engine
}

func (h *displayHandler) FD() int { return h.fd }

// HandleEvent accepts one pending connection. Level-triggered epoll
// re-fires HandleEvent if more than one connection is backlogged, so
// this never needs to drain in a loop.
func (h *displayHandler) HandleEvent(kind dispatch.EventKind) {
	conn, err := h.engine.ln.Accept()
	if err != nil {
		if !isTemporary(err) {
			h.engine.logger.Warn("accept failed", "err", err)
		}
		return
	}
	h.engine.onAccept(conn)
}

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	t, ok := err.(temporary)
	return ok && t.Temporary()
}
