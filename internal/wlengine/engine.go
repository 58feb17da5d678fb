// Package wlengine runs the Wayland display-server endpoint: one
// listen socket, one dispatcher driving per-client wire I/O, and a
// second goroutine routing gateway signals from the bus to the right
// client's proxy (§4.6).
package wlengine

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/coordinator"
	"github.com/driftwm/drift/internal/dispatch"
	"github.com/driftwm/drift/internal/types"
)

// Engine owns the listen socket, the client dispatcher and the
// gateway-to-proxy routing table. Run and RunGateway are meant to
// execute in their own goroutines concurrently; both only touch
// shared state through mu/outMu.
type Engine struct {
	logger *slog.Logger
	coord  *coordinator.Coordinator
	b      *bus.Bus
	med    *mediator

	disp *dispatch.Local
	ln   *net.UnixListener
	sock string

	nextClient types.Monotonic

	mu         sync.Mutex
	clients    map[dispatch.HandlerID]*clientConn
	byClientID map[types.ClientID]*clientConn

	outMu   sync.Mutex
	outputs []types.OutputGeometry

	shotMu      sync.Mutex
	nextShot    types.Monotonic
	pendingShot map[uint64]pendingScreenshot
}

// pendingScreenshot is what RequestScreenshot records about one
// in-flight weston_screenshooter.shoot request, resolved once the
// matching bus.ScreenshotReady arrives (§12 screenshooter wiring).
type pendingScreenshot struct {
	client           types.ClientID
	screenshooterObj types.ObjectID
	bufferObj        types.ObjectID
}

// New binds a wayland-N listen socket under runtimeDir and installs
// its accept handler in a fresh local dispatcher (§4.6, §6 "Listen
// socket").
func New(logger *slog.Logger, coord *coordinator.Coordinator, b *bus.Bus, runtimeDir string) (*Engine, error) {
	disp, err := dispatch.NewLocal(logger)
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	ln, sock, err := bindListenSocket(runtimeDir)
	if err != nil {
		disp.Close()
		return nil, err
	}

	e := &Engine{
		logger:      logger,
		coord:       coord,
		b:           b,
		med:         newMediator(),
		disp:        disp,
		ln:          ln,
		sock:        sock,
		clients:     make(map[dispatch.HandlerID]*clientConn),
		byClientID:  make(map[types.ClientID]*clientConn),
		pendingShot: make(map[uint64]pendingScreenshot),
	}

	fd, err := rawListenerFD(ln)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("read listener fd: %w", err)
	}
	if _, err := disp.AddSource(&displayHandler{fd: fd, engine: e}, dispatch.Read); err != nil {
		e.Close()
		return nil, fmt.Errorf("register display handler: %w", err)
	}

	logger.Info("wayland listen socket bound", "path", sock)
	return e, nil
}

// SocketPath returns the bound wayland-N path, for WAYLAND_DISPLAY.
func (e *Engine) SocketPath() string { return e.sock }

// Run drives the client dispatcher until Stop is called. Call from
// its own goroutine; Stop is safe to call from any thread.
func (e *Engine) Run() error {
	return e.disp.Run()
}

// Stop unblocks Run from any thread (§4.2 "Local dispatcher").
func (e *Engine) Stop() {
	e.disp.Controller().Stop()
}

// Close releases the listen socket and its dispatcher. Call after Run
// has returned.
func (e *Engine) Close() {
	if e.disp != nil {
		e.disp.Close()
	}
	if e.ln != nil {
		_ = e.ln.Close()
	}
	if e.sock != "" {
		_ = os.Remove(e.sock)
	}
}
