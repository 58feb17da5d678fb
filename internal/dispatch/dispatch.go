// Package dispatch implements the FD multiplexer described in §4.2: a
// readiness-driven callback dispatcher wrapping epoll, with a local
// (single-threaded) and threaded (cross-thread-safe) variant sharing
// one implementation.
package dispatch

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// EventKind is a flag set over {READ, WRITE, HANGUP} (§4.2).
type EventKind uint8

const (
	Read EventKind = 1 << iota
	Write
	Hangup
)

func (k EventKind) String() string {
	s := ""
	if k&Read != 0 {
		s += "R"
	}
	if k&Write != 0 {
		s += "W"
	}
	if k&Hangup != 0 {
		s += "H"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Handler is a boxed event source: a readiness fd plus an event-kind
// tagged callback (§3 "Event-handler registration").
type Handler interface {
	FD() int
	HandleEvent(kind EventKind)
}

// HandlerID is the opaque identifier add_source returns.
type HandlerID uint64

type entry struct {
	id      HandlerID
	fd      int
	handler Handler
	want    EventKind
}

// Dispatcher is the shared implementation behind Local and Threaded.
// It owns an epoll instance and the handler table (§5 "The
// dispatcher's handler table is guarded by a mutex; the run flag is
// atomic").
type Dispatcher struct {
	logger *slog.Logger
	epfd   int
	wakeR  int // read end of the self-pipe used to break EpollWait on Stop
	wakeW  int

	mu      sync.Mutex
	byID    map[HandlerID]*entry
	byFD    map[int]*entry
	nextID  uint64

	running atomic.Bool
}

// New creates the epoll instance and self-pipe. Fatal per §7
// ("cannot create dispatcher" is process-fatal) if epoll_create1 or
// the wake pipe fails.
func New(logger *slog.Logger) (*Dispatcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("pipe2: %w", err)
	}

	d := &Dispatcher{
		logger: logger,
		epfd:   epfd,
		wakeR:  fds[0],
		wakeW:  fds[1],
		byID:   make(map[HandlerID]*entry),
		byFD:   make(map[int]*entry),
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, d.wakeR, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(d.wakeR),
	}); err != nil {
		d.closeFDs()
		return nil, fmt.Errorf("register wake pipe: %w", err)
	}

	return d, nil
}

func (d *Dispatcher) closeFDs() {
	unix.Close(d.epfd)
	unix.Close(d.wakeR)
	unix.Close(d.wakeW)
}

func epollEventsFor(kind EventKind) uint32 {
	var ev uint32 = unix.EPOLLHUP | unix.EPOLLERR // HANGUP is always delivered (§4.2)
	if kind&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if kind&Write != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// AddSource registers handler for the requested event kinds and
// returns its id.
func (d *Dispatcher) AddSource(handler Handler, kind EventKind) (HandlerID, error) {
	fd := handler.FD()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	e := &entry{id: HandlerID(d.nextID), fd: fd, handler: handler, want: kind}

	if err := unix.EpollCtl(d.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: epollEventsFor(kind),
		Fd:     int32(fd),
	}); err != nil {
		return 0, fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}

	d.byID[e.id] = e
	d.byFD[fd] = e
	return e.id, nil
}

// DeleteSource removes a handler by id. No-op if already removed.
func (d *Dispatcher) DeleteSource(id HandlerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleteLocked(id)
}

func (d *Dispatcher) deleteLocked(id HandlerID) {
	e, ok := d.byID[id]
	if !ok {
		return
	}
	delete(d.byID, id)
	delete(d.byFD, e.fd)
	_ = unix.EpollCtl(d.epfd, unix.EPOLL_CTL_DEL, e.fd, nil)
}

// Stop asks Run to return after its current wait. Safe to call from
// any thread; it's the one operation the Local variant also exposes.
func (d *Dispatcher) Stop() {
	d.running.Store(false)
	// Wake EpollWait if it's parked.
	var b [1]byte
	_, _ = unix.Write(d.wakeW, b[:])
}

// Close releases the epoll instance and wake pipe. Call after Run
// returns.
func (d *Dispatcher) Close() {
	d.closeFDs()
}

func kindFromEpoll(events uint32) EventKind {
	var k EventKind
	if events&unix.EPOLLIN != 0 {
		k |= Read
	}
	if events&unix.EPOLLOUT != 0 {
		k |= Write
	}
	if events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0 {
		k |= Hangup
	}
	return k
}

// Run blocks, dispatching one ready event at a time, until Stop is
// called (§4.2 "Run loop"). EINTR is resumed silently; any other
// poll error is process-fatal.
func (d *Dispatcher) Run() error {
	d.running.Store(true)
	var events [1]unix.EpollEvent

	for d.running.Load() {
		n, err := unix.EpollWait(d.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}
		if n == 0 {
			continue
		}
		d.handleReady(int(events[0].Fd), events[0].Events)
	}
	return nil
}

// WaitAndProcess pumps at most one ready event within timeoutMs,
// returning without blocking further (§4.2 "pump mode").
func (d *Dispatcher) WaitAndProcess(timeoutMs int) error {
	var events [1]unix.EpollEvent
	n, err := unix.EpollWait(d.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("epoll_wait: %w", err)
	}
	if n == 0 {
		return nil
	}
	d.handleReady(int(events[0].Fd), events[0].Events)
	return nil
}

func (d *Dispatcher) handleReady(fd int, events uint32) {
	if fd == d.wakeR {
		var buf [64]byte
		_, _ = unix.Read(d.wakeR, buf[:])
		return
	}

	d.mu.Lock()
	e, ok := d.byFD[fd]
	d.mu.Unlock()
	if !ok {
		return
	}

	kind := kindFromEpoll(events)
	e.handler.HandleEvent(kind)

	if kind == Hangup {
		d.DeleteSource(e.id)
	}
}
