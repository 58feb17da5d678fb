package bus

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// Module is a single-threaded unit of work pinned to the event loop's
// thread (§3 Module/service, §4.1). Instances never cross threads;
// only their constructors do.
type Module interface {
	Signals() []SignalID
	Initialize() error
	Execute(pkg Package)
	Finalize()
}

// ModuleConstructor builds a Module inside the thread that will own
// it. Constructors are the only part of this pattern allowed to cross
// thread boundaries (§3, §9 "construct inside the destination thread").
type ModuleConstructor func() (Module, error)

// recvTimeout is how often Recv wakes up to check the Timeout case.
// Per §9, Timeout is non-fatal and just causes another iteration.
const recvTimeout = 2 * time.Second

// EventLoop owns a single Receiver and an ordered list of modules
// (§4.1). It dispatches every Defined package to every module that
// subscribed to that signal id, in registration order, and exits
// cleanly on Special(Terminate).
type EventLoop struct {
	logger       *slog.Logger
	bus          *Bus
	constructors []ModuleConstructor

	// BlockedSignals are OS signals this thread masks on entry so the
	// process's designated signal-handling thread retains sole
	// delivery (§5 "Signal blocking").
	BlockedSignals []unix.Signal
}

// NewEventLoop creates a loop that will construct modules, in order,
// once Run starts on its own thread.
func NewEventLoop(b *Bus, logger *slog.Logger, constructors ...ModuleConstructor) *EventLoop {
	return &EventLoop{logger: logger, bus: b, constructors: constructors}
}

// Run blocks the calling goroutine for the lifetime of the loop. The
// caller should invoke Run in its own dedicated goroutine; Run pins
// that goroutine to one OS thread (runtime.LockOSThread) because the
// masked-signal state and module locality invariant (§8 property 1)
// are both per-OS-thread.
func (l *EventLoop) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := l.blockSignals(); err != nil {
		return fmt.Errorf("block signals: %w", err)
	}

	recv, err := l.bus.NewReceiver()
	if err != nil {
		return fmt.Errorf("create receiver: %w", err)
	}
	defer recv.Close()

	modules := make([]Module, 0, len(l.constructors))
	for i, ctor := range l.constructors {
		m, err := ctor()
		if err != nil {
			return fmt.Errorf("construct module %d: %w", i, err)
		}
		modules = append(modules, m)
	}

	subscribers := make(map[SignalID][]int)
	for i, m := range modules {
		for _, sig := range m.Signals() {
			if err := recv.Subscribe(sig); err != nil {
				return fmt.Errorf("subscribe module %d to signal %d: %w", i, sig, err)
			}
			subscribers[sig] = append(subscribers[sig], i)
		}
	}

	for i, m := range modules {
		if err := m.Initialize(); err != nil {
			l.logger.Error("module initialize failed", "index", i, "err", err)
		}
	}

	defer func() {
		for i := len(modules) - 1; i >= 0; i-- {
			modules[i].Finalize()
		}
	}()

	for {
		env := recv.Recv(recvTimeout)
		switch env.Kind {
		case KindDefined:
			for _, idx := range subscribers[env.Signal] {
				modules[idx].Execute(env.Package)
			}
		case KindSpecial:
			if env.Command == CommandTerminate {
				return nil
			}
		case KindTimeout:
			// Non-fatal per §9; loop again.
			continue
		case KindEmpty, KindErr:
			return fmt.Errorf("event loop receiver failed: kind=%v err=%v", env.Kind, env.Err)
		}
	}
}

func (l *EventLoop) blockSignals() error {
	if len(l.BlockedSignals) == 0 {
		return nil
	}
	var set unix.Sigset_t
	for _, s := range l.BlockedSignals {
		addSignal(&set, s)
	}
	return unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil)
}

func addSignal(set *unix.Sigset_t, s unix.Signal) {
	// Sigset_t.Val is a 16-word bitmask; signal numbers are 1-based.
	word := (int(s) - 1) / 64
	bit := uint((int(s) - 1) % 64)
	set.Val[word] |= 1 << bit
}
