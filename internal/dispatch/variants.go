package dispatch

import "log/slog"

// LocalController is the only interface a Local dispatcher exposes to
// other threads: mutating its handler set from elsewhere would be
// unsafe because Local's handlers are not required to be cross-thread
// safe (§4.2 "Local dispatcher").
type LocalController interface {
	Stop()
}

// ThreadedController exposes the full handler-mutation surface,
// usable from any thread, because Threaded requires every registered
// Handler to be safe for concurrent use (§4.2 "Threaded dispatcher").
type ThreadedController interface {
	AddSource(handler Handler, kind EventKind) (HandlerID, error)
	DeleteSource(id HandlerID)
	Stop()
}

// Local wraps a Dispatcher for single-threaded use: only its own
// thread may add or remove sources; other threads may only Stop it.
type Local struct {
	*Dispatcher
}

// NewLocal creates a single-threaded dispatcher.
func NewLocal(logger *slog.Logger) (*Local, error) {
	d, err := New(logger)
	if err != nil {
		return nil, err
	}
	return &Local{Dispatcher: d}, nil
}

// Controller returns the restricted view safe to hand to other
// threads.
func (l *Local) Controller() LocalController { return l.Dispatcher }

// Threaded wraps a Dispatcher whose handlers are all required to be
// safe for concurrent use; any thread may add/delete/stop it.
type Threaded struct {
	*Dispatcher
}

// NewThreaded creates a cross-thread-safe dispatcher.
func NewThreaded(logger *slog.Logger) (*Threaded, error) {
	d, err := New(logger)
	if err != nil {
		return nil, err
	}
	return &Threaded{Dispatcher: d}, nil
}

// Controller returns the full view safe to hand to other threads.
func (t *Threaded) Controller() ThreadedController { return t.Dispatcher }
