package devicemgr

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	login1Path  = "/org/freedesktop/login1"
	login1Iface = "org.freedesktop.login1.Manager"
)

// SuspendWatcher subscribes to login1's PrepareForSleep signal and
// triggers re-enumeration on resume (§4.3 "On resume from suspend,
// re-enumerates").
type SuspendWatcher struct {
	conn   *dbus.Conn
	logger *slog.Logger
	mgr    *Manager
	ch     chan *dbus.Signal
}

// NewSuspendWatcher connects to the system bus and subscribes to
// login1's sleep signal.
func NewSuspendWatcher(logger *slog.Logger, mgr *Manager) (*SuspendWatcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbus.ObjectPath(login1Path)),
		dbus.WithMatchInterface(login1Iface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("add PrepareForSleep match: %w", err)
	}

	ch := make(chan *dbus.Signal, 8)
	conn.Signal(ch)

	return &SuspendWatcher{conn: conn, logger: logger, mgr: mgr, ch: ch}, nil
}

// Run blocks, re-enumerating devices on resume, until Stop closes the
// connection.
func (w *SuspendWatcher) Run() {
	for sig := range w.ch {
		if sig.Name != login1Iface+".PrepareForSleep" || len(sig.Body) == 0 {
			continue
		}
		goingToSleep, ok := sig.Body[0].(bool)
		if !ok || goingToSleep {
			continue
		}

		w.logger.Info("resume from suspend detected, re-enumerating devices")
		if err := w.mgr.Enumerate(); err != nil {
			w.logger.Warn("re-enumeration after resume failed", "err", err)
		}
	}
}

// Stop closes the D-Bus connection, ending Run.
func (w *SuspendWatcher) Stop() error {
	return w.conn.Close()
}
