package devicemgr

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/driftwm/drift/internal/bus"
)

// HotplugWatcher watches /dev/input for event-node add/remove using
// inotify, publishing bus.DeviceEvent for each (§4.3 "installs a
// monitor handler ... for future add/remove events").
type HotplugWatcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	pub     *bus.Publisher

	mu      sync.Mutex
	closed  bool
}

// NewHotplugWatcher starts watching dir (normally /dev/input).
func NewHotplugWatcher(dir string, logger *slog.Logger, pub *bus.Publisher) (*HotplugWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create inotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &HotplugWatcher{watcher: w, logger: logger, pub: pub}, nil
}

// Run blocks, translating inotify events into bus packages, until
// Stop is called.
func (h *HotplugWatcher) Run() {
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !strings.Contains(ev.Name, "event") {
				continue
			}
			h.handle(ev)

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("hotplug watcher error", "err", err)
		}
	}
}

func (h *HotplugWatcher) handle(ev fsnotify.Event) {
	var added bool
	switch {
	case ev.Op&(fsnotify.Create) != 0:
		added = true
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		added = false
	default:
		return
	}

	if err := h.pub.Publish(bus.DeviceEvent{Added: added, InputPath: ev.Name}); err != nil {
		h.logger.Warn("publish hotplug event failed", "path", ev.Name, "err", err)
	}
}

// Stop closes the underlying inotify watcher, ending Run.
func (h *HotplugWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.watcher.Close()
}
