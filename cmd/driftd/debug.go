package main

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/drmoutput"
	"github.com/driftwm/drift/internal/types"
)

// frameDumper writes the current composited frame to disk as a PNG
// each time the process receives SIGUSR1, the same out-of-band request
// the screenshooter wiring (§12) uses internally, triggered here by an
// operator instead of a Wayland client.
type frameDumper struct {
	logger *slog.Logger
	b      *bus.Bus
	dir    string

	ids types.Monotonic
}

func newFrameDumper(logger *slog.Logger, b *bus.Bus, dir string) *frameDumper {
	return &frameDumper{logger: logger, b: b, dir: dir}
}

// Run blocks until ctx-equivalent shutdown; call in its own goroutine.
// Returns early if its receiver, subscription or publisher cannot be
// set up, and otherwise only when Recv reports Empty or Err.
func (d *frameDumper) Run() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	recv, err := d.b.NewReceiver()
	if err != nil {
		d.logger.Warn("frame dumper: create receiver failed", "err", err)
		return
	}
	defer recv.Close()
	if err := recv.Subscribe(bus.SignalScreenshotReady); err != nil {
		d.logger.Warn("frame dumper: subscribe failed", "err", err)
		return
	}

	pub, err := d.b.NewPublisher()
	if err != nil {
		d.logger.Warn("frame dumper: create publisher failed", "err", err)
		return
	}
	defer pub.Close()

	var pending uint64
	for {
		select {
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			pending = d.ids.Next()
			if err := pub.Publish(bus.ScreenshotRequested{RequestID: pending}); err != nil {
				d.logger.Warn("frame dumper: publish request failed", "err", err)
			}
		default:
		}

		env := recv.Recv(500 * time.Millisecond)
		switch env.Kind {
		case bus.KindDefined:
			ready, ok := env.Package.(bus.ScreenshotReady)
			if !ok || ready.RequestID != pending || pending == 0 {
				continue
			}
			pending = 0
			d.save(ready)
		case bus.KindEmpty, bus.KindErr:
			return
		}
	}
}

// thumbnailWidth is how wide the companion thumbnail dumped alongside
// the full frame is; height follows the source aspect ratio.
const thumbnailWidth = 256

func (d *frameDumper) save(ready bus.ScreenshotReady) {
	if ready.Err != "" {
		d.logger.Warn("frame dumper: capture failed", "err", ready.Err)
		return
	}
	png, err := drmoutput.EncodeFramePNG(ready.Pixels, ready.Width, ready.Height)
	if err != nil {
		d.logger.Warn("frame dumper: encode failed", "err", err)
		return
	}
	path := filepath.Join(d.dir, fmt.Sprintf("driftd-frame-%d.png", ready.RequestID))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		d.logger.Warn("frame dumper: write failed", "path", path, "err", err)
		return
	}
	d.logger.Info("frame dumper: wrote screenshot", "path", path)

	if ready.Width <= 0 || ready.Height <= 0 {
		return
	}
	thumbHeight := ready.Height * thumbnailWidth / ready.Width
	if thumbHeight < 1 {
		thumbHeight = 1
	}
	thumb := drmoutput.ResizeFrame(ready.Pixels, ready.Width, ready.Height, thumbnailWidth, thumbHeight)
	thumbPNG, err := drmoutput.EncodeFramePNG(thumb.(*image.RGBA).Pix, thumbnailWidth, thumbHeight)
	if err != nil {
		d.logger.Warn("frame dumper: encode thumbnail failed", "err", err)
		return
	}
	thumbPath := filepath.Join(d.dir, fmt.Sprintf("driftd-frame-%d-thumb.png", ready.RequestID))
	if err := os.WriteFile(thumbPath, thumbPNG, 0o644); err != nil {
		d.logger.Warn("frame dumper: write thumbnail failed", "path", thumbPath, "err", err)
		return
	}
	d.logger.Info("frame dumper: wrote thumbnail", "path", thumbPath)
}
