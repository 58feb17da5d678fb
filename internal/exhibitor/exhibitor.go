// Package exhibitor implements the per-process display/pointer
// singleton described in §4.4: it owns the output map, the pointer,
// and the compositor layout, and is driven entirely by signal-bus
// packages dispatched through the bus.Module interface.
package exhibitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/coordinator"
	"github.com/driftwm/drift/internal/errs"
	"github.com/driftwm/drift/internal/types"
)

// Output is the display-and-renderer surface the exhibitor drives.
// internal/drmoutput provides the real implementation; tests supply a
// fake so this package never needs real DRM hardware.
type Output interface {
	ID() types.OutputID
	AdvancePageFlip() error
	Draw(under, main, over []SurfaceContext, cursor *SurfaceContext, pixels PixelAccessor) error
	// Screenshot returns the last composited frame as tightly packed
	// RGBA, for the screenshooter wiring (§4.5, §4.7 shoot).
	Screenshot() (pixels []byte, width, height int)
	Close() error
}

// SurfaceContext is what Draw needs to place one surface: its id and
// its committed offset, read from the coordinator at draw time.
type SurfaceContext struct {
	Surface types.SurfaceID
	OffsetX int32
	OffsetY int32
}

// PixelAccessor resolves a surface id to its committed buffer's pixel
// bytes, width, height and stride, or ok=false if the surface has no
// attached buffer yet.
type PixelAccessor func(types.SurfaceID) (pixels []byte, width, height, stride int, ok bool)

// OutputFactory constructs an Output from a discovered DrmBundle,
// assigning it the given canonical id (§4.4 "construct an Output from
// the DrmBundle").
type OutputFactory func(id types.OutputID, bundle types.DrmBundle) (Output, error)

// Display couples one Output with its compositor layout frame.
type Display struct {
	Output Output
	Layout *Layout
}

// Exhibitor is the per-process display/pointer singleton (§4.4).
type Exhibitor struct {
	logger  *slog.Logger
	coord   *coordinator.Coordinator
	pub     *bus.Publisher
	factory OutputFactory

	nextOutput types.Monotonic
	displays   map[types.OutputID]*Display

	pointer *Pointer
}

// New creates an Exhibitor. pub may be nil in tests that don't need
// redraw notifications published back onto the bus.
func New(logger *slog.Logger, coord *coordinator.Coordinator, pub *bus.Publisher, factory OutputFactory) *Exhibitor {
	return &Exhibitor{
		logger:   logger,
		coord:    coord,
		pub:      pub,
		factory:  factory,
		displays: make(map[types.OutputID]*Display),
		pointer:  NewPointer(),
	}
}

// Signals implements bus.Module.
func (e *Exhibitor) Signals() []bus.SignalID {
	return []bus.SignalID{
		bus.SignalOutputFound,
		bus.SignalPageFlip,
		bus.SignalSurfaceReady,
		bus.SignalSurfaceDestroyed,
		bus.SignalPointerMotion,
		bus.SignalPointerPosition,
		bus.SignalPointerButton,
		bus.SignalPointerReset,
		bus.SignalNotify,
		bus.SignalScreenshotRequested,
	}
}

// Initialize implements bus.Module.
func (e *Exhibitor) Initialize() error { return nil }

// Finalize implements bus.Module.
func (e *Exhibitor) Finalize() {
	for _, d := range e.displays {
		if err := d.Output.Close(); err != nil {
			e.logger.Warn("close output failed", "err", err)
		}
	}
}

// Execute implements bus.Module, dispatching each package by concrete
// type to the matching handler (§4.4 "Handlers").
func (e *Exhibitor) Execute(pkg bus.Package) {
	switch p := pkg.(type) {
	case bus.OutputFound:
		e.onOutputFound(p)
	case bus.PageFlip:
		e.onPageFlip(p)
	case bus.SurfaceReady:
		e.onSurfaceReady(p)
	case bus.SurfaceDestroyed:
		e.onSurfaceDestroyed(p)
	case bus.PointerMotion:
		e.onPointerMotion(p)
	case bus.PointerPosition:
		e.onPointerPosition(p)
	case bus.PointerButton:
		e.onPointerButton(p)
	case bus.PointerReset:
		e.onPointerReset()
	case bus.Notify:
		e.onNotify()
	case bus.ScreenshotRequested:
		e.onScreenshotRequested(p)
	}
}

// onOutputFound constructs a new Output for the bundle; construction
// failure is logged and the bundle dropped, never fatal (§4.4).
func (e *Exhibitor) onOutputFound(p bus.OutputFound) {
	id := types.OutputID(e.nextOutput.Next())

	out, err := e.factory(id, p.Bundle)
	if err != nil {
		e.logger.Error("construct output failed, dropping bundle", "path", p.Bundle.Path, "err", err)
		return
	}

	e.displays[id] = &Display{Output: out, Layout: NewLayout()}
	e.logger.Info("output registered", "output_id", id, "path", p.Bundle.Path)
}

// onPageFlip advances the named display's frame-pacing state machine.
// A failed flip is output-fatal (§7): without a Recreate path the
// display is closed and dropped rather than left wedged.
func (e *Exhibitor) onPageFlip(p bus.PageFlip) {
	d, ok := e.displays[p.OutputID]
	if !ok {
		return
	}
	if err := d.Output.AdvancePageFlip(); err != nil {
		fatal := &errs.OutputFatal{OutputID: uint32(p.OutputID), Cause: err}
		e.logger.Error("page flip failed, dropping output", "output_id", p.OutputID, "err", fatal)
		_ = d.Output.Close()
		delete(e.displays, p.OutputID)
	}
}

// onScreenshotRequested answers a weston_screenshooter shoot request
// (§12 screenshooter wiring) by reading back a display's last
// composited frame and publishing it keyed by RequestID so the
// Wayland engine can match it to the client that asked. OutputID zero
// means "whichever output is available" — the Wayland engine doesn't
// track per-client wl_output bindings down to a canonical OutputID,
// so every shoot captures the first display found.
func (e *Exhibitor) onScreenshotRequested(p bus.ScreenshotRequested) {
	d, ok := e.displays[p.OutputID]
	if !ok && p.OutputID == 0 {
		for _, any := range e.displays {
			d, ok = any, true
			break
		}
	}
	if !ok {
		e.publishScreenshotReady(p.RequestID, bus.ScreenshotReady{RequestID: p.RequestID, Err: fmt.Sprintf("unknown output %d", p.OutputID)})
		return
	}
	pixels, width, height := d.Output.Screenshot()
	e.publishScreenshotReady(p.RequestID, bus.ScreenshotReady{RequestID: p.RequestID, Pixels: pixels, Width: width, Height: height})
}

func (e *Exhibitor) publishScreenshotReady(requestID uint64, ready bus.ScreenshotReady) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(ready); err != nil {
		e.logger.Warn("publish screenshot ready failed", "request_id", requestID, "err", err)
	}
}

func (e *Exhibitor) onSurfaceReady(p bus.SurfaceReady) {
	s, ok := e.coord.GetSurface(p.Surface)
	if !ok {
		return
	}
	for _, d := range e.displays {
		d.Layout.Add(s)
	}
}

func (e *Exhibitor) onSurfaceDestroyed(p bus.SurfaceDestroyed) {
	for _, d := range e.displays {
		d.Layout.Remove(p.Surface)
	}
	if focused, ok := e.pointer.Focused(); ok && focused == p.Surface {
		e.pointer.ClearFocus()
		e.applyFocusChange(FocusChange{Old: p.Surface, HasOld: true, Changed: true})
	}
}

func (e *Exhibitor) onPointerMotion(p bus.PointerMotion) {
	e.applyFocusChange(e.pointer.Move(p.DX, p.DY, e.displays, e.coord.GetSurface))
	x, y := e.pointer.Position()
	e.coord.SetPointerPosition(x, y)
	e.requestRedraw()
}

func (e *Exhibitor) onPointerPosition(p bus.PointerPosition) {
	e.applyFocusChange(e.pointer.Warp(p.X, p.Y, e.displays, e.coord.GetSurface))
	x, y := e.pointer.Position()
	e.coord.SetPointerPosition(x, y)
	e.requestRedraw()
}

// applyFocusChange records a pointer-focus transition with the
// coordinator and publishes it for the Wayland engine to route
// leave/enter (§4.6). Keyboard focus follows pointer focus: moving
// onto a new surface activates it for input immediately, the same
// focus-follows-mouse policy many minimal compositors default to.
func (e *Exhibitor) applyFocusChange(fc FocusChange) {
	if !fc.Changed {
		return
	}
	e.coord.SetPointerFocus(fc.New, fc.HasNew)
	if e.pub != nil {
		x, y := e.pointer.Position()
		if err := e.pub.Publish(bus.PointerFocusChanged{Old: fc.Old, New: fc.New, HasOld: fc.HasOld, HasNew: fc.HasNew, X: x, Y: y}); err != nil {
			e.logger.Warn("publish pointer focus changed failed", "err", err)
		}
	}
	e.applyKeyboardFocus(fc)
}

func (e *Exhibitor) applyKeyboardFocus(fc FocusChange) {
	oldKb, hadKb := e.coord.GetKeyboardFocusedSurface()
	if hadKb == fc.HasNew && (!hadKb || oldKb == fc.New) {
		return
	}
	e.coord.SetKeyboardFocus(fc.New, fc.HasNew)
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(bus.KeyboardFocusChanged{Old: oldKb, New: fc.New, HasOld: hadKb, HasNew: fc.HasNew}); err != nil {
		e.logger.Warn("publish keyboard focus changed failed", "err", err)
	}
	if hadKb {
		e.publishReconfigure(oldKb)
	}
	if fc.HasNew {
		e.publishReconfigure(fc.New)
	}
}

func (e *Exhibitor) publishReconfigure(surface types.SurfaceID) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(bus.SurfaceReconfigured{Surface: surface}); err != nil {
		e.logger.Warn("publish surface reconfigured failed", "surface", surface, "err", err)
	}
}

func (e *Exhibitor) onPointerButton(p bus.PointerButton) {
	e.pointer.Button(p.Button, p.Value)
	e.requestRedraw()
}

func (e *Exhibitor) onPointerReset() {
	e.pointer.ClearFocus()
	e.requestRedraw()
}

func (e *Exhibitor) onNotify() {
	for id, d := range e.displays {
		if err := e.redraw(d); err != nil {
			e.logger.Warn("redraw failed", "output_id", id, "err", err)
		}
	}
}

func (e *Exhibitor) requestRedraw() {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(bus.Notify{}); err != nil {
		e.logger.Warn("publish redraw notify failed", "err", err)
	}
}

func (e *Exhibitor) redraw(d *Display) error {
	under, main, over := d.Layout.Lists()
	var cursor *SurfaceContext
	if cs, ok := e.pointer.CursorSurface(); ok {
		if s, ok := e.coord.GetSurface(cs); ok {
			cursor = &SurfaceContext{Surface: cs, OffsetX: s.OffsetX, OffsetY: s.OffsetY}
		}
	}

	pixels := func(id types.SurfaceID) ([]byte, int, int, int, bool) {
		s, ok := e.coord.GetSurface(id)
		if !ok || !s.HasView {
			return nil, 0, 0, 0, false
		}
		view, data, err := e.coord.View(s.View)
		if err != nil {
			return nil, 0, 0, 0, false
		}
		return data, view.Width, view.Height, view.Stride, true
	}

	underCtx, mainCtx, overCtx := e.toContexts(under), e.toContexts(main), e.toContexts(over)
	if err := d.Output.Draw(underCtx, mainCtx, overCtx, cursor, pixels); err != nil {
		return fmt.Errorf("draw output %d: %w", d.Output.ID(), err)
	}

	e.publishFrames(underCtx, mainCtx, overCtx)
	if cursor != nil {
		e.publishFrame(cursor.Surface)
	}
	return nil
}

// publishFrames emits one SurfaceFrame per composited surface, so
// each owning client's proxy can complete its one-shot frame callback
// (§4.7 on_surface_frame).
func (e *Exhibitor) publishFrames(layers ...[]SurfaceContext) {
	for _, layer := range layers {
		for _, ctx := range layer {
			e.publishFrame(ctx.Surface)
		}
	}
}

func (e *Exhibitor) publishFrame(id types.SurfaceID) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(bus.SurfaceFrame{Surface: id, TimeMs: uint32(time.Now().UnixMilli())}); err != nil {
		e.logger.Warn("publish surface frame failed", "surface", id, "err", err)
	}
}

func (e *Exhibitor) toContexts(ids []types.SurfaceID) []SurfaceContext {
	ctxs := make([]SurfaceContext, 0, len(ids))
	for _, id := range ids {
		s, ok := e.coord.GetSurface(id)
		if !ok {
			continue
		}
		ctxs = append(ctxs, SurfaceContext{Surface: s.ID, OffsetX: s.OffsetX, OffsetY: s.OffsetY})
	}
	return ctxs
}
