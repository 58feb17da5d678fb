//go:build linux

// Package drmoutput implements exhibitor.Output against real DRM/KMS
// hardware: mode-setting through raw ioctls, scanout buffers through
// GBM, and compositing through an EGL-bound GLES2 context (§4.5).
package drmoutput

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/driftwm/drift/internal/exhibitor"
	"github.com/driftwm/drift/internal/types"
)

// pendingFlip is a scheduled-but-not-yet-completed page flip: the
// buffer it will present, and the deadline by which its completion
// event must arrive before Draw gives up on it (§10.2
// VsyncTimeoutMS).
type pendingFlip struct {
	bo       *gbmBufferObject
	deadline time.Time
}

// RendererConfig tunes page-flip pacing (§10.2): how long a scheduled
// flip may stay outstanding before it's treated as wedged hardware
// state, and how many flips may be queued ahead of their completion
// events.
type RendererConfig struct {
	VsyncTimeout     time.Duration
	MaxInFlightFlips int
}

// DrmOutput is one scanout output: a DRM device/connector/CRTC triple,
// its GBM buffer rotation, and the GL renderer compositing into it.
type DrmOutput struct {
	id     types.OutputID
	bundle types.DrmBundle

	mu      sync.Mutex
	file    *os.File
	gbm     *gbmDevice
	egl     *eglState
	gl      *glRenderer
	mode    types.Mode
	modeIdx int

	current *gbmBufferObject
	pending []pendingFlip
	fbIDs   map[uintptr]uint32 // GBM buffer-object pointer -> memoized DRM fb id, never evicted (§4.5)

	maxInFlight  int
	vsyncTimeout time.Duration

	lastFrame []byte
}

// NewDrmOutput is an exhibitor.OutputFactory (once bound to an rcfg by
// a closure): it runs the full construction sequence §4.5 describes —
// query modes, pick the first, open a GBM device sized to it, bind
// EGL, build the GL renderer, and program the CRTC once so the first
// Draw has somewhere to scan out.
func NewDrmOutput(id types.OutputID, bundle types.DrmBundle, rcfg RendererConfig) (exhibitor.Output, error) {
	if rcfg.VsyncTimeout <= 0 {
		rcfg.VsyncTimeout = 50 * time.Millisecond
	}
	if rcfg.MaxInFlightFlips <= 0 {
		rcfg.MaxInFlightFlips = 1
	}

	f, err := openDevice(bundle.Path)
	if err != nil {
		return nil, err
	}

	modes, err := queryModes(f, bundle.ConnectorID)
	if err != nil {
		f.Close()
		return nil, err
	}
	mode := modes[0]

	gbmDev, err := newGBMDevice(int32(f.Fd()), uint32(mode.Width), uint32(mode.Height))
	if err != nil {
		f.Close()
		return nil, err
	}

	egl, err := newEGLState(gbmDev)
	if err != nil {
		gbmDev.close()
		f.Close()
		return nil, err
	}

	gl, err := newGLRenderer()
	if err != nil {
		egl.close()
		gbmDev.close()
		f.Close()
		return nil, err
	}
	gl.setViewport(int32(mode.Width), int32(mode.Height))

	out := &DrmOutput{
		id:           id,
		bundle:       bundle,
		file:         f,
		gbm:          gbmDev,
		egl:          egl,
		gl:           gl,
		mode:         mode,
		modeIdx:      0,
		fbIDs:        make(map[uintptr]uint32),
		maxInFlight:  rcfg.MaxInFlightFlips,
		vsyncTimeout: rcfg.VsyncTimeout,
	}

	if err := out.presentInitialFrame(); err != nil {
		out.Close()
		return nil, err
	}

	return out, nil
}

// presentInitialFrame swaps once and programs the CRTC so the output
// has a live framebuffer before the first real Draw call.
func (o *DrmOutput) presentInitialFrame() error {
	o.gl.clear()
	if err := o.egl.swapBuffers(); err != nil {
		return err
	}
	bo, err := o.gbm.lockFrontBuffer()
	if err != nil {
		return err
	}
	fbID, err := o.fbFor(bo)
	if err != nil {
		o.gbm.releaseBuffer(bo)
		return err
	}
	if err := setCrtc(o.file, o.bundle.ConnectorID, o.bundle.CrtcID, fbID, o.modeIdx); err != nil {
		o.gbm.releaseBuffer(bo)
		return fmt.Errorf("initial setCrtc: %w", err)
	}
	o.current = bo
	return nil
}

// fbFor returns the memoized DRM framebuffer id for bo, keyed by its
// GBM buffer-object pointer and created from its GEM handle on first
// sight; entries are never evicted.
func (o *DrmOutput) fbFor(bo *gbmBufferObject) (uint32, error) {
	if id, ok := o.fbIDs[bo.handle]; ok {
		return id, nil
	}
	fbID, err := addFB(o.file, bo.width(), bo.height(), bo.stride(), bo.gemHandle())
	if err != nil {
		return 0, err
	}
	o.fbIDs[bo.handle] = fbID
	return fbID, nil
}

// ID implements exhibitor.Output.
func (o *DrmOutput) ID() types.OutputID { return o.id }

// Draw implements exhibitor.Output: composite under, main, over and
// cursor layers as textured quads, then rotate the GBM buffer and
// schedule a page flip (§12 "composite the three layers, cursor on
// top").
func (o *DrmOutput) Draw(under, main, over []exhibitor.SurfaceContext, cursor *exhibitor.SurfaceContext, pixels exhibitor.PixelAccessor) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.reapWedgedFlip()
	if len(o.pending) >= o.maxInFlight {
		return nil // in-flight cap reached; drop this frame (§4.5, §10.2 frame pacing)
	}

	if err := o.egl.makeCurrent(); err != nil {
		return err
	}
	o.gl.clear()

	for _, layer := range [][]exhibitor.SurfaceContext{under, main, over} {
		for _, ctx := range layer {
			o.drawOne(ctx, pixels)
		}
	}
	if cursor != nil {
		o.drawOne(*cursor, pixels)
	}

	o.lastFrame = o.gl.readPixels(o.mode.Width, o.mode.Height)

	if err := o.egl.swapBuffers(); err != nil {
		return fmt.Errorf("swap buffers: %w", err)
	}

	bo, err := o.gbm.lockFrontBuffer()
	if err != nil {
		return fmt.Errorf("lock front buffer: %w", err)
	}
	fbID, err := o.fbFor(bo)
	if err != nil {
		o.gbm.releaseBuffer(bo)
		return err
	}

	if err := schedulePageFlip(o.file, o.bundle.CrtcID, fbID, uint64(o.id)); err != nil {
		o.gbm.releaseBuffer(bo)
		return fmt.Errorf("schedule page flip: %w", err)
	}

	o.pending = append(o.pending, pendingFlip{bo: bo, deadline: time.Now().Add(o.vsyncTimeout)})
	return nil
}

// reapWedgedFlip drops the oldest in-flight page flip once its vsync
// timeout has elapsed without a completion event, reclaiming its
// buffer so a wedged display doesn't permanently pin the in-flight
// cap (§10.2 VsyncTimeoutMS).
func (o *DrmOutput) reapWedgedFlip() {
	if len(o.pending) == 0 {
		return
	}
	oldest := o.pending[0]
	if time.Now().Before(oldest.deadline) {
		return
	}
	o.gbm.releaseBuffer(oldest.bo)
	o.pending = o.pending[1:]
}

func (o *DrmOutput) drawOne(ctx exhibitor.SurfaceContext, pixels exhibitor.PixelAccessor) {
	data, width, height, _, ok := pixels(ctx.Surface)
	if !ok || width == 0 || height == 0 {
		return
	}
	x := (2*float32(ctx.OffsetX))/float32(o.mode.Width) - 1
	y := 1 - (2*float32(ctx.OffsetY))/float32(o.mode.Height) - 2*float32(height)/float32(o.mode.Height)
	w := 2 * float32(width) / float32(o.mode.Width)
	h := 2 * float32(height) / float32(o.mode.Height)

	o.gl.draw(quad{
		slot: uint32(ctx.Surface), x: x, y: y, w: w, h: h,
		pixels: data, width: width, height: height,
	})
}

// AdvancePageFlip implements exhibitor.Output: called when the
// dispatcher reads a page-flip-complete event for this output. It
// releases the previously scanned-out buffer back to GBM (§4.5 buffer
// rotation) and pops the oldest in-flight flip so Draw can schedule
// another once the cap allows it.
func (o *DrmOutput) AdvancePageFlip() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.pending) == 0 {
		return nil
	}
	flip := o.pending[0]
	o.pending = o.pending[1:]
	if o.current != nil {
		o.gbm.releaseBuffer(o.current)
	}
	o.current = flip.bo
	return nil
}

// Screenshot returns the last frame this output composited, packed
// RGBA top-to-bottom (§4.5 screenshooter wiring).
func (o *DrmOutput) Screenshot() (pixels []byte, width, height int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastFrame, o.mode.Width, o.mode.Height
}

// Close implements exhibitor.Output.
func (o *DrmOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.gbm.releaseBuffer(o.current)
		o.current = nil
	}
	for _, flip := range o.pending {
		o.gbm.releaseBuffer(flip.bo)
	}
	o.pending = nil
	o.egl.close()
	o.gbm.close()
	return o.file.Close()
}
