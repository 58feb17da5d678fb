package bus

import "github.com/driftwm/drift/internal/types"

// DeviceEvent is published by the device manager when an input or
// output node appears or disappears (§4.3).
type DeviceEvent struct {
	Added     bool
	InputPath string // empty when this is an output bundle instead
	Bundle    *types.DrmBundle
}

func (DeviceEvent) Signal() SignalID { return SignalDeviceEvent }

// OutputFound carries a freshly discovered DrmBundle to the exhibitor
// (§4.4 "Output found").
type OutputFound struct {
	Bundle types.DrmBundle
}

func (OutputFound) Signal() SignalID { return SignalOutputFound }

// PageFlip is published by the DRM event reader when a scheduled
// page-flip completes (§4.5).
type PageFlip struct {
	OutputID types.OutputID
}

func (PageFlip) Signal() SignalID { return SignalPageFlip }

// SurfaceReady is published when a surface becomes eligible for
// layout (mapped with a shell role) (§4.4 "Surface ready/destroyed").
type SurfaceReady struct {
	Surface types.SurfaceID
}

func (SurfaceReady) Signal() SignalID { return SignalSurfaceReady }

// SurfaceDestroyed is published when a surface is torn down.
type SurfaceDestroyed struct {
	Surface types.SurfaceID
}

func (SurfaceDestroyed) Signal() SignalID { return SignalSurfaceDestroyed }

// PointerMotion is a relative pointer movement (§4.4 "Pointer motion").
type PointerMotion struct {
	DX, DY float64
}

func (PointerMotion) Signal() SignalID { return SignalPointerMotion }

// PointerPosition is an absolute pointer warp.
type PointerPosition struct {
	X, Y float64
}

func (PointerPosition) Signal() SignalID { return SignalPointerPosition }

// PointerButton is a button press/release.
type PointerButton struct {
	Button uint32
	Value  uint32 // 0 == released, matches on_pointer_button semantics
}

func (PointerButton) Signal() SignalID { return SignalPointerButton }

// PointerReset asks the exhibitor to clear pointer focus (e.g. when a
// client holding focus disconnects).
type PointerReset struct{}

func (PointerReset) Signal() SignalID { return SignalPointerReset }

// KeyboardInput is a raw key event forwarded from the device manager.
type KeyboardInput struct {
	Keycode   uint32
	Pressed   bool
	Modifiers KeyboardModifiers
}

func (KeyboardInput) Signal() SignalID { return SignalKeyboardInput }

// KeyboardModifiers mirrors the depressed/latched/locked/effective
// masks wl_keyboard.modifiers carries (§4.7 on_keyboard_input).
type KeyboardModifiers struct {
	Depressed, Latched, Locked, Effective uint32
	Group                                 uint32
}

// KeyboardFocusChanged is published when the focused surface changes.
type KeyboardFocusChanged struct {
	Old      types.SurfaceID
	New      types.SurfaceID
	HasOld   bool
	HasNew   bool
}

func (KeyboardFocusChanged) Signal() SignalID { return SignalKeyboardFocusChanged }

// PointerFocusChanged is published when the exhibitor's pointer
// hit-test resolves to a different surface (§4.6 "on_pointer_focus_changed").
// X, Y are the pointer's current position, passed through verbatim to
// wl_pointer.enter.
type PointerFocusChanged struct {
	Old    types.SurfaceID
	New    types.SurfaceID
	HasOld bool
	HasNew bool
	X, Y   float64
}

func (PointerFocusChanged) Signal() SignalID { return SignalPointerFocusChanged }

// SurfaceFrame is published once per surface after a display finishes
// compositing a frame that included it, carrying the presentation
// time a client's frame callback reports (§4.7 on_surface_frame).
type SurfaceFrame struct {
	Surface types.SurfaceID
	TimeMs  uint32
}

func (SurfaceFrame) Signal() SignalID { return SignalSurfaceFrame }

// SurfaceReconfigured asks the owning client's proxy to emit a
// shell-appropriate configure sequence for one surface, e.g. after its
// maximized or activated state changes (§4.7 on_surface_reconfigured).
type SurfaceReconfigured struct {
	Surface types.SurfaceID
}

func (SurfaceReconfigured) Signal() SignalID { return SignalSurfaceReconfigured }

// Notify asks every display to redraw (§4.4 "Notify").
type Notify struct{}

func (Notify) Signal() SignalID { return SignalNotify }

// ScreenshotRequested asks the exhibitor to read back one output's
// last composited frame (§12 screenshooter wiring). RequestID
// correlates the reply; it has no meaning beyond this round trip.
type ScreenshotRequested struct {
	RequestID uint64
	OutputID  types.OutputID
}

func (ScreenshotRequested) Signal() SignalID { return SignalScreenshotRequested }

// ScreenshotReady answers a ScreenshotRequested with the captured
// frame as tightly packed RGBA, or Err set if the output no longer
// exists.
type ScreenshotReady struct {
	RequestID     uint64
	Pixels        []byte
	Width, Height int
	Err           string
}

func (ScreenshotReady) Signal() SignalID { return SignalScreenshotReady }
