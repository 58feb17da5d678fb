package bus

// SignalID identifies a class of broadcast package on the bus (§4.1).
// Modules subscribe to the union of signal ids their Signals() method
// returns; the event loop maintains signal id -> subscribed module
// list.
type SignalID uint32

// The signal ids the compositor core ever publishes. Device and
// output discovery, page-flip completion, surface lifecycle, and
// pointer/keyboard routing each get their own id so a module can
// subscribe to exactly the packages it cares about.
const (
	SignalDeviceEvent SignalID = iota + 1
	SignalOutputFound
	SignalPageFlip
	SignalSurfaceReady
	SignalSurfaceDestroyed
	SignalPointerMotion
	SignalPointerPosition
	SignalPointerButton
	SignalPointerReset
	SignalKeyboardInput
	SignalKeyboardFocusChanged
	SignalPointerFocusChanged
	SignalSurfaceFrame
	SignalSurfaceReconfigured
	SignalNotify
	SignalScreenshotRequested
	SignalScreenshotReady
)

// Package is a typed payload broadcast on the bus. Every concrete
// package type names the signal id it is delivered under.
type Package interface {
	Signal() SignalID
}
