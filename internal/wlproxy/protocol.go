package wlproxy

import "github.com/driftwm/drift/internal/wire"

// Interface names, in the fixed order §4.6 registers them.
const (
	ifaceShm               = "wl_shm"
	ifaceCompositor        = "wl_compositor"
	ifaceShell             = "wl_shell"
	ifaceXdgShellV6        = "zxdg_shell_v6"
	ifaceDataDeviceManager = "wl_data_device_manager"
	ifaceSeat              = "wl_seat"
	ifaceSubcompositor     = "wl_subcompositor"
	ifaceScreenshooter     = "weston_screenshooter"
	ifaceLinuxDmabufV1     = "zwp_linux_dmabuf_v1"
	ifaceDrm               = "wl_drm"
	ifaceOutput            = "wl_output"
)

// displayObjectID is the one object every client is guaranteed to
// have: wl_display, bound at connection time, never through bind.
const displayObjectID = wire.ObjectID(1)

// wl_display
const (
	displayRequestSync        wire.Opcode = 0
	displayRequestGetRegistry wire.Opcode = 1

	displayEventError    wire.Opcode = 0
	displayEventDeleteID wire.Opcode = 1
)

// wl_registry
const (
	registryRequestBind wire.Opcode = 0

	registryEventGlobal       wire.Opcode = 0
	registryEventGlobalRemove wire.Opcode = 1
)

// wl_callback
const callbackEventDone wire.Opcode = 0

// wl_compositor
const (
	compositorRequestCreateSurface wire.Opcode = 0
	compositorRequestCreateRegion  wire.Opcode = 1
)

// wl_region
const (
	regionRequestDestroy  wire.Opcode = 0
	regionRequestAdd      wire.Opcode = 1
	regionRequestSubtract wire.Opcode = 2
)

// wl_surface
const (
	surfaceRequestDestroy         wire.Opcode = 0
	surfaceRequestAttach          wire.Opcode = 1
	surfaceRequestDamage          wire.Opcode = 2
	surfaceRequestFrame           wire.Opcode = 3
	surfaceRequestSetOpaqueRegion wire.Opcode = 4
	surfaceRequestSetInputRegion  wire.Opcode = 5
	surfaceRequestCommit          wire.Opcode = 6
)

// wl_shm
const (
	shmRequestCreatePool wire.Opcode = 0
	shmEventFormat       wire.Opcode = 0
)

// wl_shm_pool
const (
	shmPoolRequestCreateBuffer wire.Opcode = 0
	shmPoolRequestDestroy      wire.Opcode = 1
	shmPoolRequestResize       wire.Opcode = 2
)

// wl_buffer
const (
	bufferRequestDestroy wire.Opcode = 0
	bufferEventRelease   wire.Opcode = 0
)

// wl_shell
const shellRequestGetShellSurface wire.Opcode = 0

// wl_shell_surface
const (
	shellSurfaceRequestSetToplevel wire.Opcode = 3

	shellSurfaceEventPing      wire.Opcode = 0
	shellSurfaceEventConfigure wire.Opcode = 1
)

// shell_surface_configure edge mask; NONE is the only value the
// gateway ever sends (§4.7 "classic shell a single configure(NONE, w, h)").
const shellSurfaceResizeNone uint32 = 0

// wl_seat
const (
	seatRequestGetPointer  wire.Opcode = 0
	seatRequestGetKeyboard wire.Opcode = 1

	seatEventCapabilities wire.Opcode = 0
)

const seatCapabilityPointer uint32 = 1
const seatCapabilityKeyboard uint32 = 2

// wl_pointer
const (
	pointerRequestSetCursor wire.Opcode = 0
	pointerRequestRelease   wire.Opcode = 1

	pointerEventEnter  wire.Opcode = 0
	pointerEventLeave  wire.Opcode = 1
	pointerEventMotion wire.Opcode = 2
	pointerEventButton wire.Opcode = 3
)

const (
	pointerButtonStateReleased uint32 = 0
	pointerButtonStatePressed  uint32 = 1
)

// wl_keyboard
const (
	keyboardRequestRelease wire.Opcode = 0

	keyboardEventEnter     wire.Opcode = 1
	keyboardEventLeave     wire.Opcode = 2
	keyboardEventKey       wire.Opcode = 3
	keyboardEventModifiers wire.Opcode = 4
)

const (
	keyStateReleased uint32 = 0
	keyStatePressed  uint32 = 1
)

// wl_output
const (
	outputEventGeometry wire.Opcode = 0
	outputEventMode     wire.Opcode = 1
	outputEventDone     wire.Opcode = 2
)

const outputModeCurrent uint32 = 0x1

// zxdg_shell_v6
const (
	xdgShellRequestGetXdgSurface wire.Opcode = 2
)

// zxdg_surface_v6
const (
	xdgSurfaceRequestGetToplevel       wire.Opcode = 1
	xdgSurfaceRequestSetWindowGeometry wire.Opcode = 3

	xdgSurfaceEventConfigure wire.Opcode = 0
)

// zxdg_toplevel_v6
const (
	xdgToplevelEventConfigure wire.Opcode = 0
)

const (
	xdgToplevelStateMaximized uint32 = 1
	xdgToplevelStateActivated uint32 = 4
)

// wl_subcompositor
const subcompositorRequestGetSubsurface wire.Opcode = 1

// wl_subsurface
const (
	subsurfaceRequestSetPosition wire.Opcode = 1
)

// weston_screenshooter
const (
	screenshooterRequestShoot wire.Opcode = 0
	screenshooterEventDone    wire.Opcode = 0
)
