// Package wlproxy implements the per-client Wayland protocol state
// described in §4.7: the object registry, surface and buffer
// bookkeeping, and the facade/gateway operations the engine and the
// rest of the core drive it through.
package wlproxy

import (
	"fmt"
	"sync"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/coordinator"
	"github.com/driftwm/drift/internal/errs"
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wire"
)

// Sender is the subset of *wire.Conn the proxy needs: enough to emit
// framed events. Tests supply a recording fake instead of a real
// socket.
type Sender interface {
	Send(msg *wire.Message) error
}

// Mediator is the shared surface id -> client id table (§4.6, §4.8
// "Cyclic references": keyed through opaque identifiers, never a
// back-reference to the proxy).
type Mediator interface {
	Bind(surface types.SurfaceID, client types.ClientID)
	Unbind(surface types.SurfaceID)
}

// Gateway is how the proxy reaches engine-owned state it doesn't hold
// itself: a weston_screenshooter shoot request needs the exhibitor's
// output frame buffer, which lives on the other side of the signal
// bus (§12 screenshooter wiring).
type Gateway interface {
	RequestScreenshot(client types.ClientID, screenshooterObj, bufferObj types.ObjectID)
}

type objectRole int

const (
	roleNone objectRole = iota
	roleRegistry
	roleGlobal // a bound global instance: wl_compositor, wl_shm, wl_shell, wl_seat, zxdg_shell_v6, wl_subcompositor, weston_screenshooter, zwp_linux_dmabuf_v1, wl_drm, wl_output
	roleSurface
	roleRegion
	roleShmPool
	roleBuffer
	rolePointer
	roleKeyboard
	roleShellSurface
	roleXdgSurface
	roleXdgToplevel
	roleSubsurface
)

type objectEntry struct {
	role objectRole
	// iface is set for roleGlobal, naming which global was bound.
	iface string
	// surface is set for roleSurface, roleShellSurface, roleXdgSurface,
	// roleXdgToplevel: the canonical surface id the object belongs to.
	surface types.SurfaceID
}

// Proxy holds the complete Wayland state for one client (§4.7).
type Proxy struct {
	mu sync.Mutex

	client   types.ClientID
	conn     Sender
	coord    *coordinator.Coordinator
	mediator Mediator
	gateway  Gateway

	objects map[types.ObjectID]*objectEntry

	globalSeq        types.Monotonic
	globals          []types.Global
	outputGeometries map[types.GlobalName]types.OutputGeometry

	regions map[types.ObjectID]*Rectangle
	pools   map[types.ObjectID]types.MemoryPoolID
	buffers map[types.ObjectID]types.BufferInfo

	surfaceObjToID map[types.ObjectID]types.SurfaceID
	surfaces       map[types.SurfaceID]*types.SurfaceInfo

	nextSerial uint32

	hasModifiers bool
	modifiers    bus.KeyboardModifiers
}

// NewProxy allocates an empty client protocol state. The mandatory
// wl_display object is implicit: object id 1 is always routed to the
// display handlers without ever being registered in objects.
func NewProxy(client types.ClientID, conn Sender, coord *coordinator.Coordinator, mediator Mediator, gateway Gateway) *Proxy {
	return &Proxy{
		client:           client,
		conn:             conn,
		coord:            coord,
		mediator:         mediator,
		gateway:          gateway,
		objects:          make(map[types.ObjectID]*objectEntry),
		outputGeometries: make(map[types.GlobalName]types.OutputGeometry),
		regions:        make(map[types.ObjectID]*Rectangle),
		pools:          make(map[types.ObjectID]types.MemoryPoolID),
		buffers:        make(map[types.ObjectID]types.BufferInfo),
		surfaceObjToID: make(map[types.ObjectID]types.SurfaceID),
		surfaces:       make(map[types.SurfaceID]*types.SurfaceInfo),
	}
}

// RegisterGlobal appends a global to this client's advertisement list
// (§4.6 "register every known protocol global with the proxy in a
// fixed order"). Advertisement happens lazily, the first time the
// client requests wl_registry — but order is fixed at registration
// time regardless of when the registry request arrives (§3 Global,
// §8 property 4).
func (p *Proxy) RegisterGlobal(iface string, version uint32) types.Global {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := types.Global{Name: types.GlobalName(p.globalSeq.Next()), Interface: iface, Version: version}
	p.globals = append(p.globals, g)
	return g
}

// RegisterOutputGlobal registers one wl_output global carrying the
// geometry to report once a client binds it (§4.6 "one output global
// per known output in discovery order").
func (p *Proxy) RegisterOutputGlobal(geom types.OutputGeometry) types.Global {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := types.Global{Name: types.GlobalName(p.globalSeq.Next()), Interface: ifaceOutput, Version: 2}
	p.globals = append(p.globals, g)
	p.outputGeometries[g.Name] = geom
	return g
}

// Client returns the client id this proxy belongs to.
func (p *Proxy) Client() types.ClientID { return p.client }

func (p *Proxy) nextWireSerial() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSerial++
	return p.nextSerial
}

func (p *Proxy) livePointerObjects() []types.ObjectID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []types.ObjectID
	for id, e := range p.objects {
		if e.role == rolePointer {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *Proxy) liveKeyboardObjects() []types.ObjectID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []types.ObjectID
	for id, e := range p.objects {
		if e.role == roleKeyboard {
			ids = append(ids, id)
		}
	}
	return ids
}

// Dispatch decodes and routes one incoming request. Errors are
// protocol errors: the engine logs them and the connection is torn
// down (§4.6 "log and continue on protocol error" per-message, but a
// malformed request on an unknown object is client-fatal, §7).
func (p *Proxy) Dispatch(msg *wire.Message) error {
	args := wire.NewDecoder(msg.Args)
	args.Reset(msg.Args, msg.FDs)

	if msg.ObjectID == wire.ObjectID(displayObjectID) {
		return p.dispatchDisplay(msg.Opcode, args)
	}

	p.mu.Lock()
	entry, ok := p.objects[types.ObjectID(msg.ObjectID)]
	p.mu.Unlock()
	if !ok {
		return &errs.ClientFatal{ClientID: uint32(p.client), Cause: fmt.Errorf("request on unknown object %d", msg.ObjectID)}
	}

	switch entry.role {
	case roleRegistry:
		return p.dispatchRegistry(msg.Opcode, args)
	case roleGlobal:
		return p.dispatchGlobal(types.ObjectID(msg.ObjectID), entry.iface, msg.Opcode, args)
	case roleSurface:
		return p.dispatchSurface(types.ObjectID(msg.ObjectID), entry.surface, msg.Opcode, args)
	case roleRegion:
		return p.dispatchRegion(types.ObjectID(msg.ObjectID), msg.Opcode, args)
	case roleShmPool:
		return p.dispatchShmPool(types.ObjectID(msg.ObjectID), msg.Opcode, args)
	case roleBuffer:
		return p.dispatchBuffer(types.ObjectID(msg.ObjectID), msg.Opcode)
	case rolePointer:
		return p.dispatchPointer(types.ObjectID(msg.ObjectID), msg.Opcode, args)
	case roleKeyboard:
		return p.dispatchKeyboard(types.ObjectID(msg.ObjectID), msg.Opcode)
	case roleShellSurface:
		return p.dispatchShellSurface(types.ObjectID(msg.ObjectID), entry.surface, msg.Opcode, args)
	case roleXdgSurface:
		return p.dispatchXdgSurface(types.ObjectID(msg.ObjectID), entry.surface, msg.Opcode, args)
	case roleXdgToplevel:
		return p.dispatchXdgToplevel(types.ObjectID(msg.ObjectID), entry.surface, msg.Opcode)
	case roleSubsurface:
		return p.dispatchSubsurface(types.ObjectID(msg.ObjectID), entry.surface, msg.Opcode, args)
	default:
		return &errs.ClientFatal{ClientID: uint32(p.client), Cause: fmt.Errorf("object %d has no role", msg.ObjectID)}
	}
}

// Close is the destructor (§4.7 "Destructor"): destroy every owned
// memory pool and surface, removing each from the mediator. Called by
// the engine on client hang-up.
func (p *Proxy) Close() {
	p.mu.Lock()
	surfaces := make([]types.SurfaceID, 0, len(p.surfaces))
	for sid := range p.surfaces {
		surfaces = append(surfaces, sid)
	}
	pools := make([]types.MemoryPoolID, 0, len(p.pools))
	for _, pid := range p.pools {
		pools = append(pools, pid)
	}
	p.mu.Unlock()

	for _, sid := range surfaces {
		p.coord.DestroySurface(sid)
		p.mediator.Unbind(sid)
	}
	for _, pid := range pools {
		_ = p.coord.DestroyPool(pid)
	}

	p.mu.Lock()
	p.surfaces = make(map[types.SurfaceID]*types.SurfaceInfo)
	p.surfaceObjToID = make(map[types.ObjectID]types.SurfaceID)
	p.pools = make(map[types.ObjectID]types.MemoryPoolID)
	p.objects = make(map[types.ObjectID]*objectEntry)
	p.mu.Unlock()
}

func towire(id types.ObjectID) wire.ObjectID { return wire.ObjectID(id) }
