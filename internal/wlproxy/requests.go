package wlproxy

import (
	"fmt"

	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wire"
)

func (p *Proxy) dispatchDisplay(opcode wire.Opcode, args *wire.Decoder) error {
	switch opcode {
	case displayRequestSync:
		cb, err := args.NewID()
		if err != nil {
			return err
		}
		if err := p.sendCallbackDone(types.ObjectID(cb), 0); err != nil {
			return err
		}
		return p.sendDeleteID(types.ObjectID(cb))
	case displayRequestGetRegistry:
		reg, err := args.NewID()
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.objects[types.ObjectID(reg)] = &objectEntry{role: roleRegistry}
		globals := append([]types.Global(nil), p.globals...)
		p.mu.Unlock()
		for _, g := range globals {
			if err := p.sendGlobal(types.ObjectID(reg), g); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("wlproxy: wl_display: unknown opcode %d", opcode)
	}
}

func (p *Proxy) dispatchRegistry(opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != registryRequestBind {
		return fmt.Errorf("wlproxy: wl_registry: unknown opcode %d", opcode)
	}
	name, err := args.Uint32()
	if err != nil {
		return err
	}
	iface, err := args.String()
	if err != nil {
		return err
	}
	if _, err := args.Uint32(); err != nil { // version, unused: we always bind at the version we advertised
		return err
	}
	newObj, err := args.NewID()
	if err != nil {
		return err
	}

	p.mu.Lock()
	var boundName types.GlobalName
	found := false
	for _, g := range p.globals {
		if uint32(g.Name) == name {
			found, boundName = true, g.Name
			break
		}
	}
	if !found {
		p.mu.Unlock()
		return fmt.Errorf("wlproxy: bind: unknown global name %d", name)
	}
	geom, isOutput := p.outputGeometries[boundName]
	p.objects[types.ObjectID(newObj)] = &objectEntry{role: roleGlobal, iface: iface}
	p.mu.Unlock()

	switch {
	case iface == ifaceOutput && isOutput:
		return p.sendOutputGeometry(types.ObjectID(newObj), geom)
	case iface == ifaceSeat:
		return p.sendSeatCapabilities(types.ObjectID(newObj))
	case iface == ifaceShm:
		return p.sendShmFormats(types.ObjectID(newObj))
	}
	return nil
}

func (p *Proxy) dispatchGlobal(obj types.ObjectID, iface string, opcode wire.Opcode, args *wire.Decoder) error {
	switch iface {
	case ifaceCompositor:
		return p.dispatchCompositor(opcode, args)
	case ifaceShm:
		return p.dispatchShm(opcode, args)
	case ifaceShell:
		return p.dispatchShell(opcode, args)
	case ifaceXdgShellV6:
		return p.dispatchXdgShell(opcode, args)
	case ifaceSeat:
		return p.dispatchSeat(opcode, args)
	case ifaceSubcompositor:
		return p.dispatchSubcompositor(opcode, args)
	case ifaceScreenshooter:
		return p.dispatchScreenshooter(obj, opcode, args)
	case ifaceLinuxDmabufV1, ifaceDrm, ifaceDataDeviceManager, ifaceOutput:
		// Advertised for capability negotiation only; no client of
		// this compositor core drives dmabuf import or mesa DRM auth
		// through requests.
		return nil
	default:
		return fmt.Errorf("wlproxy: unhandled global interface %q", iface)
	}
}

// dispatchScreenshooter handles weston_screenshooter.shoot(output,
// buffer) by asking the gateway for a capture; the result arrives
// asynchronously and completes through OnScreenshotReady (§12
// screenshooter wiring). The output argument selects nothing here:
// this compositor core tracks one composited frame stream, not a
// per-output one, so every shoot captures whichever output the
// gateway resolves.
func (p *Proxy) dispatchScreenshooter(obj types.ObjectID, opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != screenshooterRequestShoot {
		return fmt.Errorf("wlproxy: weston_screenshooter: unknown opcode %d", opcode)
	}
	if _, err := args.Object(); err != nil { // output, unused: see above
		return err
	}
	bufferObj, err := args.Object()
	if err != nil {
		return err
	}
	if p.gateway != nil {
		p.gateway.RequestScreenshot(p.client, obj, types.ObjectID(bufferObj))
	}
	return nil
}

func (p *Proxy) dispatchCompositor(opcode wire.Opcode, args *wire.Decoder) error {
	switch opcode {
	case compositorRequestCreateSurface:
		obj, err := args.NewID()
		if err != nil {
			return err
		}
		p.createSurface(types.ObjectID(obj))
		return nil
	case compositorRequestCreateRegion:
		obj, err := args.NewID()
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.objects[types.ObjectID(obj)] = &objectEntry{role: roleRegion}
		p.regions[types.ObjectID(obj)] = &Rectangle{}
		p.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("wlproxy: wl_compositor: unknown opcode %d", opcode)
	}
}

func (p *Proxy) dispatchShm(opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != shmRequestCreatePool {
		return fmt.Errorf("wlproxy: wl_shm: unknown opcode %d", opcode)
	}
	obj, err := args.NewID()
	if err != nil {
		return err
	}
	fd, err := args.FD()
	if err != nil {
		return err
	}
	size, err := args.Int32()
	if err != nil {
		return err
	}
	return p.createMemoryPool(types.ObjectID(obj), fd, size)
}

func (p *Proxy) dispatchShell(opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != shellRequestGetShellSurface {
		return fmt.Errorf("wlproxy: wl_shell: unknown opcode %d", opcode)
	}
	shellSurfaceObj, err := args.NewID()
	if err != nil {
		return err
	}
	surfaceObj, err := args.Object()
	if err != nil {
		return err
	}
	p.mu.Lock()
	sid, ok := p.surfaceObjToID[types.ObjectID(surfaceObj)]
	if ok {
		p.objects[types.ObjectID(shellSurfaceObj)] = &objectEntry{role: roleShellSurface, surface: sid}
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("wlproxy: get_shell_surface: unknown surface object %d", surfaceObj)
	}
	return nil
}

func (p *Proxy) dispatchXdgShell(opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != xdgShellRequestGetXdgSurface {
		return nil // destroy/create_positioner/pong: accepted, no-op
	}
	xdgSurfaceObj, err := args.NewID()
	if err != nil {
		return err
	}
	surfaceObj, err := args.Object()
	if err != nil {
		return err
	}
	p.mu.Lock()
	sid, ok := p.surfaceObjToID[types.ObjectID(surfaceObj)]
	if ok {
		p.objects[types.ObjectID(xdgSurfaceObj)] = &objectEntry{role: roleXdgSurface, surface: sid}
		if info := p.surfaces[sid]; info != nil {
			info.XdgSurfaceObj = types.ObjectID(xdgSurfaceObj)
			info.HasXdgSurface = true
		}
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("wlproxy: get_xdg_surface: unknown surface object %d", surfaceObj)
	}
	return nil
}

func (p *Proxy) dispatchSeat(opcode wire.Opcode, args *wire.Decoder) error {
	switch opcode {
	case seatRequestGetPointer:
		obj, err := args.NewID()
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.objects[types.ObjectID(obj)] = &objectEntry{role: rolePointer}
		p.mu.Unlock()
		return nil
	case seatRequestGetKeyboard:
		obj, err := args.NewID()
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.objects[types.ObjectID(obj)] = &objectEntry{role: roleKeyboard}
		p.mu.Unlock()
		return nil
	default:
		return nil // get_touch and similar: accepted, no touch support
	}
}

func (p *Proxy) dispatchSurface(obj types.ObjectID, sid types.SurfaceID, opcode wire.Opcode, args *wire.Decoder) error {
	switch opcode {
	case surfaceRequestDestroy:
		p.destroySurfaceObject(obj, sid)
		return nil
	case surfaceRequestAttach:
		bufObj, err := args.Object()
		if err != nil {
			return err
		}
		dx, err := args.Int32()
		if err != nil {
			return err
		}
		dy, err := args.Int32()
		if err != nil {
			return err
		}
		return p.attach(types.ObjectID(bufObj), sid, dx, dy)
	case surfaceRequestDamage:
		return nil // damage tracking not modeled: every commit redraws in full
	case surfaceRequestFrame:
		cb, err := args.NewID()
		if err != nil {
			return err
		}
		return p.setFrame(sid, types.ObjectID(cb))
	case surfaceRequestSetOpaqueRegion, surfaceRequestSetInputRegion:
		return nil // regions are bookkeeping only; composition never consults them
	case surfaceRequestCommit:
		return p.commit(sid)
	default:
		return fmt.Errorf("wlproxy: wl_surface: unknown opcode %d", opcode)
	}
}

func (p *Proxy) dispatchRegion(obj types.ObjectID, opcode wire.Opcode, args *wire.Decoder) error {
	switch opcode {
	case regionRequestDestroy:
		p.mu.Lock()
		delete(p.regions, obj)
		delete(p.objects, obj)
		p.mu.Unlock()
		return nil
	case regionRequestAdd:
		x, err := args.Int32()
		if err != nil {
			return err
		}
		y, err := args.Int32()
		if err != nil {
			return err
		}
		w, err := args.Int32()
		if err != nil {
			return err
		}
		h, err := args.Int32()
		if err != nil {
			return err
		}
		p.mu.Lock()
		if r, ok := p.regions[obj]; ok {
			*r = Rectangle{X: x, Y: y, W: w, H: h}
		}
		p.mu.Unlock()
		return nil
	case regionRequestSubtract:
		return nil // last add wins; subtract has no effect
	default:
		return fmt.Errorf("wlproxy: wl_region: unknown opcode %d", opcode)
	}
}

func (p *Proxy) dispatchShmPool(obj types.ObjectID, opcode wire.Opcode, args *wire.Decoder) error {
	switch opcode {
	case shmPoolRequestCreateBuffer:
		bufObj, err := args.NewID()
		if err != nil {
			return err
		}
		offset, err := args.Int32()
		if err != nil {
			return err
		}
		w, err := args.Int32()
		if err != nil {
			return err
		}
		h, err := args.Int32()
		if err != nil {
			return err
		}
		stride, err := args.Int32()
		if err != nil {
			return err
		}
		if _, err := args.Uint32(); err != nil { // format: pools back onto raw bytes regardless
			return err
		}
		return p.createBuffer(obj, types.ObjectID(bufObj), int(offset), int(w), int(h), int(stride))
	case shmPoolRequestDestroy:
		p.mu.Lock()
		delete(p.pools, obj)
		delete(p.objects, obj)
		p.mu.Unlock()
		return nil
	case shmPoolRequestResize:
		return nil // resizing the backing mmap is not supported; existing views keep their bounds
	default:
		return fmt.Errorf("wlproxy: wl_shm_pool: unknown opcode %d", opcode)
	}
}

func (p *Proxy) dispatchBuffer(obj types.ObjectID, opcode wire.Opcode) error {
	if opcode != bufferRequestDestroy {
		return fmt.Errorf("wlproxy: wl_buffer: unknown opcode %d", opcode)
	}
	p.mu.Lock()
	delete(p.buffers, obj)
	delete(p.objects, obj)
	p.mu.Unlock()
	return nil
}

func (p *Proxy) dispatchPointer(obj types.ObjectID, opcode wire.Opcode, args *wire.Decoder) error {
	switch opcode {
	case pointerRequestSetCursor:
		if _, err := args.Uint32(); err != nil { // serial
			return err
		}
		surfaceObj, err := args.Object()
		if err != nil {
			return err
		}
		if _, err := args.Int32(); err != nil { // hotspot_x, unused: cursor hotspot not modeled
			return err
		}
		if _, err := args.Int32(); err != nil { // hotspot_y
			return err
		}
		if surfaceObj == 0 {
			return nil // unset cursor
		}
		p.mu.Lock()
		sid, ok := p.surfaceObjToID[types.ObjectID(surfaceObj)]
		p.mu.Unlock()
		if !ok {
			return fmt.Errorf("wlproxy: set_cursor: unknown surface object %d", surfaceObj)
		}
		return p.coord.SetAsCursor(sid)
	case pointerRequestRelease:
		p.mu.Lock()
		delete(p.objects, obj)
		p.mu.Unlock()
	}
	return nil
}

func (p *Proxy) dispatchKeyboard(obj types.ObjectID, opcode wire.Opcode) error {
	if opcode == keyboardRequestRelease {
		p.mu.Lock()
		delete(p.objects, obj)
		p.mu.Unlock()
	}
	return nil
}

func (p *Proxy) dispatchShellSurface(obj types.ObjectID, sid types.SurfaceID, opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != shellSurfaceRequestSetToplevel {
		return nil // pong/move/resize/set_title/set_class/...: accepted, no behavior modeled
	}
	p.mu.Lock()
	if info, ok := p.surfaces[sid]; ok {
		info.Shell = types.ShellClassic
		info.ShellObj = obj
	}
	p.mu.Unlock()
	return p.coord.Show(sid, types.ShellClassic, types.ShowReasonShell)
}

func (p *Proxy) dispatchXdgSurface(obj types.ObjectID, sid types.SurfaceID, opcode wire.Opcode, args *wire.Decoder) error {
	if opcode == xdgSurfaceRequestSetWindowGeometry {
		x, err := args.Int32()
		if err != nil {
			return err
		}
		y, err := args.Int32()
		if err != nil {
			return err
		}
		w, err := args.Int32()
		if err != nil {
			return err
		}
		h, err := args.Int32()
		if err != nil {
			return err
		}
		if err := p.coord.SetOffset(sid, x, y); err != nil {
			return err
		}
		return p.coord.SetRequestedSize(sid, w, h)
	}
	if opcode != xdgSurfaceRequestGetToplevel {
		return nil // destroy/get_popup/ack_configure: accepted, no-op
	}
	toplevelObj, err := args.NewID()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.objects[types.ObjectID(toplevelObj)] = &objectEntry{role: roleXdgToplevel, surface: sid}
	if info, ok := p.surfaces[sid]; ok {
		info.Shell = types.ShellXDGToplevel
		info.ShellObj = types.ObjectID(toplevelObj)
	}
	_ = obj
	p.mu.Unlock()
	return p.coord.Show(sid, types.ShellXDGToplevel, types.ShowReasonShell)
}

func (p *Proxy) dispatchXdgToplevel(obj types.ObjectID, sid types.SurfaceID, opcode wire.Opcode) error {
	_, _, _ = obj, sid, opcode
	return nil // destroy/set_title/set_app_id/...: accepted, no behavior modeled
}

func (p *Proxy) dispatchSubcompositor(opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != subcompositorRequestGetSubsurface {
		return nil // destroy: accepted, no-op
	}
	subsurfaceObj, err := args.NewID()
	if err != nil {
		return err
	}
	childObj, err := args.Object()
	if err != nil {
		return err
	}
	parentObj, err := args.Object()
	if err != nil {
		return err
	}
	p.mu.Lock()
	childSid, okChild := p.surfaceObjToID[types.ObjectID(childObj)]
	parentSid, okParent := p.surfaceObjToID[types.ObjectID(parentObj)]
	if okChild && okParent {
		p.objects[types.ObjectID(subsurfaceObj)] = &objectEntry{role: roleSubsurface, surface: childSid}
	}
	p.mu.Unlock()
	if !okChild {
		return fmt.Errorf("wlproxy: get_subsurface: unknown child surface object %d", childObj)
	}
	if !okParent {
		return fmt.Errorf("wlproxy: get_subsurface: unknown parent surface object %d", parentObj)
	}
	return p.coord.Relate(childSid, parentSid)
}

func (p *Proxy) dispatchSubsurface(obj types.ObjectID, sid types.SurfaceID, opcode wire.Opcode, args *wire.Decoder) error {
	if opcode != subsurfaceRequestSetPosition {
		return nil // destroy/place_above/place_below/set_sync/set_desync: accepted, no-op
	}
	x, err := args.Int32()
	if err != nil {
		return err
	}
	y, err := args.Int32()
	if err != nil {
		return err
	}
	_ = obj
	return p.coord.SetRelativePosition(sid, x, y)
}

func (p *Proxy) createSurface(surfaceObj types.ObjectID) {
	sid := p.coord.CreateSurface(p.client)
	p.mu.Lock()
	p.objects[surfaceObj] = &objectEntry{role: roleSurface, surface: sid}
	p.surfaceObjToID[surfaceObj] = sid
	p.surfaces[sid] = &types.SurfaceInfo{SurfaceObj: surfaceObj}
	p.mu.Unlock()
	p.mediator.Bind(sid, p.client)
}

func (p *Proxy) destroySurfaceObject(obj types.ObjectID, sid types.SurfaceID) {
	p.coord.DestroySurface(sid)
	p.mediator.Unbind(sid)
	p.mu.Lock()
	delete(p.objects, obj)
	delete(p.surfaceObjToID, obj)
	delete(p.surfaces, sid)
	p.mu.Unlock()
}

func (p *Proxy) createMemoryPool(poolObj types.ObjectID, fd int, size int32) error {
	dup, err := types.DupFD(fd)
	if err != nil {
		return err
	}
	pool, err := types.MapMemoryPool(0, dup, int(size))
	if err != nil {
		return err
	}
	id := p.coord.CreatePoolFromMemory(pool)
	p.mu.Lock()
	p.objects[poolObj] = &objectEntry{role: roleShmPool}
	p.pools[poolObj] = id
	p.mu.Unlock()
	return nil
}

func (p *Proxy) createBuffer(poolObj, bufObj types.ObjectID, offset, w, h, stride int) error {
	p.mu.Lock()
	poolID, ok := p.pools[poolObj]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("wlproxy: create buffer: unknown pool %d", poolObj)
	}
	view, err := p.coord.CreateView(poolID, offset, w, h, stride)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.objects[bufObj] = &objectEntry{role: roleBuffer}
	p.buffers[bufObj] = types.BufferInfo{View: view}
	p.mu.Unlock()
	return nil
}

// attach binds buffer bufObj to surface sid's pending state (§4.7
// attach), releasing any buffer still held from a prior commit that
// hasn't been released by a frame callback yet (§9 Buffer ownership,
// §8 property 6).
func (p *Proxy) attach(bufObj types.ObjectID, sid types.SurfaceID, dx, dy int32) error {
	p.mu.Lock()
	info, ok := p.surfaces[sid]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("wlproxy: attach: unknown surface %d", sid)
	}
	var releaseObj types.ObjectID
	needRelease := info.HasHeldBuffer
	if needRelease {
		releaseObj = info.HeldBufferObj
		info.HasHeldBuffer = false
	}
	if bufObj == 0 {
		info.HasBuffer = false
		p.mu.Unlock()
		if needRelease {
			return p.sendBufferRelease(releaseObj)
		}
		return nil
	}
	info.BufferObj = bufObj
	info.HasBuffer = true
	bufInfo, known := p.buffers[bufObj]
	p.mu.Unlock()

	if needRelease {
		if err := p.sendBufferRelease(releaseObj); err != nil {
			return err
		}
	}
	if !known {
		return fmt.Errorf("wlproxy: attach: unknown buffer object %d", bufObj)
	}
	return p.coord.Attach(sid, bufInfo.View, dx, dy)
}

// commit promotes the pending buffer to held (being read) and applies
// every other pending surface state (§4.7 commit).
func (p *Proxy) commit(sid types.SurfaceID) error {
	p.mu.Lock()
	info, ok := p.surfaces[sid]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("wlproxy: commit: unknown surface %d", sid)
	}
	if info.HasBuffer {
		info.HeldBufferObj = info.BufferObj
		info.HasHeldBuffer = true
		info.HasBuffer = false
	}
	p.mu.Unlock()
	_, _, err := p.coord.Commit(sid)
	return err
}

// setFrame registers a one-shot frame callback. §3 invariant: at most
// one outstanding frame callback per surface.
func (p *Proxy) setFrame(sid types.SurfaceID, cb types.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.surfaces[sid]
	if !ok {
		return fmt.Errorf("wlproxy: set frame: unknown surface %d", sid)
	}
	if info.HasFrame {
		return fmt.Errorf("wlproxy: set frame: surface %d already has an outstanding frame callback", sid)
	}
	info.FrameObj = cb
	info.HasFrame = true
	return nil
}

func (p *Proxy) sendCallbackDone(obj types.ObjectID, timeMs uint32) error {
	msg := wire.NewMessageBuilder().PutUint32(timeMs).BuildMessage(towire(obj), callbackEventDone)
	return p.conn.Send(msg)
}

func (p *Proxy) sendDeleteID(id types.ObjectID) error {
	msg := wire.NewMessageBuilder().PutUint32(uint32(id)).BuildMessage(displayObjectID, displayEventDeleteID)
	return p.conn.Send(msg)
}

func (p *Proxy) sendGlobal(registryObj types.ObjectID, g types.Global) error {
	msg := wire.NewMessageBuilder().
		PutUint32(uint32(g.Name)).
		PutString(g.Interface).
		PutUint32(g.Version).
		BuildMessage(towire(registryObj), registryEventGlobal)
	return p.conn.Send(msg)
}

func (p *Proxy) sendBufferRelease(obj types.ObjectID) error {
	msg := wire.NewMessageBuilder().BuildMessage(towire(obj), bufferEventRelease)
	return p.conn.Send(msg)
}

func (p *Proxy) sendSeatCapabilities(obj types.ObjectID) error {
	msg := wire.NewMessageBuilder().
		PutUint32(seatCapabilityPointer | seatCapabilityKeyboard).
		BuildMessage(towire(obj), seatEventCapabilities)
	return p.conn.Send(msg)
}

func (p *Proxy) sendShmFormats(obj types.ObjectID) error {
	for _, format := range []uint32{0, 1} { // ARGB8888, XRGB8888
		msg := wire.NewMessageBuilder().PutUint32(format).BuildMessage(towire(obj), shmEventFormat)
		if err := p.conn.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Proxy) sendOutputGeometry(obj types.ObjectID, geom types.OutputGeometry) error {
	geomMsg := wire.NewMessageBuilder().
		PutInt32(geom.X).
		PutInt32(geom.Y).
		PutInt32(geom.PhysicalWidthMM).
		PutInt32(geom.PhysicalHeightMM).
		PutInt32(0). // subpixel: unknown
		PutString("drift").
		PutString("drift-output").
		PutInt32(0). // transform: normal
		BuildMessage(towire(obj), outputEventGeometry)
	if err := p.conn.Send(geomMsg); err != nil {
		return err
	}

	modeMsg := wire.NewMessageBuilder().
		PutUint32(outputModeCurrent).
		PutInt32(int32(geom.Mode.Width)).
		PutInt32(int32(geom.Mode.Height)).
		PutInt32(int32(geom.Mode.Refresh)).
		BuildMessage(towire(obj), outputEventMode)
	if err := p.conn.Send(modeMsg); err != nil {
		return err
	}

	return p.conn.Send(wire.NewMessageBuilder().BuildMessage(towire(obj), outputEventDone))
}
