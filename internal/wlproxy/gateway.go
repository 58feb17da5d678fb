package wlproxy

import (
	"encoding/binary"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wire"
)

// OnKeyboardInput emits wl_keyboard.key to every live keyboard object,
// and wl_keyboard.modifiers if the mask changed since the last call
// (§4.7 on_keyboard_input).
func (p *Proxy) OnKeyboardInput(keycode uint32, pressed bool, mods bus.KeyboardModifiers) error {
	state := keyStateReleased
	if pressed {
		state = keyStatePressed
	}
	for _, obj := range p.liveKeyboardObjects() {
		serial := p.nextWireSerial()
		msg := wire.NewMessageBuilder().
			PutUint32(serial).
			PutUint32(0).
			PutUint32(keycode).
			PutUint32(state).
			BuildMessage(towire(obj), keyboardEventKey)
		if err := p.conn.Send(msg); err != nil {
			return err
		}
	}

	p.mu.Lock()
	changed := !p.hasModifiers || p.modifiers != mods
	p.hasModifiers = true
	p.modifiers = mods
	p.mu.Unlock()
	if !changed {
		return nil
	}
	for _, obj := range p.liveKeyboardObjects() {
		serial := p.nextWireSerial()
		msg := wire.NewMessageBuilder().
			PutUint32(serial).
			PutUint32(mods.Depressed).
			PutUint32(mods.Latched).
			PutUint32(mods.Locked).
			PutUint32(mods.Group).
			BuildMessage(towire(obj), keyboardEventModifiers)
		if err := p.conn.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// OnSurfaceFrame completes a surface's one-shot frame callback and
// releases whatever buffer is still held, exactly once each (§4.7
// on_surface_frame, §8 properties 5 and 6). A no-op if the surface is
// gone or has no outstanding callback.
func (p *Proxy) OnSurfaceFrame(surface types.SurfaceID, timeMs uint32) error {
	p.mu.Lock()
	info, ok := p.surfaces[surface]
	if !ok || !info.HasFrame {
		p.mu.Unlock()
		return nil
	}
	frameObj := info.FrameObj
	info.HasFrame = false

	var releaseObj types.ObjectID
	needRelease := info.HasHeldBuffer
	if needRelease {
		releaseObj = info.HeldBufferObj
		info.HasHeldBuffer = false
	}
	p.mu.Unlock()

	if err := p.sendCallbackDone(frameObj, timeMs); err != nil {
		return err
	}
	if err := p.sendDeleteID(frameObj); err != nil {
		return err
	}
	if needRelease {
		return p.sendBufferRelease(releaseObj)
	}
	return nil
}

// OnPointerFocusChanged emits leave for the old focused surface (if
// any) then enter for the new one (if any) to every live pointer
// object. The engine calls this once per affected client: with only
// hasOld set when this client lost focus to another client, only
// hasNew set when it gained focus from another client, or both set
// when focus moved between two surfaces the same client owns (§4.6,
// §4.7 on_pointer_focus_changed, §8 property 7).
func (p *Proxy) OnPointerFocusChanged(old, newer types.SurfaceID, hasOld, hasNew bool, x, y float64) error {
	objs := p.livePointerObjects()

	if hasOld {
		p.mu.Lock()
		oldInfo, ok := p.surfaces[old]
		p.mu.Unlock()
		if ok {
			for _, obj := range objs {
				serial := p.nextWireSerial()
				msg := wire.NewMessageBuilder().
					PutUint32(serial).
					PutObject(towire(oldInfo.SurfaceObj)).
					BuildMessage(towire(obj), pointerEventLeave)
				if err := p.conn.Send(msg); err != nil {
					return err
				}
			}
		}
	}

	if hasNew {
		p.mu.Lock()
		newInfo, ok := p.surfaces[newer]
		p.mu.Unlock()
		if ok {
			fx, fy := wire.FixedFromFloat(x), wire.FixedFromFloat(y)
			for _, obj := range objs {
				serial := p.nextWireSerial()
				msg := wire.NewMessageBuilder().
					PutUint32(serial).
					PutObject(towire(newInfo.SurfaceObj)).
					PutFixed(fx).
					PutFixed(fy).
					BuildMessage(towire(obj), pointerEventEnter)
				if err := p.conn.Send(msg); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// OnPointerRelativeMotion emits wl_pointer.motion with coordinates
// already relative to the focused surface (§4.7 on_pointer_relative_motion).
func (p *Proxy) OnPointerRelativeMotion(x, y float64) error {
	fx, fy := wire.FixedFromFloat(x), wire.FixedFromFloat(y)
	for _, obj := range p.livePointerObjects() {
		msg := wire.NewMessageBuilder().
			PutUint32(0).
			PutFixed(fx).
			PutFixed(fy).
			BuildMessage(towire(obj), pointerEventMotion)
		if err := p.conn.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// OnPointerButton emits wl_pointer.button, pressed/released derived
// from value == 0 (§4.7 on_pointer_button).
func (p *Proxy) OnPointerButton(button, value uint32) error {
	state := pointerButtonStateReleased
	if value != 0 {
		state = pointerButtonStatePressed
	}
	for _, obj := range p.livePointerObjects() {
		serial := p.nextWireSerial()
		msg := wire.NewMessageBuilder().
			PutUint32(serial).
			PutUint32(0).
			PutUint32(button).
			PutUint32(state).
			BuildMessage(towire(obj), pointerEventButton)
		if err := p.conn.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// OnKeyboardFocusChanged emits leave/enter to every live keyboard
// object (§4.7 on_keyboard_focus_changed). The reconfigure it
// triggers is a separate bus signal the exhibitor publishes for both
// surfaces, consumed through OnSurfaceReconfigured.
func (p *Proxy) OnKeyboardFocusChanged(old, newer types.SurfaceID, hasOld, hasNew bool) error {
	objs := p.liveKeyboardObjects()

	if hasOld {
		p.mu.Lock()
		oldInfo, ok := p.surfaces[old]
		p.mu.Unlock()
		if ok {
			for _, obj := range objs {
				serial := p.nextWireSerial()
				msg := wire.NewMessageBuilder().
					PutUint32(serial).
					PutObject(towire(oldInfo.SurfaceObj)).
					BuildMessage(towire(obj), keyboardEventLeave)
				if err := p.conn.Send(msg); err != nil {
					return err
				}
			}
		}
	}

	if hasNew {
		p.mu.Lock()
		newInfo, ok := p.surfaces[newer]
		p.mu.Unlock()
		if ok {
			for _, obj := range objs {
				serial := p.nextWireSerial()
				msg := wire.NewMessageBuilder().
					PutUint32(serial).
					PutObject(towire(newInfo.SurfaceObj)).
					PutArray(nil).
					BuildMessage(towire(obj), keyboardEventEnter)
				if err := p.conn.Send(msg); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// OnSurfaceReconfigured emits the shell-appropriate configure
// sequence: for classic shell a single configure(NONE, w, h); for
// xdg v6 a toplevel.configure carrying MAXIMIZED/ACTIVATED as they
// apply, followed by xdg_surface.configure(serial) (§4.7
// on_surface_reconfigured). No-op if the surface has no shell binding
// yet, or is already gone.
func (p *Proxy) OnSurfaceReconfigured(surface types.SurfaceID) error {
	p.mu.Lock()
	info, ok := p.surfaces[surface]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	shell := info.Shell
	shellObj := info.ShellObj
	xdgSurfaceObj := info.XdgSurfaceObj
	hasXdgSurface := info.HasXdgSurface
	p.mu.Unlock()

	s, ok := p.coord.GetSurface(surface)
	if !ok {
		return nil
	}
	w, h := s.DesiredW, s.DesiredH

	focused, hasFocus := p.coord.GetKeyboardFocusedSurface()
	activated := hasFocus && focused == surface
	maximized := s.State&types.StateMaximized != 0

	switch shell {
	case types.ShellClassic:
		msg := wire.NewMessageBuilder().
			PutUint32(shellSurfaceResizeNone).
			PutInt32(w).
			PutInt32(h).
			BuildMessage(towire(shellObj), shellSurfaceEventConfigure)
		return p.conn.Send(msg)
	case types.ShellXDGToplevel:
		if !hasXdgSurface {
			return nil
		}
		var states []byte
		if maximized {
			states = binary.LittleEndian.AppendUint32(states, xdgToplevelStateMaximized)
		}
		if activated {
			states = binary.LittleEndian.AppendUint32(states, xdgToplevelStateActivated)
		}
		toplevelMsg := wire.NewMessageBuilder().
			PutInt32(w).
			PutInt32(h).
			PutArray(states).
			BuildMessage(towire(shellObj), xdgToplevelEventConfigure)
		if err := p.conn.Send(toplevelMsg); err != nil {
			return err
		}
		serial := p.nextWireSerial()
		surfaceMsg := wire.NewMessageBuilder().
			PutUint32(serial).
			BuildMessage(towire(xdgSurfaceObj), xdgSurfaceEventConfigure)
		return p.conn.Send(surfaceMsg)
	default:
		return nil
	}
}

// OnScreenshotReady copies a captured frame into the buffer the
// client passed to weston_screenshooter.shoot and emits done (§12
// screenshooter wiring). pixels is tightly packed RGBA; width/height
// come from the captured output, not the client's buffer, so a
// mismatched buffer is simply truncated to whichever is smaller.
func (p *Proxy) OnScreenshotReady(screenshooterObj, bufferObj types.ObjectID, pixels []byte, width, height int) error {
	p.mu.Lock()
	info, known := p.buffers[bufferObj]
	p.mu.Unlock()
	if known {
		view, data, err := p.coord.View(info.View)
		if err == nil {
			copyFrame(data, view.Stride, pixels, width*4, width, height, view.Height)
		}
	}
	msg := wire.NewMessageBuilder().BuildMessage(towire(screenshooterObj), screenshooterEventDone)
	return p.conn.Send(msg)
}

// copyFrame copies min(srcHeight, dstHeight) rows of min(srcStride,
// dstStride) bytes each, row by row, since the destination buffer's
// stride rarely matches the captured frame's.
func copyFrame(dst []byte, dstStride int, src []byte, srcStride, width, height, dstHeight int) {
	rows := height
	if dstHeight < rows {
		rows = dstHeight
	}
	rowBytes := srcStride
	if dstStride < rowBytes {
		rowBytes = dstStride
	}
	for row := 0; row < rows; row++ {
		so, do := row*srcStride, row*dstStride
		if so+rowBytes > len(src) || do+rowBytes > len(dst) {
			break
		}
		copy(dst[do:do+rowBytes], src[so:so+rowBytes])
	}
}
