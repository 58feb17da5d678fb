package wlengine

import (
	"fmt"
	"time"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wlproxy"
)

// gatewayRecvTimeout mirrors the event loop's own non-fatal Timeout
// cadence (§9 "an implementer should choose to loop on Timeout").
const gatewayRecvTimeout = 2 * time.Second

var gatewaySignals = []bus.SignalID{
	bus.SignalOutputFound,
	bus.SignalKeyboardInput,
	bus.SignalKeyboardFocusChanged,
	bus.SignalPointerFocusChanged,
	bus.SignalPointerMotion,
	bus.SignalPointerButton,
	bus.SignalSurfaceFrame,
	bus.SignalSurfaceReconfigured,
	bus.SignalScreenshotReady,
}

// RunGateway drains gateway-relevant signals off the bus and routes
// them to the owning client's proxy (§4.6 "the engine implements the
// gateway interface"). Call in its own goroutine, alongside Run; the
// two share the client maps and mediator under Engine.mu.
func (e *Engine) RunGateway() error {
	recv, err := e.b.NewReceiver()
	if err != nil {
		return fmt.Errorf("create gateway receiver: %w", err)
	}
	defer recv.Close()

	for _, sig := range gatewaySignals {
		if err := recv.Subscribe(sig); err != nil {
			return fmt.Errorf("subscribe gateway signal %d: %w", sig, err)
		}
	}

	for {
		env := recv.Recv(gatewayRecvTimeout)
		switch env.Kind {
		case bus.KindDefined:
			e.dispatchGatewayPackage(env.Package)
		case bus.KindSpecial:
			if env.Command == bus.CommandTerminate {
				return nil
			}
		case bus.KindTimeout:
			continue
		case bus.KindEmpty, bus.KindErr:
			return fmt.Errorf("gateway receiver failed: kind=%v err=%v", env.Kind, env.Err)
		}
	}
}

func (e *Engine) dispatchGatewayPackage(pkg bus.Package) {
	switch p := pkg.(type) {
	case bus.OutputFound:
		e.onOutputFound(p)
	case bus.KeyboardInput:
		e.onKeyboardInput(p)
	case bus.KeyboardFocusChanged:
		e.onKeyboardFocusChanged(p)
	case bus.PointerFocusChanged:
		e.onPointerFocusChanged(p)
	case bus.PointerMotion:
		e.onPointerMotion(p)
	case bus.PointerButton:
		e.onPointerButton(p)
	case bus.SurfaceFrame:
		e.onSurfaceFrame(p)
	case bus.SurfaceReconfigured:
		e.onSurfaceReconfigured(p)
	case bus.ScreenshotReady:
		e.onScreenshotReady(p)
	}
}

// onOutputFound caches a default geometry for the newly discovered
// output so clients connecting afterward advertise a wl_output global
// for it. The exhibitor doesn't publish mode/physical-size details
// alongside OutputFound (only the coordinator is meant to cross
// threads, §4.8), so a fixed placeholder mode is reported; see
// DESIGN.md.
func (e *Engine) onOutputFound(bus.OutputFound) {
	e.outMu.Lock()
	e.outputs = append(e.outputs, types.OutputGeometry{
		Mode: types.Mode{Width: 1920, Height: 1080, Refresh: 60000},
	})
	e.outMu.Unlock()
}

func (e *Engine) proxyFor(client types.ClientID) (*wlproxy.Proxy, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cc, ok := e.byClientID[client]
	if !ok {
		return nil, false
	}
	return cc.proxy, true
}

func (e *Engine) onKeyboardInput(p bus.KeyboardInput) {
	surface, ok := e.coord.GetKeyboardFocusedSurface()
	if !ok {
		return
	}
	client, ok := e.med.owner(surface)
	if !ok {
		return
	}
	proxy, ok := e.proxyFor(client)
	if !ok {
		return
	}
	if err := proxy.OnKeyboardInput(p.Keycode, p.Pressed, p.Modifiers); err != nil {
		e.logger.Warn("on_keyboard_input failed", "client", client, "err", err)
	}
}

// onPointerMotion forwards continuous pointer movement to whichever
// client owns the focused surface, translating the coordinator's
// absolute pointer position into coordinates relative to that
// surface's origin (§4.7 on_pointer_relative_motion).
func (e *Engine) onPointerMotion(bus.PointerMotion) {
	surface, ok := e.coord.GetPointerFocusedSurface()
	if !ok {
		return
	}
	client, ok := e.med.owner(surface)
	if !ok {
		return
	}
	proxy, ok := e.proxyFor(client)
	if !ok {
		return
	}
	s, ok := e.coord.GetSurface(surface)
	if !ok {
		return
	}
	px, py := e.coord.GetPointerPosition()
	x := px - float64(s.OffsetX)
	y := py - float64(s.OffsetY)
	if err := proxy.OnPointerRelativeMotion(x, y); err != nil {
		e.logger.Warn("on_pointer_relative_motion failed", "client", client, "err", err)
	}
}

func (e *Engine) onPointerButton(p bus.PointerButton) {
	surface, ok := e.coord.GetPointerFocusedSurface()
	if !ok {
		return
	}
	client, ok := e.med.owner(surface)
	if !ok {
		return
	}
	proxy, ok := e.proxyFor(client)
	if !ok {
		return
	}
	if err := proxy.OnPointerButton(p.Button, p.Value); err != nil {
		e.logger.Warn("on_pointer_button failed", "client", client, "err", err)
	}
}

func (e *Engine) onSurfaceFrame(p bus.SurfaceFrame) {
	client, ok := e.med.owner(p.Surface)
	if !ok {
		return
	}
	proxy, ok := e.proxyFor(client)
	if !ok {
		return
	}
	if err := proxy.OnSurfaceFrame(p.Surface, p.TimeMs); err != nil {
		e.logger.Warn("on_surface_frame failed", "client", client, "err", err)
	}
}

func (e *Engine) onSurfaceReconfigured(p bus.SurfaceReconfigured) {
	client, ok := e.med.owner(p.Surface)
	if !ok {
		return
	}
	proxy, ok := e.proxyFor(client)
	if !ok {
		return
	}
	if err := proxy.OnSurfaceReconfigured(p.Surface); err != nil {
		e.logger.Warn("on_surface_reconfigured failed", "client", client, "err", err)
	}
}

// onPointerFocusChanged splits into leave/enter on different clients,
// or a single combined call when old and new surfaces share a client
// (§4.6, §8 property 7).
func (e *Engine) onPointerFocusChanged(p bus.PointerFocusChanged) {
	var oldClient, newClient types.ClientID
	var hasOldClient, hasNewClient bool
	if p.HasOld {
		oldClient, hasOldClient = e.med.owner(p.Old)
	}
	if p.HasNew {
		newClient, hasNewClient = e.med.owner(p.New)
	}

	if hasOldClient && hasNewClient && oldClient == newClient {
		e.notifyPointerFocus(oldClient, p.Old, p.New, true, true, p.X, p.Y)
		return
	}
	if hasOldClient {
		e.notifyPointerFocus(oldClient, p.Old, p.New, true, false, p.X, p.Y)
	}
	if hasNewClient {
		e.notifyPointerFocus(newClient, p.Old, p.New, false, true, p.X, p.Y)
	}
}

func (e *Engine) notifyPointerFocus(client types.ClientID, old, newer types.SurfaceID, hasOld, hasNew bool, x, y float64) {
	proxy, ok := e.proxyFor(client)
	if !ok {
		return
	}
	if err := proxy.OnPointerFocusChanged(old, newer, hasOld, hasNew, x, y); err != nil {
		e.logger.Warn("on_pointer_focus_changed failed", "client", client, "err", err)
	}
}

func (e *Engine) onKeyboardFocusChanged(p bus.KeyboardFocusChanged) {
	var oldClient, newClient types.ClientID
	var hasOldClient, hasNewClient bool
	if p.HasOld {
		oldClient, hasOldClient = e.med.owner(p.Old)
	}
	if p.HasNew {
		newClient, hasNewClient = e.med.owner(p.New)
	}

	if hasOldClient && hasNewClient && oldClient == newClient {
		e.notifyKeyboardFocus(oldClient, p.Old, p.New, true, true)
		return
	}
	if hasOldClient {
		e.notifyKeyboardFocus(oldClient, p.Old, p.New, true, false)
	}
	if hasNewClient {
		e.notifyKeyboardFocus(newClient, p.Old, p.New, false, true)
	}
}

func (e *Engine) notifyKeyboardFocus(client types.ClientID, old, newer types.SurfaceID, hasOld, hasNew bool) {
	proxy, ok := e.proxyFor(client)
	if !ok {
		return
	}
	if err := proxy.OnKeyboardFocusChanged(old, newer, hasOld, hasNew); err != nil {
		e.logger.Warn("on_keyboard_focus_changed failed", "client", client, "err", err)
	}
}

// RequestScreenshot implements wlproxy.Gateway: it records the
// requesting client and objects, then asks the exhibitor for a
// capture over the bus (§12 screenshooter wiring). The reply arrives
// later as bus.ScreenshotReady, routed through onScreenshotReady.
func (e *Engine) RequestScreenshot(client types.ClientID, screenshooterObj, bufferObj types.ObjectID) {
	if e.b == nil {
		return
	}
	pub, err := e.b.NewPublisher()
	if err != nil {
		e.logger.Warn("create screenshot publisher failed", "err", err)
		return
	}
	defer pub.Close()

	e.shotMu.Lock()
	reqID := e.nextShot.Next()
	e.pendingShot[reqID] = pendingScreenshot{client: client, screenshooterObj: screenshooterObj, bufferObj: bufferObj}
	e.shotMu.Unlock()

	if err := pub.Publish(bus.ScreenshotRequested{RequestID: reqID}); err != nil {
		e.logger.Warn("publish screenshot requested failed", "err", err)
	}
}

func (e *Engine) onScreenshotReady(p bus.ScreenshotReady) {
	e.shotMu.Lock()
	pending, ok := e.pendingShot[p.RequestID]
	delete(e.pendingShot, p.RequestID)
	e.shotMu.Unlock()
	if !ok {
		return
	}

	proxy, ok := e.proxyFor(pending.client)
	if !ok {
		return
	}
	if p.Err != "" {
		e.logger.Warn("screenshot failed", "client", pending.client, "err", p.Err)
		return
	}
	if err := proxy.OnScreenshotReady(pending.screenshooterObj, pending.bufferObj, p.Pixels, p.Width, p.Height); err != nil {
		e.logger.Warn("on_screenshot_ready failed", "client", pending.client, "err", err)
	}
}
