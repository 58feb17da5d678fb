package wlengine

import (
	"errors"
	"net"

	"github.com/driftwm/drift/internal/dispatch"
	"github.com/driftwm/drift/internal/errs"
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wire"
	"github.com/driftwm/drift/internal/wlproxy"
)

// clientConn couples one accepted connection with its proxy and
// dispatcher handler id — the engine's client id -> {connection,
// proxy} map entry (§4.6).
type clientConn struct {
	id        types.ClientID
	conn      *wire.Conn
	proxy     *wlproxy.Proxy
	handlerID dispatch.HandlerID
	engine    *Engine
}

func (c *clientConn) FD() int { return c.conn.Fd() }

// HandleEvent reads one framed request and dispatches it. A message is
// guaranteed available when epoll reports readiness, so a single Recv
// per call is enough; level-triggered epoll re-fires if more than one
// message is buffered (§4.6 "On client data-ready: call process_events").
func (c *clientConn) HandleEvent(kind dispatch.EventKind) {
	if kind&dispatch.Hangup != 0 && kind&dispatch.Read == 0 {
		c.engine.onHangup(c)
		return
	}

	msg, err := c.conn.Recv()
	if err != nil {
		if err == wire.ErrNoMessage {
			return
		}
		c.engine.onHangup(c)
		return
	}
	if err := c.proxy.Dispatch(msg); err != nil {
		var fatal *errs.ClientFatal
		if errors.As(err, &fatal) {
			c.engine.logger.Warn("client protocol desync, disconnecting", "client", c.id, "err", err)
			c.engine.onHangup(c)
			return
		}
		c.engine.logger.Warn("client protocol error", "client", c.id, "err", err)
	}

	if kind&dispatch.Hangup != 0 {
		c.engine.onHangup(c)
	}
}

// onAccept wraps a freshly accepted connection, builds its proxy,
// registers every protocol global, and installs a client handler
// (§4.6).
func (e *Engine) onAccept(conn net.Conn) {
	wc, err := wire.NewConn(conn)
	if err != nil {
		e.logger.Warn("wrap accepted connection failed", "err", err)
		_ = conn.Close()
		return
	}

	clientID := types.ClientID(e.nextClient.Next())
	cc := &clientConn{id: clientID, conn: wc, engine: e}
	cc.proxy = wlproxy.NewProxy(clientID, wc, e.coord, e.med, e)
	e.registerGlobals(cc.proxy)

	hid, err := e.disp.AddSource(cc, dispatch.Read)
	if err != nil {
		e.logger.Error("register client handler failed", "client", clientID, "err", err)
		cc.proxy.Close()
		_ = wc.Close()
		return
	}
	cc.handlerID = hid

	e.mu.Lock()
	e.clients[hid] = cc
	e.byClientID[clientID] = cc
	e.mu.Unlock()

	e.logger.Info("client connected", "client", clientID)
}

// onHangup tears down a client's dispatcher registration, proxy state
// and mediator bindings (§4.6 "On client hang-up", §8 property 3, S6).
func (e *Engine) onHangup(cc *clientConn) {
	e.disp.DeleteSource(cc.handlerID)

	e.mu.Lock()
	delete(e.clients, cc.handlerID)
	delete(e.byClientID, cc.id)
	e.mu.Unlock()

	cc.proxy.Close()
	_ = cc.conn.Close()
	e.logger.Info("client disconnected", "client", cc.id)
}
