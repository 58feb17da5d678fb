package wlengine

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/coordinator"
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wire"
	"github.com/driftwm/drift/internal/wlproxy"
)

type recordingSender struct {
	mu  sync.Mutex
	out []*wire.Message
}

func (s *recordingSender) Send(msg *wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, msg)
	return nil
}

func (s *recordingSender) messages() []*wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wire.Message(nil), s.out...)
}

// wirePointerClient drives a *wlproxy.Proxy through the real protocol
// far enough to hold a live wl_pointer object: bind the registry,
// bind wl_seat, then get_pointer. Mirrors the handshake a real client
// performs before it can receive wl_pointer.motion.
func wirePointerClient(t *testing.T, p *wlproxy.Proxy, sender *recordingSender) {
	t.Helper()

	p.RegisterGlobal("wl_seat", 5)

	require.NoError(t, p.Dispatch(wire.NewMessageBuilder().PutNewID(2).BuildMessage(1, 1)))

	var seatName uint32
	for _, m := range sender.messages() {
		d := wire.NewDecoder(m.Args)
		name, err := d.Uint32()
		require.NoError(t, err)
		iface, err := d.String()
		require.NoError(t, err)
		if iface == "wl_seat" {
			seatName = name
		}
	}

	require.NoError(t, p.Dispatch(
		wire.NewMessageBuilder().PutUint32(seatName).PutString("wl_seat").PutUint32(5).PutNewID(3).
			BuildMessage(2, 0)))

	require.NoError(t, p.Dispatch(wire.NewMessageBuilder().PutNewID(4).BuildMessage(3, 0)))
}

func TestOnPointerMotionForwardsSurfaceRelativePosition(t *testing.T) {
	coord := coordinator.New(nil)
	e, err := New(slog.Default(), coord, nil, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop(); e.Close() })

	sender := &recordingSender{}
	clientID := types.ClientID(1)
	proxy := wlproxy.NewProxy(clientID, sender, coord, e.med, e)
	wirePointerClient(t, proxy, sender)

	e.mu.Lock()
	e.byClientID[clientID] = &clientConn{id: clientID, proxy: proxy}
	e.mu.Unlock()

	surface := coord.CreateSurface(clientID)
	require.NoError(t, coord.SetOffset(surface, 10, 20))
	_, _, err = coord.Commit(surface)
	require.NoError(t, err)
	e.med.Bind(surface, clientID)
	coord.SetPointerFocus(surface, true)
	coord.SetPointerPosition(50, 70)

	before := len(sender.messages())
	e.onPointerMotion(bus.PointerMotion{DX: 1, DY: 1})

	msgs := sender.messages()[before:]
	require.Len(t, msgs, 1)

	d := wire.NewDecoder(msgs[0].Args)
	_, err = d.Uint32() // time, unused
	require.NoError(t, err)
	fx, err := d.Fixed()
	require.NoError(t, err)
	fy, err := d.Fixed()
	require.NoError(t, err)

	require.InDelta(t, 40.0, fx.Float(), 0.01)
	require.InDelta(t, 50.0, fy.Float(), 0.01)
}
