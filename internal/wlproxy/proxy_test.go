package wlproxy

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/coordinator"
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wire"
)

// recordingSender captures every message sent to a client instead of
// writing to a real socket.
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

type fakeMediator struct {
	mu     sync.Mutex
	owners map[types.SurfaceID]types.ClientID
}

func newFakeMediator() *fakeMediator {
	return &fakeMediator{owners: make(map[types.SurfaceID]types.ClientID)}
}

func (m *fakeMediator) Bind(surface types.SurfaceID, client types.ClientID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[surface] = client
}

func (m *fakeMediator) Unbind(surface types.SurfaceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, surface)
}

func newTestProxy(t *testing.T) (*Proxy, *recordingSender, *fakeMediator) {
	t.Helper()
	coord := coordinator.New(nil)
	sender := &recordingSender{}
	med := newFakeMediator()
	p := NewProxy(types.ClientID(1), sender, coord, med, nil)
	return p, sender, med
}

func sendRequest(t *testing.T, p *Proxy, obj wire.ObjectID, opcode wire.Opcode, b *wire.MessageBuilder) error {
	t.Helper()
	msg := b.BuildMessage(obj, opcode)
	return p.Dispatch(msg)
}

func getRegistry(t *testing.T, p *Proxy, registryObj wire.ObjectID) error {
	t.Helper()
	return sendRequest(t, p, displayObjectID, displayRequestGetRegistry,
		wire.NewMessageBuilder().PutNewID(registryObj))
}

func TestGlobalsAdvertisedInRegistrationOrder(t *testing.T) {
	p, sender, _ := newTestProxy(t)

	p.RegisterGlobal("wl_shm", 1)
	p.RegisterGlobal("wl_compositor", 4)
	p.RegisterGlobal("wl_shell", 1)
	geom := types.OutputGeometry{Mode: types.Mode{Width: 1920, Height: 1080, Refresh: 60000}}
	p.RegisterOutputGlobal(geom)

	require.NoError(t, getRegistry(t, p, 2))

	msgs := sender.messages()
	require.Len(t, msgs, 4)

	var ifaces []string
	for _, m := range msgs {
		require.Equal(t, registryEventGlobal, m.Opcode)
		d := wire.NewDecoder(m.Args)
		_, err := d.Uint32()
		require.NoError(t, err)
		iface, err := d.String()
		require.NoError(t, err)
		ifaces = append(ifaces, iface)
	}
	require.Equal(t, []string{"wl_shm", "wl_compositor", "wl_shell", ifaceOutput}, ifaces)
}

func TestCreateSurfaceBindsMediator(t *testing.T) {
	p, _, med := newTestProxy(t)

	require.NoError(t, sendRequest(t, p, 1, displayRequestGetRegistry, wire.NewMessageBuilder().PutNewID(2)))
	require.NoError(t, p.dispatchCompositor(compositorRequestCreateSurface, wire.NewDecoder(encodeArgs(wire.NewMessageBuilder().PutNewID(3)))))

	p.mu.Lock()
	sid, ok := p.surfaceObjToID[3]
	p.mu.Unlock()
	require.True(t, ok)

	client, ok := med.owners[sid]
	require.True(t, ok)
	require.Equal(t, types.ClientID(1), client)
}

func TestFrameCallbackAtMostOnceOutstanding(t *testing.T) {
	p, _, _ := newTestProxy(t)
	p.createSurface(10)

	p.mu.Lock()
	sid := p.surfaceObjToID[10]
	p.mu.Unlock()

	require.NoError(t, p.setFrame(sid, 20))
	err := p.setFrame(sid, 21)
	require.Error(t, err)
}

func TestAttachReleasesPriorBufferExactlyOnce(t *testing.T) {
	p, sender, _ := newTestProxy(t)
	p.createSurface(10)

	p.mu.Lock()
	sid := p.surfaceObjToID[10]
	p.mu.Unlock()

	pool := mustMemoryPool(t, p, 30, 4096)
	require.NoError(t, p.createBuffer(pool, 31, 0, 4, 4, 16))
	require.NoError(t, p.createBuffer(pool, 32, 0, 4, 4, 16))

	require.NoError(t, p.attach(31, sid, 0, 0))
	require.NoError(t, p.commit(sid))

	require.NoError(t, p.attach(32, sid, 0, 0))

	var releases int
	for _, m := range sender.messages() {
		if m.Opcode == bufferEventRelease {
			releases++
		}
	}
	require.Equal(t, 1, releases)

	// Re-attaching without an intervening commit holds nothing new, so
	// no additional release is sent.
	require.NoError(t, p.attach(32, sid, 0, 0))
	releases = 0
	for _, m := range sender.messages() {
		if m.Opcode == bufferEventRelease {
			releases++
		}
	}
	require.Equal(t, 1, releases)
}

func mustMemoryPool(t *testing.T, p *Proxy, poolObj types.ObjectID, size int32) types.ObjectID {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pool")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(int64(size)))
	require.NoError(t, p.createMemoryPool(poolObj, int(f.Fd()), size))
	return poolObj
}

// encodeArgs extracts the argument bytes BuildMessage would produce,
// for tests that call a dispatch* helper directly with a hand-built
// decoder rather than routing through Dispatch.
func encodeArgs(b *wire.MessageBuilder) []byte {
	return b.BuildMessage(0, 0).Args
}

type fakeGateway struct {
	mu               sync.Mutex
	client           types.ClientID
	screenshooterObj types.ObjectID
	bufferObj        types.ObjectID
	calls            int
}

func (g *fakeGateway) RequestScreenshot(client types.ClientID, screenshooterObj, bufferObj types.ObjectID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client, g.screenshooterObj, g.bufferObj = client, screenshooterObj, bufferObj
	g.calls++
}

func TestScreenshooterShootForwardsToGateway(t *testing.T) {
	coord := coordinator.New(nil)
	sender := &recordingSender{}
	med := newFakeMediator()
	gw := &fakeGateway{}
	p := NewProxy(types.ClientID(7), sender, coord, med, gw)

	p.mu.Lock()
	p.objects[2] = &objectEntry{role: roleGlobal, iface: ifaceScreenshooter}
	p.mu.Unlock()

	require.NoError(t, sendRequest(t, p, 2, screenshooterRequestShoot,
		wire.NewMessageBuilder().PutObject(wire.ObjectID(40)).PutObject(wire.ObjectID(41))))

	require.Equal(t, 1, gw.calls)
	require.Equal(t, types.ClientID(7), gw.client)
	require.Equal(t, types.ObjectID(2), gw.screenshooterObj)
	require.Equal(t, types.ObjectID(41), gw.bufferObj)
}

func TestOnScreenshotReadyCopiesIntoBufferAndSendsDone(t *testing.T) {
	p, sender, _ := newTestProxy(t)
	pool := mustMemoryPool(t, p, 50, 4096)
	require.NoError(t, p.createBuffer(pool, 51, 0, 2, 2, 8))

	pixels := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	require.NoError(t, p.OnScreenshotReady(60, 51, pixels, 2, 2))

	view := p.buffers[51].View
	_, data, err := p.coord.View(view)
	require.NoError(t, err)
	require.Equal(t, pixels, data[:len(pixels)])

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, screenshooterEventDone, msgs[0].Opcode)
	require.Equal(t, wire.ObjectID(60), msgs[0].ObjectID)
}
