package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b, err := New()
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestReceiverGetsPublishedPackage(t *testing.T) {
	b := newTestBus(t)

	pub, err := b.NewPublisher()
	require.NoError(t, err)
	defer pub.Close()

	recv, err := b.NewReceiver()
	require.NoError(t, err)
	defer recv.Close()

	require.NoError(t, recv.Subscribe(SignalNotify))

	require.NoError(t, pub.Publish(Notify{}))

	env := recv.Recv(2 * time.Second)
	require.Equal(t, KindDefined, env.Kind)
	require.Equal(t, SignalNotify, env.Signal)
	require.IsType(t, Notify{}, env.Package)
}

func TestReceiverIgnoresUnsubscribedSignal(t *testing.T) {
	b := newTestBus(t)

	pub, err := b.NewPublisher()
	require.NoError(t, err)
	defer pub.Close()

	recv, err := b.NewReceiver()
	require.NoError(t, err)
	defer recv.Close()

	require.NoError(t, recv.Subscribe(SignalNotify))
	require.NoError(t, pub.Publish(PageFlip{OutputID: 1}))
	require.NoError(t, pub.Publish(Notify{}))

	env := recv.Recv(2 * time.Second)
	require.Equal(t, KindDefined, env.Kind)
	require.Equal(t, SignalNotify, env.Signal)
}

func TestReceiverTimeout(t *testing.T) {
	b := newTestBus(t)

	recv, err := b.NewReceiver()
	require.NoError(t, err)
	defer recv.Close()

	require.NoError(t, recv.Subscribe(SignalNotify))

	env := recv.Recv(50 * time.Millisecond)
	require.Equal(t, KindTimeout, env.Kind)
}

func TestBroadcastTerminate(t *testing.T) {
	b := newTestBus(t)

	pub, err := b.NewPublisher()
	require.NoError(t, err)
	defer pub.Close()

	recv, err := b.NewReceiver()
	require.NoError(t, err)
	defer recv.Close()

	require.NoError(t, pub.Broadcast(CommandTerminate))

	env := recv.Recv(2 * time.Second)
	require.Equal(t, KindSpecial, env.Kind)
	require.Equal(t, CommandTerminate, env.Command)
}
