package bus

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// recorder is a test Module that tracks every package it receives and
// the OS thread id it was constructed and executed on, to verify the
// module-locality invariant (§8 property 1).
type recorder struct {
	signals     []SignalID
	constructTID int
	executeTIDs  []int
	received     []Package
	mu           sync.Mutex
	initCalled   bool
	finiCalled   bool
}

func (r *recorder) Signals() []SignalID { return r.signals }

func (r *recorder) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initCalled = true
	return nil
}

func (r *recorder) Execute(pkg Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executeTIDs = append(r.executeTIDs, unix.Gettid())
	r.received = append(r.received, pkg)
}

func (r *recorder) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finiCalled = true
}

func TestEventLoopDispatchesToSubscribedModules(t *testing.T) {
	b := newTestBus(t)

	recA := &recorder{signals: []SignalID{SignalNotify}}
	recB := &recorder{signals: []SignalID{SignalPageFlip}}

	loop := NewEventLoop(b, slog.Default(),
		func() (Module, error) { recA.constructTID = unix.Gettid(); return recA, nil },
		func() (Module, error) { recB.constructTID = unix.Gettid(); return recB, nil },
	)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	// Give the loop time to subscribe before publishing.
	time.Sleep(100 * time.Millisecond)

	pub, err := b.NewPublisher()
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(Notify{}))
	require.NoError(t, pub.Publish(PageFlip{OutputID: 7}))

	require.Eventually(t, func() bool {
		recA.mu.Lock()
		defer recA.mu.Unlock()
		return len(recA.received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		recB.mu.Lock()
		defer recB.mu.Unlock()
		return len(recB.received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// recA only subscribed to Notify: it must never see the PageFlip.
	recA.mu.Lock()
	require.Len(t, recA.received, 1)
	require.IsType(t, Notify{}, recA.received[0])
	require.Equal(t, recA.constructTID, recA.executeTIDs[0], "module must execute on the thread that constructed it")
	recA.mu.Unlock()

	require.NoError(t, pub.Broadcast(CommandTerminate))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not terminate")
	}

	recA.mu.Lock()
	require.True(t, recA.initCalled)
	require.True(t, recA.finiCalled)
	recA.mu.Unlock()
}
