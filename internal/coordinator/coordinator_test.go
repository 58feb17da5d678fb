package coordinator

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/types"
)

func tempPoolFD(t *testing.T, size int) int {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pool")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(size)))
	t.Cleanup(func() { f.Close() })
	return int(f.Fd())
}

func TestCreateAndDestroySurface(t *testing.T) {
	c := New(nil)

	id := c.CreateSurface(42)
	require.NotZero(t, id)

	s, ok := c.GetSurface(id)
	require.True(t, ok)
	require.Equal(t, types.ClientID(42), s.Owner)

	c.DestroySurface(id)
	_, ok = c.GetSurface(id)
	require.False(t, ok)
}

func TestSurfaceIDsNeverReused(t *testing.T) {
	c := New(nil)
	a := c.CreateSurface(1)
	c.DestroySurface(a)
	b := c.CreateSurface(1)
	require.NotEqual(t, a, b)
}

func TestAttachCommitReturnsPreviousView(t *testing.T) {
	c := New(nil)
	surface := c.CreateSurface(1)

	fd := tempPoolFD(t, 4096)
	dupFD, err := types.DupFD(fd)
	require.NoError(t, err)
	pool, err := types.MapMemoryPool(0, dupFD, 4096)
	require.NoError(t, err)
	poolID := c.CreatePoolFromMemory(pool)

	viewA, err := c.CreateView(poolID, 0, 16, 16, 64)
	require.NoError(t, err)

	require.NoError(t, c.Attach(surface, viewA, 0, 0))
	_, had, err := c.Commit(surface)
	require.NoError(t, err)
	require.False(t, had, "first commit has no previous buffer")

	viewB, err := c.CreateView(poolID, 1024, 16, 16, 64)
	require.NoError(t, err)
	require.NoError(t, c.Attach(surface, viewB, 0, 0))

	prev, had, err := c.Commit(surface)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, viewA, prev)
}

func TestDestroyPoolInvalidatesViews(t *testing.T) {
	c := New(nil)

	fd := tempPoolFD(t, 4096)
	dupFD, err := types.DupFD(fd)
	require.NoError(t, err)
	pool, err := types.MapMemoryPool(0, dupFD, 4096)
	require.NoError(t, err)
	poolID := c.CreatePoolFromMemory(pool)

	view, err := c.CreateView(poolID, 0, 16, 16, 64)
	require.NoError(t, err)

	require.NoError(t, c.DestroyPool(poolID))

	_, _, err = c.View(view)
	require.Error(t, err)
}

func TestRelateMarksSubsurface(t *testing.T) {
	c := New(nil)
	parent := c.CreateSurface(1)
	child := c.CreateSurface(1)

	require.NoError(t, c.Relate(child, parent))

	s, ok := c.GetSurface(child)
	require.True(t, ok)
	require.True(t, s.HasParent)
	require.Equal(t, parent, s.Parent)
	require.NotZero(t, s.ShowReason&types.ShowReasonSubsurface)
}

func TestFocusTrackingAndClearOnDestroy(t *testing.T) {
	c := New(nil)
	surface := c.CreateSurface(1)

	c.SetPointerFocus(surface, true)
	got, ok := c.GetPointerFocusedSurface()
	require.True(t, ok)
	require.Equal(t, surface, got)

	c.DestroySurface(surface)
	_, ok = c.GetPointerFocusedSurface()
	require.False(t, ok, "destroying the focused surface must clear focus")
}

func TestNotifyInvokesCallbackWithoutDeadlock(t *testing.T) {
	called := make(chan struct{}, 1)
	c := New(func() { called <- struct{}{} })

	c.Notify()

	select {
	case <-called:
	default:
		t.Fatal("onNotify was not invoked")
	}
}
