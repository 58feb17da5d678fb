package exhibitor

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/coordinator"
	"github.com/driftwm/drift/internal/types"
)

type fakeOutput struct {
	id        types.OutputID
	drawCalls int
	closed    bool
	failNext  bool
}

func (f *fakeOutput) ID() types.OutputID { return f.id }
func (f *fakeOutput) AdvancePageFlip() error {
	if f.failNext {
		return errors.New("flip failed")
	}
	return nil
}
func (f *fakeOutput) Draw(under, main, over []SurfaceContext, cursor *SurfaceContext, pixels PixelAccessor) error {
	f.drawCalls++
	return nil
}
func (f *fakeOutput) Close() error { f.closed = true; return nil }
func (f *fakeOutput) Screenshot() ([]byte, int, int) {
	return make([]byte, 4*4*4), 4, 4
}

func newTestExhibitor(t *testing.T) (*Exhibitor, *coordinator.Coordinator, func() *fakeOutput) {
	t.Helper()
	coord := coordinator.New(nil)
	var last *fakeOutput
	factory := func(id types.OutputID, bundle types.DrmBundle) (Output, error) {
		last = &fakeOutput{id: id}
		return last, nil
	}
	e := New(slog.Default(), coord, nil, factory)
	return e, coord, func() *fakeOutput { return last }
}

func TestOutputFoundRegistersDisplayWithMonotonicID(t *testing.T) {
	e, _, getOutput := newTestExhibitor(t)

	e.onOutputFound(bus.OutputFound{Bundle: types.DrmBundle{Path: "/dev/dri/card0"}})
	first := getOutput().ID()

	e.onOutputFound(bus.OutputFound{Bundle: types.DrmBundle{Path: "/dev/dri/card1"}})
	second := getOutput().ID()

	require.NotEqual(t, first, second)
	require.Len(t, e.displays, 2)
}

func TestOutputFoundDropsOnFactoryError(t *testing.T) {
	coord := coordinator.New(nil)
	e := New(slog.Default(), coord, nil, func(id types.OutputID, bundle types.DrmBundle) (Output, error) {
		return nil, errors.New("no such device")
	})

	e.onOutputFound(bus.OutputFound{Bundle: types.DrmBundle{Path: "/dev/dri/card0"}})
	require.Empty(t, e.displays)
}

func TestSurfaceDestroyedClearsPointerFocus(t *testing.T) {
	e, coord, _ := newTestExhibitor(t)
	surface := coord.CreateSurface(1)

	e.pointer.hasFocus = true
	e.pointer.focus = surface

	e.onSurfaceDestroyed(bus.SurfaceDestroyed{Surface: surface})

	_, ok := e.pointer.Focused()
	require.False(t, ok)
}

func TestNotifyRedrawsEveryDisplay(t *testing.T) {
	e, _, getOutput := newTestExhibitor(t)
	e.onOutputFound(bus.OutputFound{Bundle: types.DrmBundle{Path: "/dev/dri/card0"}})
	out := getOutput()

	e.onNotify()
	require.Equal(t, 1, out.drawCalls)

	e.onNotify()
	require.Equal(t, 2, out.drawCalls)
}

func TestFinalizeClosesEveryDisplay(t *testing.T) {
	e, _, getOutput := newTestExhibitor(t)
	e.onOutputFound(bus.OutputFound{Bundle: types.DrmBundle{Path: "/dev/dri/card0"}})
	out := getOutput()

	e.Finalize()
	require.True(t, out.closed)
}

func TestSurfaceReadyAddsToMainLayer(t *testing.T) {
	e, coord, _ := newTestExhibitor(t)
	e.onOutputFound(bus.OutputFound{Bundle: types.DrmBundle{Path: "/dev/dri/card0"}})
	surface := coord.CreateSurface(1)

	e.onSurfaceReady(bus.SurfaceReady{Surface: surface})

	for _, d := range e.displays {
		_, main, _ := d.Layout.Lists()
		require.Contains(t, main, surface)
	}
}
