package exhibitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/types"
)

func TestPointerMoveResolvesFocusByHitTest(t *testing.T) {
	p := NewPointer()
	d := &Display{Layout: NewLayout()}
	d.Layout.Add(types.Surface{ID: 1, OffsetX: 0, OffsetY: 0, DesiredW: 100, DesiredH: 100})
	displays := map[types.OutputID]*Display{1: d}

	lookup := func(id types.SurfaceID) (types.Surface, bool) {
		if id == 1 {
			return types.Surface{ID: 1, OffsetX: 0, OffsetY: 0, DesiredW: 100, DesiredH: 100}, true
		}
		return types.Surface{}, false
	}

	p.Warp(50, 50, displays, lookup)
	focused, ok := p.Focused()
	require.True(t, ok)
	require.Equal(t, types.SurfaceID(1), focused)

	p.Warp(500, 500, displays, lookup)
	_, ok = p.Focused()
	require.False(t, ok)
}

func TestPointerClearFocus(t *testing.T) {
	p := NewPointer()
	p.hasFocus = true
	p.focus = 7

	p.ClearFocus()

	_, ok := p.Focused()
	require.False(t, ok)
}

func TestPointerCursorSurface(t *testing.T) {
	p := NewPointer()
	_, ok := p.CursorSurface()
	require.False(t, ok)

	p.SetCursorSurface(3)
	id, ok := p.CursorSurface()
	require.True(t, ok)
	require.Equal(t, types.SurfaceID(3), id)
}
