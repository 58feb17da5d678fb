package exhibitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/types"
)

func TestLayoutClassifiesByShowReason(t *testing.T) {
	l := NewLayout()

	main := types.Surface{ID: 1}
	sub := types.Surface{ID: 2, ShowReason: types.ShowReasonSubsurface}
	cursor := types.Surface{ID: 3, State: types.StateIsCursor}

	l.Add(main)
	l.Add(sub)
	l.Add(cursor)

	under, mains, over := l.Lists()
	require.Equal(t, []types.SurfaceID{2}, under)
	require.Equal(t, []types.SurfaceID{1}, mains)
	require.Equal(t, []types.SurfaceID{3}, over)
}

func TestLayoutRemove(t *testing.T) {
	l := NewLayout()
	l.Add(types.Surface{ID: 1})
	l.Add(types.Surface{ID: 2})

	l.Remove(1)

	_, main, _ := l.Lists()
	require.Equal(t, []types.SurfaceID{2}, main)
}

func TestLayoutRemoveUnknownIsNoop(t *testing.T) {
	l := NewLayout()
	l.Add(types.Surface{ID: 1})
	l.Remove(99)

	_, main, _ := l.Lists()
	require.Equal(t, []types.SurfaceID{1}, main)
}
