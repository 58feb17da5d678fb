package exhibitor

import "github.com/driftwm/drift/internal/types"

// layer names the three z-ordered lists DrmOutput.Draw composites
// (§4.5 "Draw: takes three layered surface-context lists (under,
// main, over)").
type layer int

const (
	layerUnder layer = iota
	layerMain
	layerOver
)

// Layout tracks which layer each mapped surface belongs to, in
// insertion order within its layer. It stores ids only; current
// position/size/buffer state is always re-read from the coordinator
// at draw time so the layout never goes stale relative to commits.
type Layout struct {
	under []types.SurfaceID
	main  []types.SurfaceID
	over  []types.SurfaceID

	layerOf map[types.SurfaceID]layer
}

// NewLayout creates an empty layout.
func NewLayout() *Layout {
	return &Layout{layerOf: make(map[types.SurfaceID]layer)}
}

// Add places a newly-ready surface into its layer (§4.4 "Surface
// ready/destroyed: (de)register with the layout"; §12 "Subsurface
// relative stacking").
func (l *Layout) Add(s types.Surface) {
	lay := classify(s)
	l.layerOf[s.ID] = lay
	switch lay {
	case layerUnder:
		l.under = append(l.under, s.ID)
	case layerOver:
		l.over = append(l.over, s.ID)
	default:
		l.main = append(l.main, s.ID)
	}
}

// Remove deregisters a surface, if present.
func (l *Layout) Remove(id types.SurfaceID) {
	lay, ok := l.layerOf[id]
	if !ok {
		return
	}
	delete(l.layerOf, id)
	switch lay {
	case layerUnder:
		l.under = removeID(l.under, id)
	case layerOver:
		l.over = removeID(l.over, id)
	default:
		l.main = removeID(l.main, id)
	}
}

// Lists returns the current under/main/over ordering.
func (l *Layout) Lists() (under, main, over []types.SurfaceID) {
	return append([]types.SurfaceID(nil), l.under...),
		append([]types.SurfaceID(nil), l.main...),
		append([]types.SurfaceID(nil), l.over...)
}

// classify picks the layer a surface belongs to: subsurfaces go to the
// under layer, below every main-layer surface; a cursor surface goes to
// the over layer; everything else is the main layer.
func classify(s types.Surface) layer {
	if s.ShowReason&types.ShowReasonSubsurface != 0 {
		return layerUnder
	}
	if s.State&types.StateIsCursor != 0 {
		return layerOver
	}
	return layerMain
}

func removeID(ids []types.SurfaceID, target types.SurfaceID) []types.SurfaceID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
