package exhibitor

import "github.com/driftwm/drift/internal/types"

// Pointer tracks cursor position, which surface currently has pointer
// focus, and which surface (if any) is the cursor image (§4.4
// Exhibitor state: "pointer (position, focused surface, cursor
// surface)").
type Pointer struct {
	x, y float64

	hasFocus bool
	focus    types.SurfaceID

	hasCursor bool
	cursor    types.SurfaceID
}

// NewPointer creates a pointer parked at the origin with no focus.
func NewPointer() *Pointer {
	return &Pointer{}
}

// SurfaceLookup resolves a surface id to its current committed state,
// normally backed by the coordinator.
type SurfaceLookup func(types.SurfaceID) (types.Surface, bool)

// FocusChange reports a pointer-focus transition so the caller can
// notify the coordinator and the bus (§4.6 on_pointer_focus_changed).
type FocusChange struct {
	Old, New       types.SurfaceID
	HasOld, HasNew bool
	Changed        bool
}

// Move applies a relative motion and re-resolves focus by hit-testing
// every display's layout, topmost surface first (§4.4 "forward to the
// pointer, with the current displays map so the pointer may cast to
// the correct output").
func (p *Pointer) Move(dx, dy float64, displays map[types.OutputID]*Display, lookup SurfaceLookup) FocusChange {
	p.x += dx
	p.y += dy
	return p.resolveFocus(displays, lookup)
}

// Warp sets an absolute position and re-resolves focus.
func (p *Pointer) Warp(x, y float64, displays map[types.OutputID]*Display, lookup SurfaceLookup) FocusChange {
	p.x, p.y = x, y
	return p.resolveFocus(displays, lookup)
}

// Button records a button event. Focus is unaffected: buttons act on
// whatever surface position already resolved.
func (p *Pointer) Button(button, value uint32) {}

// Position returns the pointer's current coordinates.
func (p *Pointer) Position() (float64, float64) { return p.x, p.y }

// Focused returns the surface currently under the pointer, if any.
func (p *Pointer) Focused() (types.SurfaceID, bool) { return p.focus, p.hasFocus }

// ClearFocus drops pointer focus, e.g. when the focused surface is
// destroyed or on PointerReset (§4.4).
func (p *Pointer) ClearFocus() {
	p.hasFocus = false
	p.focus = types.SurfaceID(0)
}

// SetCursorSurface records which surface renders the cursor image
// (§4.7 set_as_cursor, §12 cursor compositing).
func (p *Pointer) SetCursorSurface(id types.SurfaceID) {
	p.hasCursor = true
	p.cursor = id
}

// CursorSurface returns the current cursor surface, if set.
func (p *Pointer) CursorSurface() (types.SurfaceID, bool) { return p.cursor, p.hasCursor }

func (p *Pointer) resolveFocus(displays map[types.OutputID]*Display, lookup SurfaceLookup) FocusChange {
	oldFocus, oldHas := p.focus, p.hasFocus

	for _, d := range displays {
		_, main, _ := d.Layout.Lists()
		for i := len(main) - 1; i >= 0; i-- {
			id := main[i]
			s, ok := lookup(id)
			if ok && p.hits(s) {
				p.hasFocus = true
				p.focus = s.ID
				return changeFrom(oldFocus, oldHas, p.focus, p.hasFocus)
			}
		}
	}
	p.ClearFocus()
	return changeFrom(oldFocus, oldHas, p.focus, p.hasFocus)
}

func changeFrom(old types.SurfaceID, hasOld bool, new types.SurfaceID, hasNew bool) FocusChange {
	changed := hasOld != hasNew || (hasOld && hasNew && old != new)
	return FocusChange{Old: old, New: new, HasOld: hasOld, HasNew: hasNew, Changed: changed}
}

func (p *Pointer) hits(s types.Surface) bool {
	if s.DesiredW == 0 || s.DesiredH == 0 {
		return false
	}
	left := float64(s.OffsetX)
	top := float64(s.OffsetY)
	right := left + float64(s.DesiredW)
	bottom := top + float64(s.DesiredH)
	return p.x >= left && p.x < right && p.y >= top && p.y < bottom
}
