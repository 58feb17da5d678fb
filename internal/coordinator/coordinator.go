// Package coordinator implements the cross-thread shared facade
// described in §4.8: the only mutable state shared between the
// exhibitor, the DRM output thread, and every Wayland engine client
// goroutine. All methods are safe under concurrent callers; mutations
// are totally ordered by a single mutex, and readers observe a
// consistent snapshot per call (§5 "Shared resources").
package coordinator

import (
	"fmt"
	"sync"

	"github.com/driftwm/drift/internal/types"
)

// Coordinator owns the canonical surface and memory-pool registries.
type Coordinator struct {
	mu sync.RWMutex

	surfaces   map[types.SurfaceID]*types.Surface
	surfaceSeq types.Monotonic

	pools   map[types.MemoryPoolID]*types.MemoryPool
	poolSeq types.Monotonic

	views   map[types.MemoryViewID]*types.MemoryView
	viewSeq types.Monotonic

	pointerX, pointerY float64
	hasPointerFocus    bool
	pointerFocus       types.SurfaceID
	hasKeyboardFocus   bool
	keyboardFocus      types.SurfaceID

	// onNotify is invoked with the mutex released whenever Notify is
	// called, so the exhibitor (subscribed on the signal bus) can be
	// told to redraw every display.
	onNotify func()
}

// New creates an empty Coordinator. onNotify may be nil.
func New(onNotify func()) *Coordinator {
	return &Coordinator{
		surfaces: make(map[types.SurfaceID]*types.Surface),
		pools:    make(map[types.MemoryPoolID]*types.MemoryPool),
		views:    make(map[types.MemoryViewID]*types.MemoryView),
		onNotify: onNotify,
	}
}

// CreateSurface registers a new surface owned by the given client and
// returns its canonical id.
func (c *Coordinator) CreateSurface(owner types.ClientID) types.SurfaceID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := types.SurfaceID(c.surfaceSeq.Next())
	c.surfaces[id] = &types.Surface{ID: id, Owner: owner}
	return id
}

// DestroySurface removes a surface. No-op if already gone.
func (c *Coordinator) DestroySurface(id types.SurfaceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.surfaces, id)
	if c.hasPointerFocus && c.pointerFocus == id {
		c.hasPointerFocus = false
	}
	if c.hasKeyboardFocus && c.keyboardFocus == id {
		c.hasKeyboardFocus = false
	}
}

// GetSurface returns a copy of the surface's current state.
func (c *Coordinator) GetSurface(id types.SurfaceID) (types.Surface, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.surfaces[id]
	if !ok {
		return types.Surface{}, false
	}
	return *s, true
}

// CreatePoolFromMemory registers a memory pool already mapped by the
// caller (the proxy maps the client's shm fd before handing it here,
// since mapping can fail with a protocol error the proxy must report).
func (c *Coordinator) CreatePoolFromMemory(pool *types.MemoryPool) types.MemoryPoolID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := types.MemoryPoolID(c.poolSeq.Next())
	pool.ID = id
	c.pools[id] = pool
	return id
}

// DestroyPool invalidates every view into the pool (§3 invariant:
// "destroying a pool invalidates all its views") and unmaps it.
func (c *Coordinator) DestroyPool(id types.MemoryPoolID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.pools[id]
	if !ok {
		return fmt.Errorf("unknown memory pool %d", id)
	}
	for viewID, v := range c.views {
		if v.Pool == id {
			delete(c.views, viewID)
		}
	}
	delete(c.pools, id)
	return pool.Close()
}

// CreateView registers a rectangular window into pool.
func (c *Coordinator) CreateView(pool types.MemoryPoolID, offset, w, h, stride int) (types.MemoryViewID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pools[pool]; !ok {
		return 0, fmt.Errorf("create view: unknown pool %d", pool)
	}
	id := types.MemoryViewID(c.viewSeq.Next())
	c.views[id] = &types.MemoryView{ID: id, Pool: pool, Offset: offset, Width: w, Height: h, Stride: stride}
	return id, nil
}

// View returns a view and its backing pool's pixel bytes.
func (c *Coordinator) View(id types.MemoryViewID) (types.MemoryView, []byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.views[id]
	if !ok {
		return types.MemoryView{}, nil, fmt.Errorf("unknown memory view %d", id)
	}
	pool, ok := c.pools[v.Pool]
	if !ok {
		return types.MemoryView{}, nil, fmt.Errorf("view %d: pool %d gone", id, v.Pool)
	}
	pixels, err := v.Pixels(pool)
	if err != nil {
		return types.MemoryView{}, nil, err
	}
	return *v, pixels, nil
}

// Attach binds a memory view to a surface's pending state (§4.7
// attach).
func (c *Coordinator) Attach(surface types.SurfaceID, view types.MemoryViewID, dx, dy int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.surfaces[surface]
	if !ok {
		return fmt.Errorf("attach: unknown surface %d", surface)
	}
	s.Pending.BufferView = view
	s.Pending.HasBuffer = true
	s.Pending.OffsetX = dx
	s.Pending.OffsetY = dy
	return nil
}

// Commit applies pending state onto the committed surface state and
// returns the view that was current before the commit, if any, so
// the caller can decide whether to release the corresponding buffer
// (§9 "Buffer ownership").
func (c *Coordinator) Commit(surface types.SurfaceID) (previous types.MemoryViewID, hadPrevious bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.surfaces[surface]
	if !ok {
		return 0, false, fmt.Errorf("commit: unknown surface %d", surface)
	}
	previous, hadPrevious = s.Commit()
	return previous, hadPrevious, nil
}

// SetRequestedSize records a client's desired size for the next
// commit.
func (c *Coordinator) SetRequestedSize(surface types.SurfaceID, w, h int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[surface]
	if !ok {
		return fmt.Errorf("set requested size: unknown surface %d", surface)
	}
	s.Pending.RequestedW = w
	s.Pending.RequestedH = h
	return nil
}

// SetOffset records the offset a subsequent commit will apply.
func (c *Coordinator) SetOffset(surface types.SurfaceID, x, y int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[surface]
	if !ok {
		return fmt.Errorf("set offset: unknown surface %d", surface)
	}
	s.Pending.OffsetX = x
	s.Pending.OffsetY = y
	return nil
}

// SetRelativePosition positions a subsurface relative to its parent.
func (c *Coordinator) SetRelativePosition(surface types.SurfaceID, x, y int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[surface]
	if !ok {
		return fmt.Errorf("set relative position: unknown surface %d", surface)
	}
	s.RelX, s.RelY = x, y
	return nil
}

// Relate makes child a subsurface of parent (§12 subsurface stacking).
func (c *Coordinator) Relate(child, parent types.SurfaceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[child]
	if !ok {
		return fmt.Errorf("relate: unknown child surface %d", child)
	}
	if _, ok := c.surfaces[parent]; !ok {
		return fmt.Errorf("relate: unknown parent surface %d", parent)
	}
	s.Parent = parent
	s.HasParent = true
	s.ShowReason |= types.ShowReasonSubsurface
	return nil
}

// Show marks a surface mapped, with the given shell binding and show
// reason (§4.7 show).
func (c *Coordinator) Show(surface types.SurfaceID, shell types.ShellBinding, reason types.ShowReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[surface]
	if !ok {
		return fmt.Errorf("show: unknown surface %d", surface)
	}
	s.Shell = shell
	s.ShowReason |= reason
	return nil
}

// SetAsCursor marks a surface as the pointer's cursor image (§4.7
// set_as_cursor, §12 cursor compositing).
func (c *Coordinator) SetAsCursor(surface types.SurfaceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.surfaces[surface]
	if !ok {
		return fmt.Errorf("set as cursor: unknown surface %d", surface)
	}
	s.State |= types.StateIsCursor
	s.ShowReason |= types.ShowReasonCursor
	return nil
}

// SetPointerFocus records which surface currently has pointer focus.
func (c *Coordinator) SetPointerFocus(surface types.SurfaceID, has bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasPointerFocus = has
	c.pointerFocus = surface
}

// GetPointerFocusedSurface returns the pointer-focused surface id.
func (c *Coordinator) GetPointerFocusedSurface() (types.SurfaceID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pointerFocus, c.hasPointerFocus
}

// SetKeyboardFocus records which surface currently has keyboard focus.
func (c *Coordinator) SetKeyboardFocus(surface types.SurfaceID, has bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasKeyboardFocus = has
	c.keyboardFocus = surface
}

// GetKeyboardFocusedSurface returns the keyboard-focused surface id.
func (c *Coordinator) GetKeyboardFocusedSurface() (types.SurfaceID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keyboardFocus, c.hasKeyboardFocus
}

// SetPointerPosition records the pointer's current absolute position,
// so the Wayland engine (which never shares the exhibitor's own
// *Pointer) can compute surface-relative coordinates for wl_pointer
// events (§4.7 on_pointer_relative_motion).
func (c *Coordinator) SetPointerPosition(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointerX, c.pointerY = x, y
}

// GetPointerPosition returns the pointer's current absolute position.
func (c *Coordinator) GetPointerPosition() (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pointerX, c.pointerY
}

// Notify requests a redraw of every display (§4.4 "Notify"). The
// mutex is released before invoking the callback so it may itself
// call back into the coordinator.
func (c *Coordinator) Notify() {
	c.mu.RLock()
	cb := c.onNotify
	c.mu.RUnlock()
	if cb != nil {
		cb()
	}
}
