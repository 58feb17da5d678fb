// Package types holds the compositor's core data model (§3): surfaces,
// memory pools and views, buffer and surface bookkeeping, globals, and
// outputs. Types here are plain data — behavior lives in the packages
// that own each piece of state (coordinator, proxy, exhibitor).
package types

import "sync/atomic"

// SurfaceID identifies a surface across the whole process. It is
// monotonic and never reused (§3 Surface).
type SurfaceID uint64

// OutputID identifies a display output. Monotonic, never reused (§4.4).
type OutputID uint32

// MemoryPoolID identifies a client's imported shared-memory pool.
type MemoryPoolID uint64

// MemoryViewID identifies a rectangular window into one pool.
type MemoryViewID uint64

// ClientID identifies a connected Wayland client. The engine issues it
// from its own counter; it is distinct from the dispatcher handler id
// that watches the client's socket.
type ClientID uint32

// ObjectID is a client-chosen wire object id (wl_* proxy id).
type ObjectID uint32

// GlobalName is the monotonic, never-reused registry name (§3 Global).
type GlobalName uint32

// Monotonic issues strictly increasing, never-reused identifiers.
// Used for surface ids, output ids, pool/view ids, and global names —
// every counter in §3 that carries a "never reused" invariant.
type Monotonic struct {
	next uint64
}

// Next returns the next value in the sequence, starting at 1 so the
// zero value of an ID type can mean "none".
func (m *Monotonic) Next() uint64 {
	return atomic.AddUint64(&m.next, 1)
}
