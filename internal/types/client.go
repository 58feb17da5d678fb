package types

// BufferInfo maps a client-side buffer object id to a memory view
// (§3 Buffer info). The server releases it — emits wl_buffer.release —
// exactly once, after committing to no longer read it.
type BufferInfo struct {
	View     MemoryViewID
	Released bool
}

// SurfaceInfo is the per-client, per-surface back-pointer record
// (§3 Surface info): the client-side object ids the client chose for
// this surface, its pending buffer/frame callback, and its shell
// binding.
type SurfaceInfo struct {
	SurfaceObj ObjectID
	BufferObj  ObjectID
	HasBuffer  bool
	FrameObj   ObjectID
	HasFrame   bool // at most one outstanding frame callback (invariant)
	Shell      ShellBinding

	// HeldBufferObj is the buffer object committed onto the surface and
	// still being read by the server (§9 Buffer ownership): released on
	// whichever comes first, the next attach or the next frame callback.
	HeldBufferObj ObjectID
	HasHeldBuffer bool

	// ShellObj is the wl_shell_surface object id for ShellClassic, or
	// the zxdg_toplevel_v6 object id for ShellXDGToplevel: whichever
	// object on_surface_reconfigured must emit configure on.
	ShellObj ObjectID
	// XdgSurfaceObj is the zxdg_surface_v6 object id, only set for
	// ShellXDGToplevel: its own configure(serial) follows the
	// toplevel's configure.
	XdgSurfaceObj ObjectID
	HasXdgSurface bool
}

// Global is a (name, interface, version, constructor) tuple advertised
// to clients through wl_registry (§3 Global). Names are monotonic per
// proxy and never reused; advertisement order equals registration
// order.
type Global struct {
	Name      GlobalName
	Interface string
	Version   uint32
}
