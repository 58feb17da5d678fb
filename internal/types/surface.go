package types

// ShellBinding records which shell protocol mapped a surface, so the
// proxy's gateway (§4.7 on_surface_reconfigured) knows which configure
// sequence to emit.
type ShellBinding int

const (
	ShellNone ShellBinding = iota
	ShellClassic
	ShellXDGToplevel
)

// ShowReason records why a surface became visible (mirrors the
// show-reason set in §3 Surface; kept as a bitset because a surface
// can be shown for more than one reason at once, e.g. mapped as a
// toplevel and also set as a drag icon).
type ShowReason uint8

const (
	ShowReasonNone ShowReason = 0
	ShowReasonShell ShowReason = 1 << iota
	ShowReasonCursor
	ShowReasonSubsurface
)

// StateFlags are the double-buffered "state flags" from §3.
type StateFlags uint8

const (
	StateNone StateFlags = 0
	StateMaximized StateFlags = 1 << iota
	StateActivated
	StateIsCursor
)

// PendingState is the part of a Surface's state that a client mutates
// freely and that only takes effect on commit (§3 "mutated only via
// commit of a pending state").
type PendingState struct {
	BufferView   MemoryViewID // none == 0
	HasBuffer    bool
	OffsetX      int32
	OffsetY      int32
	RequestedW   int32
	RequestedH   int32
}

// Surface is a client-owned 2D image source (§3 Surface).
type Surface struct {
	ID       SurfaceID
	Owner    ClientID

	// Committed (current) state.
	View         MemoryViewID
	HasView      bool
	DesiredW     int32
	DesiredH     int32
	OffsetX      int32
	OffsetY      int32
	RelX         int32 // relative position, for subsurfaces
	RelY         int32
	Parent       SurfaceID
	HasParent    bool

	State      StateFlags
	ShowReason ShowReason
	Shell      ShellBinding

	Pending PendingState

	Destroyed bool
}

// Commit applies Pending onto the committed state and clears Pending's
// one-shot buffer slot (§3 "mutated only via commit"). It returns the
// buffer view that was attached before this commit, if any, so the
// caller can reason about buffer-release timing (§9 Buffer ownership).
func (s *Surface) Commit() (previous MemoryViewID, hadPrevious bool) {
	previous, hadPrevious = s.View, s.HasView

	if s.Pending.HasBuffer {
		s.View = s.Pending.BufferView
		s.HasView = true
	}
	if s.Pending.RequestedW != 0 {
		s.DesiredW = s.Pending.RequestedW
	}
	if s.Pending.RequestedH != 0 {
		s.DesiredH = s.Pending.RequestedH
	}
	s.OffsetX = s.Pending.OffsetX
	s.OffsetY = s.Pending.OffsetY

	s.Pending = PendingState{}
	return previous, hadPrevious
}
