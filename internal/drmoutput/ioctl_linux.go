//go:build linux

package drmoutput

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/driftwm/drift/internal/types"
)

// DRM ioctl numbers, encoded the same way the teacher's raw-syscall
// DRM package documents them: _IOWR('d', nr, size).
const (
	ioctlModeGetResources = 0xc04064a0
	ioctlModeGetConnector = 0xc05064a7
	ioctlModeSetCrtc      = 0xc06864a2
	ioctlModeAddFb        = 0xc01c64ae
	ioctlModeRmFb         = 0xc00464af
	ioctlModePageFlip     = 0xc01864b0
	ioctlSetMaster        = 0x641e
)

type drmModeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type drmModeModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type drmModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeModeInfo
}

type drmModeFbCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

type drmModePageFlip struct {
	CrtcID   uint32
	FbID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

const pageFlipEvent = 0x01

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// openDevice opens the DRM node and becomes master, following the
// same capability-set-up idiom as the teacher's openDRM.
func openDevice(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := ioctl(f.Fd(), ioctlSetMaster, nil); err != nil {
		f.Close()
		return nil, fmt.Errorf("DRM_IOCTL_SET_MASTER: %w", err)
	}
	return f, nil
}

// queryModes returns every mode the connector advertises (§4.5
// "Query the connector for modes").
func queryModes(f *os.File, connectorID uint32) ([]types.Mode, error) {
	conn := drmModeGetConnector{ConnectorID: connectorID}
	if err := ioctl(f.Fd(), ioctlModeGetConnector, unsafe.Pointer(&conn)); err != nil {
		return nil, fmt.Errorf("MODE_GETCONNECTOR count: %w", err)
	}
	if conn.CountModes == 0 {
		return nil, fmt.Errorf("connector %d has no modes", connectorID)
	}

	raw := make([]drmModeModeInfo, conn.CountModes)
	conn2 := drmModeGetConnector{
		ConnectorID: connectorID,
		ModesPtr:    uint64(uintptr(unsafe.Pointer(&raw[0]))),
		CountModes:  conn.CountModes,
	}
	if err := ioctl(f.Fd(), ioctlModeGetConnector, unsafe.Pointer(&conn2)); err != nil {
		return nil, fmt.Errorf("MODE_GETCONNECTOR modes: %w", err)
	}

	modes := make([]types.Mode, len(raw))
	for i, m := range raw {
		modes[i] = types.Mode{Width: int(m.Hdisplay), Height: int(m.Vdisplay), Refresh: int(m.Vrefresh) * 1000}
	}
	return modes, nil
}

// rawModes re-fetches the kernel mode structs for setCrtc, since
// drm_mode_crtc needs the full struct, not just our trimmed Mode.
func rawModes(f *os.File, connectorID uint32) ([]drmModeModeInfo, error) {
	conn := drmModeGetConnector{ConnectorID: connectorID}
	if err := ioctl(f.Fd(), ioctlModeGetConnector, unsafe.Pointer(&conn)); err != nil {
		return nil, fmt.Errorf("MODE_GETCONNECTOR count: %w", err)
	}
	if conn.CountModes == 0 {
		return nil, fmt.Errorf("connector %d has no modes", connectorID)
	}
	raw := make([]drmModeModeInfo, conn.CountModes)
	conn2 := drmModeGetConnector{
		ConnectorID: connectorID,
		ModesPtr:    uint64(uintptr(unsafe.Pointer(&raw[0]))),
		CountModes:  conn.CountModes,
	}
	if err := ioctl(f.Fd(), ioctlModeGetConnector, unsafe.Pointer(&conn2)); err != nil {
		return nil, fmt.Errorf("MODE_GETCONNECTOR modes: %w", err)
	}
	return raw, nil
}

// addFB creates a DRM framebuffer id for a GEM handle at the given
// geometry, depth 24 / bpp 32 (§4.5 "add_fb with depth 24, bpp 32").
func addFB(f *os.File, width, height, pitch, handle uint32) (uint32, error) {
	fb := drmModeFbCmd{Width: width, Height: height, Pitch: pitch, Bpp: 32, Depth: 24, Handle: handle}
	if err := ioctl(f.Fd(), ioctlModeAddFb, unsafe.Pointer(&fb)); err != nil {
		return 0, fmt.Errorf("MODE_ADDFB: %w", err)
	}
	return fb.FbID, nil
}

// rmFB releases a framebuffer id.
func rmFB(f *os.File, fbID uint32) error {
	id := fbID
	if err := ioctl(f.Fd(), ioctlModeRmFb, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("MODE_RMFB: %w", err)
	}
	return nil
}

// setCrtc programs crtcID to scan out fbID through connectorID at the
// chosen mode (§4.5 "program the CRTC with the chosen mode").
func setCrtc(f *os.File, connectorID, crtcID, fbID uint32, modeIndex int) error {
	raw, err := rawModes(f, connectorID)
	if err != nil {
		return err
	}
	if modeIndex >= len(raw) {
		return fmt.Errorf("mode index %d out of range (%d modes)", modeIndex, len(raw))
	}

	connectors := []uint32{connectorID}
	crtc := drmModeCrtc{
		CrtcID:           crtcID,
		FbID:             fbID,
		SetConnectorsPtr: uint64(uintptr(unsafe.Pointer(&connectors[0]))),
		CountConnectors:  1,
		ModeValid:        1,
		Mode:             raw[modeIndex],
	}
	if err := ioctl(f.Fd(), ioctlModeSetCrtc, unsafe.Pointer(&crtc)); err != nil {
		return fmt.Errorf("MODE_SETCRTC: %w", err)
	}
	return nil
}

// schedulePageFlip asks the kernel to flip crtcID to fbID and deliver
// a completion event carrying cookie as user data (§4.5 "Page-flip
// scheduling").
func schedulePageFlip(f *os.File, crtcID, fbID uint32, cookie uint64) error {
	req := drmModePageFlip{CrtcID: crtcID, FbID: fbID, Flags: pageFlipEvent, UserData: cookie}
	if err := ioctl(f.Fd(), ioctlModePageFlip, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("MODE_PAGE_FLIP: %w", err)
	}
	return nil
}

// drmEventPageFlip mirrors struct drm_event_vblank's layout for the
// page-flip-complete event read back from the DRM fd (§4.5 "A
// dispatcher handler reads the completion event").
type drmEventPageFlip struct {
	Type        uint32
	Length      uint32
	UserData    uint64
	TvSec       uint32
	TvUsec      uint32
	Sequence    uint32
	CrtcID      uint32
}

const drmEventTypePageFlip = 0x02

// readPageFlipEvent parses one completion event from the DRM fd's
// readable payload, returning the cookie passed to schedulePageFlip.
func readPageFlipEvent(data []byte) (cookie uint64, ok bool) {
	var ev drmEventPageFlip
	if len(data) < int(unsafe.Sizeof(ev)) {
		return 0, false
	}
	ev = *(*drmEventPageFlip)(unsafe.Pointer(&data[0]))
	if ev.Type != drmEventTypePageFlip {
		return 0, false
	}
	return ev.UserData, true
}
