package types

// Mode is a DRM display mode: pixel size and refresh rate.
type Mode struct {
	Width   int
	Height  int
	Refresh int // mHz, the unit wl_output.mode carries (drmModeModeInfo.Vrefresh is Hz)
}

// OutputGeometry is the subset of §3 Output attributes the Wayland
// wl_output global advertises: pixel size, physical size in
// millimeters, and global position (§12 Output geometry advertisement).
type OutputGeometry struct {
	X, Y                 int32
	PhysicalWidthMM       int32
	PhysicalHeightMM      int32
	Mode                  Mode
}

// DrmBundle is what the device manager publishes for each discovered
// output (§4.3): an open DRM fd, its device path, and the connector
// and CRTC the exhibitor should bind for mode-setting.
type DrmBundle struct {
	FD          int
	Path        string
	CrtcID      uint32
	ConnectorID uint32
}
