package wlengine

import (
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/wlproxy"
)

// globalOrder is the fixed registration order every proxy advertises
// its globals in, before the per-output globals (§4.6 "register every
// known protocol global with the proxy in a fixed order").
var globalOrder = []struct {
	iface   string
	version uint32
}{
	{"wl_shm", 1},
	{"wl_compositor", 4},
	{"wl_shell", 1},
	{"zxdg_shell_v6", 1},
	{"wl_data_device_manager", 3},
	{"wl_seat", 5},
	{"wl_subcompositor", 1},
	{"weston_screenshooter", 1},
	{"zwp_linux_dmabuf_v1", 1},
	{"wl_drm", 2},
}

// registerGlobals registers every protocol global in the fixed order,
// followed by one wl_output global per currently known output, in
// discovery order (§4.6).
func (e *Engine) registerGlobals(p *wlproxy.Proxy) {
	for _, g := range globalOrder {
		p.RegisterGlobal(g.iface, g.version)
	}

	e.outMu.Lock()
	outputs := append([]types.OutputGeometry(nil), e.outputs...)
	e.outMu.Unlock()
	for _, geom := range outputs {
		p.RegisterOutputGlobal(geom)
	}
}
