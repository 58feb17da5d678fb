//go:build linux

package drmoutput

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// gbm bindings are loaded with purego.Dlopen + purego.RegisterLibFunc,
// the same no-cgo native-library idiom the teacher's clipboard package
// uses for libX11 (§4.5 construction step 2 "Create a GBM device +
// surface sized to the mode").
var (
	libgbm uintptr

	gbmCreateDevice     func(fd int32) uintptr
	gbmDeviceDestroy    func(dev uintptr)
	gbmSurfaceCreate    func(dev uintptr, width, height, format, flags uint32) uintptr
	gbmSurfaceDestroy   func(surface uintptr)
	gbmSurfaceLockFrontBuffer   func(surface uintptr) uintptr
	gbmSurfaceReleaseBuffer     func(surface uintptr, bo uintptr)
	gbmBoGetHandle      func(bo uintptr) uint32
	gbmBoGetStride      func(bo uintptr) uint32
	gbmBoGetWidth       func(bo uintptr) uint32
	gbmBoGetHeight      func(bo uintptr) uint32
)

const (
	gbmFormatXRGB8888 = 0x34325258 // fourcc 'XR24'
	gbmBoUseScanout   = 1 << 0
	gbmBoUseRendering = 1 << 2
)

func loadGBM() error {
	if libgbm != 0 {
		return nil
	}
	var err error
	for _, path := range []string{"libgbm.so.1", "libgbm.so"} {
		libgbm, err = purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("dlopen libgbm: %w", err)
	}

	purego.RegisterLibFunc(&gbmCreateDevice, libgbm, "gbm_create_device")
	purego.RegisterLibFunc(&gbmDeviceDestroy, libgbm, "gbm_device_destroy")
	purego.RegisterLibFunc(&gbmSurfaceCreate, libgbm, "gbm_surface_create")
	purego.RegisterLibFunc(&gbmSurfaceDestroy, libgbm, "gbm_surface_destroy")
	purego.RegisterLibFunc(&gbmSurfaceLockFrontBuffer, libgbm, "gbm_surface_lock_front_buffer")
	purego.RegisterLibFunc(&gbmSurfaceReleaseBuffer, libgbm, "gbm_surface_release_buffer")
	purego.RegisterLibFunc(&gbmBoGetHandle, libgbm, "gbm_bo_get_handle") // returns union's uint32 member on little-endian
	purego.RegisterLibFunc(&gbmBoGetStride, libgbm, "gbm_bo_get_stride")
	purego.RegisterLibFunc(&gbmBoGetWidth, libgbm, "gbm_bo_get_width")
	purego.RegisterLibFunc(&gbmBoGetHeight, libgbm, "gbm_bo_get_height")
	return nil
}

// gbmDevice wraps a GBM device + scanout surface for one output.
type gbmDevice struct {
	dev     uintptr
	surface uintptr
	width   uint32
	height  uint32
}

func newGBMDevice(drmFD int32, width, height uint32) (*gbmDevice, error) {
	if err := loadGBM(); err != nil {
		return nil, err
	}
	dev := gbmCreateDevice(drmFD)
	if dev == 0 {
		return nil, fmt.Errorf("gbm_create_device failed")
	}
	surface := gbmSurfaceCreate(dev, width, height, gbmFormatXRGB8888, gbmBoUseScanout|gbmBoUseRendering)
	if surface == 0 {
		gbmDeviceDestroy(dev)
		return nil, fmt.Errorf("gbm_surface_create failed")
	}
	return &gbmDevice{dev: dev, surface: surface, width: width, height: height}, nil
}

func (g *gbmDevice) close() {
	gbmSurfaceDestroy(g.surface)
	gbmDeviceDestroy(g.dev)
}

// gbmBufferObject is one locked front buffer, ready to become a DRM
// framebuffer (§4.5 "lock the current front buffer from GBM").
type gbmBufferObject struct {
	handle uintptr
}

func (g *gbmDevice) lockFrontBuffer() (*gbmBufferObject, error) {
	bo := gbmSurfaceLockFrontBuffer(g.surface)
	if bo == 0 {
		return nil, fmt.Errorf("gbm_surface_lock_front_buffer failed")
	}
	return &gbmBufferObject{handle: bo}, nil
}

func (g *gbmDevice) releaseBuffer(bo *gbmBufferObject) {
	if bo == nil {
		return
	}
	gbmSurfaceReleaseBuffer(g.surface, bo.handle)
}

func (bo *gbmBufferObject) gemHandle() uint32 { return gbmBoGetHandle(bo.handle) }
func (bo *gbmBufferObject) stride() uint32    { return gbmBoGetStride(bo.handle) }
func (bo *gbmBufferObject) width() uint32     { return gbmBoGetWidth(bo.handle) }
func (bo *gbmBufferObject) height() uint32    { return gbmBoGetHeight(bo.handle) }
