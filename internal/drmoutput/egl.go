//go:build linux

package drmoutput

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// EGL bindings, loaded the same way gbm.go and the teacher's libX11
// binding do: purego.Dlopen + purego.RegisterLibFunc, no cgo.
var (
	libEGL uintptr

	eglGetDisplay       func(nativeDisplay uintptr) uintptr
	eglInitialize       func(display uintptr, major, minor *int32) int32
	eglBindAPI          func(api uint32) int32
	eglChooseConfig     func(display uintptr, attribs *int32, configs *uintptr, configSize int32, numConfig *int32) int32
	eglCreateContext    func(display, config, shareContext uintptr, attribs *int32) uintptr
	eglCreateWindowSurface func(display, config uintptr, nativeWindow uintptr, attribs *int32) uintptr
	eglMakeCurrent      func(display, draw, read, context uintptr) int32
	eglSwapBuffers      func(display, surface uintptr) int32
	eglDestroyContext   func(display, context uintptr) int32
	eglDestroySurface   func(display, surface uintptr) int32
	eglTerminate        func(display uintptr) int32
)

const (
	eglOpenGLESAPI = 0x30A0

	eglSurfaceType  = 0x3033
	eglWindowBit    = 0x0004
	eglRenderable   = 0x3040
	eglOpenGLESBit2 = 0x0004
	eglRedSize      = 0x3024
	eglGreenSize    = 0x3023
	eglBlueSize     = 0x3022
	eglAlphaSize    = 0x3021
	eglNone         = 0x3038

	eglContextClientVersion = 0x3098
)

func loadEGL() error {
	if libEGL != 0 {
		return nil
	}
	var err error
	for _, path := range []string{"libEGL.so.1", "libEGL.so"} {
		libEGL, err = purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("dlopen libEGL: %w", err)
	}

	purego.RegisterLibFunc(&eglGetDisplay, libEGL, "eglGetDisplay")
	purego.RegisterLibFunc(&eglInitialize, libEGL, "eglInitialize")
	purego.RegisterLibFunc(&eglBindAPI, libEGL, "eglBindAPI")
	purego.RegisterLibFunc(&eglChooseConfig, libEGL, "eglChooseConfig")
	purego.RegisterLibFunc(&eglCreateContext, libEGL, "eglCreateContext")
	purego.RegisterLibFunc(&eglCreateWindowSurface, libEGL, "eglCreateWindowSurface")
	purego.RegisterLibFunc(&eglMakeCurrent, libEGL, "eglMakeCurrent")
	purego.RegisterLibFunc(&eglSwapBuffers, libEGL, "eglSwapBuffers")
	purego.RegisterLibFunc(&eglDestroyContext, libEGL, "eglDestroyContext")
	purego.RegisterLibFunc(&eglDestroySurface, libEGL, "eglDestroySurface")
	purego.RegisterLibFunc(&eglTerminate, libEGL, "eglTerminate")
	return nil
}

// eglState binds one GL context to one GBM surface, following §4.5's
// "bind an EGL context to the GBM surface" construction step.
type eglState struct {
	display uintptr
	config  uintptr
	context uintptr
	surface uintptr
}

func newEGLState(gbmDev *gbmDevice) (*eglState, error) {
	if err := loadEGL(); err != nil {
		return nil, err
	}

	display := eglGetDisplay(gbmDev.dev)
	if display == 0 {
		return nil, fmt.Errorf("eglGetDisplay failed")
	}
	if eglInitialize(display, nil, nil) == 0 {
		return nil, fmt.Errorf("eglInitialize failed")
	}
	if eglBindAPI(eglOpenGLESAPI) == 0 {
		return nil, fmt.Errorf("eglBindAPI failed")
	}

	attribs := []int32{
		eglSurfaceType, eglWindowBit,
		eglRenderable, eglOpenGLESBit2,
		eglRedSize, 8,
		eglGreenSize, 8,
		eglBlueSize, 8,
		eglAlphaSize, 0,
		eglNone,
	}
	var config uintptr
	var numConfig int32
	if eglChooseConfig(display, &attribs[0], &config, 1, &numConfig) == 0 || numConfig == 0 {
		return nil, fmt.Errorf("eglChooseConfig found no usable config")
	}

	ctxAttribs := []int32{eglContextClientVersion, 2, eglNone}
	context := eglCreateContext(display, config, 0, &ctxAttribs[0])
	if context == 0 {
		return nil, fmt.Errorf("eglCreateContext failed")
	}

	surface := eglCreateWindowSurface(display, config, gbmDev.surface, nil)
	if surface == 0 {
		eglDestroyContext(display, context)
		return nil, fmt.Errorf("eglCreateWindowSurface failed")
	}

	if eglMakeCurrent(display, surface, surface, context) == 0 {
		eglDestroySurface(display, surface)
		eglDestroyContext(display, context)
		return nil, fmt.Errorf("eglMakeCurrent failed")
	}

	return &eglState{display: display, config: config, context: context, surface: surface}, nil
}

func (e *eglState) makeCurrent() error {
	if eglMakeCurrent(e.display, e.surface, e.surface, e.context) == 0 {
		return fmt.Errorf("eglMakeCurrent failed")
	}
	return nil
}

func (e *eglState) swapBuffers() error {
	if eglSwapBuffers(e.display, e.surface) == 0 {
		return fmt.Errorf("eglSwapBuffers failed")
	}
	return nil
}

func (e *eglState) close() {
	eglDestroySurface(e.display, e.surface)
	eglDestroyContext(e.display, e.context)
	eglTerminate(e.display)
}
