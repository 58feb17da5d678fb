//go:build !linux

package drmoutput

import (
	"fmt"
	"os"

	"github.com/driftwm/drift/internal/types"
)

// Stubs for non-Linux platforms; drmoutput only runs on Linux.

func openDevice(path string) (*os.File, error) {
	return nil, fmt.Errorf("DRM ioctls only supported on Linux")
}

func queryModes(f *os.File, connectorID uint32) ([]types.Mode, error) {
	return nil, fmt.Errorf("DRM ioctls only supported on Linux")
}

func addFB(f *os.File, width, height, pitch, handle uint32) (uint32, error) {
	return 0, fmt.Errorf("DRM ioctls only supported on Linux")
}

func rmFB(f *os.File, fbID uint32) error {
	return fmt.Errorf("DRM ioctls only supported on Linux")
}

func setCrtc(f *os.File, connectorID, crtcID, fbID uint32, modeIndex int) error {
	return fmt.Errorf("DRM ioctls only supported on Linux")
}

func schedulePageFlip(f *os.File, crtcID, fbID uint32, cookie uint64) error {
	return fmt.Errorf("DRM ioctls only supported on Linux")
}

func readPageFlipEvent(data []byte) (cookie uint64, ok bool) {
	return 0, false
}
