// Package config loads process configuration from the environment,
// the way api/pkg/config.LoadServerConfig does.
package config

import "github.com/kelseyhightower/envconfig"

// Config controls device discovery, the Wayland listen socket search
// range, and renderer tuning (§10.2).
type Config struct {
	// DRMDevice overrides automatic /dev/dri/card* discovery with a
	// single device path, wired into devicemgr.Config.DRMDevice.
	DRMDevice string `envconfig:"DRIFT_DRM_DEVICE"`
	// InputGlob selects which nodes under /dev/input devicemgr scans,
	// matched against each node's base name (devicemgr.Config.InputGlob).
	InputGlob string `envconfig:"DRIFT_INPUT_GLOB" default:"event*"`
	// RuntimeDir is searched for wayland-0..9; defaults to XDG_RUNTIME_DIR.
	RuntimeDir string `envconfig:"XDG_RUNTIME_DIR"`

	Renderer Renderer
}

// Renderer tunes the DRM output's page-flip pacing (§4.5), wired into
// drmoutput.RendererConfig at construction.
type Renderer struct {
	// VsyncTimeoutMS bounds how long a scheduled page flip may stay
	// outstanding before Draw treats it as wedged and reclaims its
	// buffer.
	VsyncTimeoutMS int `envconfig:"DRIFT_VSYNC_TIMEOUT_MS" default:"50"`
	// MaxInFlightFlips caps how many page flips Draw may schedule per
	// output before a completion event frees up room for another.
	MaxInFlightFlips int `envconfig:"DRIFT_MAX_INFLIGHT_FLIPS" default:"1"`
}

// Load reads Config from the environment, applying the defaults above
// for anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
