// Package devicemgr implements the device manager described in §4.3:
// it enumerates input event nodes and DRM output nodes, classifies
// input nodes, and publishes discoveries and hot-plug events on the
// signal bus as the exhibitor's and engine's external collaborator.
package devicemgr

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/types"
)

// Kind classifies an input event node (§4.3 "classifies each input
// node ... into {mouse, touchpad, keyboard, unknown}").
type Kind int

const (
	KindUnknown Kind = iota
	KindMouse
	KindTouchpad
	KindKeyboard
)

func (k Kind) String() string {
	switch k {
	case KindMouse:
		return "mouse"
	case KindTouchpad:
		return "touchpad"
	case KindKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// InputNode is a discovered /dev/input/event* node.
type InputNode struct {
	Path string
	Kind Kind
}

const (
	inputDir = "/dev/input"
	drmDir   = "/dev/dri"
)

// Manager owns node discovery and hot-plug watching.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	pub    *bus.Publisher
}

// Config configures directory roots; tests override these to scan a
// scratch tree instead of the real device filesystem.
type Config struct {
	InputDir string
	DRMDir   string

	// InputGlob narrows ScanInputs to paths under InputDir matching
	// this pattern (filepath.Match syntax against the base name),
	// overriding the default "event*". A caller wanting e.g. only
	// the first handful of event nodes can set "event[0-9]".
	InputGlob string

	// DRMDevice, if set, overrides automatic card* discovery in
	// ScanOutputs with this single device path.
	DRMDevice string
}

// DefaultConfig points at the real kernel device directories.
func DefaultConfig() Config {
	return Config{InputDir: inputDir, DRMDir: drmDir, InputGlob: defaultInputGlob}
}

const defaultInputGlob = "event*"

// New creates a device manager publishing through pub.
func New(cfg Config, logger *slog.Logger, pub *bus.Publisher) *Manager {
	if cfg.InputDir == "" {
		cfg.InputDir = inputDir
	}
	if cfg.DRMDir == "" {
		cfg.DRMDir = drmDir
	}
	if cfg.InputGlob == "" {
		cfg.InputGlob = defaultInputGlob
	}
	return &Manager{cfg: cfg, logger: logger, pub: pub}
}

// ScanInputs lists every node under InputDir matching InputGlob,
// classified by the udev-style properties exposed under
// /sys/class/input (§4.3 "classifies each input node by
// vendor-provided properties").
func (m *Manager) ScanInputs() ([]InputNode, error) {
	entries, err := os.ReadDir(m.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.cfg.InputDir, err)
	}

	var nodes []InputNode
	for _, e := range entries {
		matched, err := filepath.Match(m.cfg.InputGlob, e.Name())
		if err != nil {
			return nil, fmt.Errorf("match input glob %q: %w", m.cfg.InputGlob, err)
		}
		if !matched {
			continue
		}
		path := filepath.Join(m.cfg.InputDir, e.Name())
		nodes = append(nodes, InputNode{Path: path, Kind: classify(e.Name())})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
	return nodes, nil
}

// classify inspects the capability bitmask udev would have exposed as
// ID_INPUT_MOUSE / ID_INPUT_TOUCHPAD / ID_INPUT_KEYBOARD properties.
// Without a live udev database to query, the event-node's sysfs
// capability report is read directly (§4.3: "by vendor-provided
// properties" -- the properties are whatever the kernel node reports,
// udev being only one consumer of them).
func classify(eventName string) Kind {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "ev")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return KindUnknown
	}
	mask := strings.TrimSpace(string(data))

	// EV_REL (bit 2) without EV_KEY's full keyboard range indicates a
	// pointing device; EV_ABS (bit 3) with EV_KEY indicates a touchpad;
	// EV_KEY alone (bit 1) indicates a keyboard. The kernel reports the
	// mask as a space-separated list of hex words, most significant
	// first.
	words := strings.Fields(mask)
	if len(words) == 0 {
		return KindUnknown
	}
	last := words[len(words)-1]
	var bits uint64
	fmt.Sscanf(last, "%x", &bits)

	const (
		evKey = 1 << 1
		evRel = 1 << 2
		evAbs = 1 << 3
	)

	switch {
	case bits&evAbs != 0 && bits&evKey != 0:
		return KindTouchpad
	case bits&evRel != 0:
		return KindMouse
	case bits&evKey != 0:
		return KindKeyboard
	default:
		return KindUnknown
	}
}

// ScanOutputs lists every /dev/dri/card* node as a DrmBundle candidate
// (§4.3 "Enumerates ... DRM output nodes (card*)"). CrtcID/ConnectorID
// are left zero here; the DRM output package resolves them once it
// opens the node (§4.5 "query the connector for modes"). If DRMDevice
// is set, automatic discovery is skipped entirely and that single
// path is returned as the only candidate.
func (m *Manager) ScanOutputs() ([]types.DrmBundle, error) {
	if m.cfg.DRMDevice != "" {
		return []types.DrmBundle{{Path: m.cfg.DRMDevice}}, nil
	}

	entries, err := os.ReadDir(m.cfg.DRMDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.cfg.DRMDir, err)
	}

	var bundles []types.DrmBundle
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "card") {
			continue
		}
		bundles = append(bundles, types.DrmBundle{Path: filepath.Join(m.cfg.DRMDir, e.Name())})
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].Path < bundles[j].Path })
	return bundles, nil
}

// Enumerate performs a full scan and publishes one bus.OutputFound per
// discovered output node and one bus.DeviceEvent{Added: true} per
// input node, mirroring what the hotplug watcher emits for individual
// add events.
func (m *Manager) Enumerate() error {
	inputs, err := m.ScanInputs()
	if err != nil {
		return fmt.Errorf("enumerate inputs: %w", err)
	}
	for _, n := range inputs {
		if err := m.pub.Publish(bus.DeviceEvent{Added: true, InputPath: n.Path}); err != nil {
			return fmt.Errorf("publish input node %s: %w", n.Path, err)
		}
	}

	outputs, err := m.ScanOutputs()
	if err != nil {
		return fmt.Errorf("enumerate outputs: %w", err)
	}
	for i := range outputs {
		bundle := outputs[i]
		if err := m.pub.Publish(bus.OutputFound{Bundle: bundle}); err != nil {
			return fmt.Errorf("publish output %s: %w", bundle.Path, err)
		}
	}
	return nil
}
