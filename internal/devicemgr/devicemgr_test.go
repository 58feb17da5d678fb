package devicemgr

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/types"
)

func newTestManager(t *testing.T) (*Manager, Config) {
	t.Helper()
	inputDir := t.TempDir()
	drmDir := t.TempDir()
	cfg := Config{InputDir: inputDir, DRMDir: drmDir}

	b, err := bus.New()
	require.NoError(t, err)
	t.Cleanup(b.Close)

	pub, err := b.NewPublisher()
	require.NoError(t, err)
	t.Cleanup(pub.Close)

	return New(cfg, slog.Default(), pub), cfg
}

func TestScanInputsListsEventNodesSorted(t *testing.T) {
	mgr, cfg := newTestManager(t)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "event3"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "event1"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "mouse0"), nil, 0o644)) // not an event node

	nodes, err := mgr.ScanInputs()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, filepath.Join(cfg.InputDir, "event1"), nodes[0].Path)
	require.Equal(t, filepath.Join(cfg.InputDir, "event3"), nodes[1].Path)
}

func TestScanInputsUnknownWithoutSysfs(t *testing.T) {
	mgr, cfg := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "event0"), nil, 0o644))

	nodes, err := mgr.ScanInputs()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, KindUnknown, nodes[0].Kind)
}

func TestScanOutputsListsCardNodes(t *testing.T) {
	mgr, cfg := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DRMDir, "card0"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DRMDir, "renderD128"), nil, 0o644))

	bundles, err := mgr.ScanOutputs()
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Equal(t, filepath.Join(cfg.DRMDir, "card0"), bundles[0].Path)
}

func TestScanInputsHonorsInputGlob(t *testing.T) {
	inputDir := t.TempDir()
	cfg := Config{InputDir: inputDir, InputGlob: "event[0-1]"}

	b, err := bus.New()
	require.NoError(t, err)
	t.Cleanup(b.Close)
	pub, err := b.NewPublisher()
	require.NoError(t, err)
	t.Cleanup(pub.Close)

	mgr := New(cfg, slog.Default(), pub)

	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "event0"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "event1"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "event2"), nil, 0o644))

	nodes, err := mgr.ScanInputs()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, filepath.Join(inputDir, "event0"), nodes[0].Path)
	require.Equal(t, filepath.Join(inputDir, "event1"), nodes[1].Path)
}

func TestScanOutputsHonorsDRMDeviceOverride(t *testing.T) {
	mgr, cfg := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DRMDir, "card0"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DRMDir, "card1"), nil, 0o644))

	mgr.cfg.DRMDevice = "/dev/dri/card7"

	bundles, err := mgr.ScanOutputs()
	require.NoError(t, err)
	require.Equal(t, []types.DrmBundle{{Path: "/dev/dri/card7"}}, bundles)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "mouse", KindMouse.String())
	require.Equal(t, "touchpad", KindTouchpad.String())
	require.Equal(t, "keyboard", KindKeyboard.String())
	require.Equal(t, "unknown", KindUnknown.String())
}

func TestEnumeratePublishesEachNode(t *testing.T) {
	mgr, cfg := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "event0"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DRMDir, "card0"), nil, 0o644))

	require.NoError(t, mgr.Enumerate())
}
