// Command driftd is the compositor core's main process: the device
// manager, the exhibitor, and the Wayland engine each run on their own
// OS thread, coordinated through the coordinator and the signal bus
// (§5).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/driftwm/drift/internal/bus"
	"github.com/driftwm/drift/internal/config"
	"github.com/driftwm/drift/internal/coordinator"
	"github.com/driftwm/drift/internal/devicemgr"
	"github.com/driftwm/drift/internal/drmoutput"
	"github.com/driftwm/drift/internal/exhibitor"
	"github.com/driftwm/drift/internal/logging"
	"github.com/driftwm/drift/internal/types"
	"github.com/driftwm/drift/internal/version"
	"github.com/driftwm/drift/internal/wlengine"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	log.Info().Str("version", version.String()).Msg("starting driftd")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}
	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = "/run/user/0"
	}

	logger := logging.New(log.Logger)

	if err := run(cfg, logger); err != nil {
		log.Fatal().Err(err).Msg("driftd exited with error")
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	b, err := bus.New()
	if err != nil {
		return fmt.Errorf("create bus: %w", err)
	}
	defer b.Close()

	coord := coordinator.New(nil)

	engine, err := wlengine.New(logger, coord, b, cfg.RuntimeDir)
	if err != nil {
		return fmt.Errorf("create wayland engine: %w", err)
	}
	defer engine.Close()
	os.Setenv("WAYLAND_DISPLAY", engine.SocketPath())

	devPub, err := b.NewPublisher()
	if err != nil {
		return fmt.Errorf("create device manager publisher: %w", err)
	}
	defer devPub.Close()
	devCfg := devicemgr.DefaultConfig()
	devCfg.DRMDevice = cfg.DRMDevice
	if cfg.InputGlob != "" {
		devCfg.InputGlob = cfg.InputGlob
	}
	devMgr := devicemgr.New(devCfg, logger, devPub)

	hotplug, err := devicemgr.NewHotplugWatcher(devCfg.InputDir, logger, devPub)
	if err != nil {
		return fmt.Errorf("create hotplug watcher: %w", err)
	}
	defer hotplug.Stop()

	suspend, err := devicemgr.NewSuspendWatcher(logger, devMgr)
	if err != nil {
		logger.Warn("suspend watcher unavailable", "err", err)
		suspend = nil
	} else {
		defer suspend.Stop()
	}

	if err := devMgr.Enumerate(); err != nil {
		logger.Warn("initial device enumeration failed", "err", err)
	}

	go hotplug.Run()
	if suspend != nil {
		go suspend.Run()
	}

	exhibitorPub, err := b.NewPublisher()
	if err != nil {
		return fmt.Errorf("create exhibitor publisher: %w", err)
	}
	defer exhibitorPub.Close()

	rendererCfg := drmoutput.RendererConfig{
		VsyncTimeout:     time.Duration(cfg.Renderer.VsyncTimeoutMS) * time.Millisecond,
		MaxInFlightFlips: cfg.Renderer.MaxInFlightFlips,
	}
	outputFactory := func(id types.OutputID, bundle types.DrmBundle) (exhibitor.Output, error) {
		return drmoutput.NewDrmOutput(id, bundle, rendererCfg)
	}
	loop := bus.NewEventLoop(b, logger, func() (bus.Module, error) {
		return exhibitor.New(logger, coord, exhibitorPub, outputFactory), nil
	})
	loop.BlockedSignals = []unix.Signal{unix.SIGINT, unix.SIGTERM}

	dumper := newFrameDumper(logger, b, os.TempDir())
	go dumper.Run()

	errCh := make(chan error, 3)
	go func() { errCh <- loop.Run() }()
	go func() { errCh <- engine.Run() }()
	go func() { errCh <- engine.RunGateway() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("a core thread exited", "err", err)
		}
	}

	engine.Stop()
	if ctrlPub, err := b.NewPublisher(); err == nil {
		_ = ctrlPub.Broadcast(bus.CommandTerminate)
		ctrlPub.Close()
	}
	return nil
}
