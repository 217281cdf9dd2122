package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/manager"
	"github.com/robosim/sensors/rendering/raster"
	"github.com/robosim/sensors/rimage"
	"github.com/robosim/sensors/transport"
	"github.com/robosim/sensors/web"
)

const defaultStep = 10 * time.Millisecond

type runOptions struct {
	step     time.Duration
	duration time.Duration
	webAddr  string
	watch    bool
	colorMap rimage.ColorMap
}

// RunAction runs the configured sensors until interrupted or --duration elapses.
func RunAction(c *cli.Context) error {
	logger := newLogger(c)
	defer func() {
		goutils.UncheckedError(logger.Sync())
	}()
	// sensors built without a logger fall back to the global one
	logging.ReplaceGlobal(logger)
	colorMap, err := rimage.ParseColorMap(c.String(flagColorMap))
	if err != nil {
		return err
	}
	opts := runOptions{
		step:     c.Duration(flagStep),
		duration: c.Duration(flagDuration),
		webAddr:  c.String(flagWeb),
		watch:    c.Bool(flagWatch),
		colorMap: colorMap,
	}
	if opts.step <= 0 {
		return errors.Errorf("--%s must be positive", flagStep)
	}
	cfg, err := readConfig(c, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Bool(flagDebug) {
		ctx = logging.EnableDebugMode(ctx, "")
	}
	if opts.duration > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	return run(ctx, cfg, opts, logger)
}

// run wires the scene, bus, manager and the optional frame server and scene watcher, and
// blocks until ctx is done or one of them fails.
func run(ctx context.Context, cfg *config.Config, opts runOptions, logger logging.Logger) (err error) {
	registry := logging.NewRegistry()
	managerLogger := registry.GetOrRegister("camsim.manager", logger.Sublogger("manager"))
	sceneLogger := registry.GetOrRegister("camsim.scene", logger.Sublogger("scene"))
	busLogger := registry.GetOrRegister("camsim.transport", logger.Sublogger("transport"))
	webLogger := registry.GetOrRegister("camsim.web", logger.Sublogger("web"))
	if len(cfg.Log) > 0 {
		if err := registry.UpdateConfig(cfg.Log, logger); err != nil {
			return err
		}
	}

	scene, err := raster.NewSceneFromConfig(cfg.Scene, sceneLogger)
	if err != nil {
		return err
	}
	bus := transport.NewBus(busLogger)
	mgr := manager.New(bus, managerLogger, manager.Options{Scene: scene})
	defer func() {
		if closeErr := mgr.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := mgr.CreateSensors(ctx, cfg.Sensors); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if opts.webAddr != "" {
		srv, err := web.NewServer(bus, webLogger)
		if err != nil {
			return err
		}
		defer func() {
			goutils.UncheckedError(srv.Close())
		}()
		srv.SetColorMap(opts.colorMap)
		for _, s := range mgr.Sensors() {
			if err := srv.Watch(s.Topic()); err != nil {
				return err
			}
		}
		g.Go(func() error {
			return srv.ListenAndServe(gctx, opts.webAddr)
		})
	}

	if opts.watch {
		w, err := newSceneWatcher(cfg.ConfigFilePath, mgr, sceneLogger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.run(gctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		if err := mgr.Run(gctx, opts.step); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	logger.Infow("running sensors", "sensors", len(mgr.Sensors()), "step", opts.step)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Infow("stopped", "sim_time", mgr.SimTime())
	return nil
}
