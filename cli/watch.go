package cli

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering"
	"github.com/robosim/sensors/rendering/raster"
)

// sceneSetter is the part of the manager the watcher drives.
type sceneSetter interface {
	SetScene(rendering.Scene)
}

// sceneWatcher rebuilds the scene whenever the config file is written and hands it to the
// sensors. Sensors are not recreated; only the scene section is reread.
type sceneWatcher struct {
	path    string
	target  sceneSetter
	logger  logging.Logger
	watcher *fsnotify.Watcher
}

func newSceneWatcher(path string, target sceneSetter, logger logging.Logger) (*sceneWatcher, error) {
	if path == "" {
		return nil, errors.New("cannot watch a config that was not read from a file")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return nil, multierr.Combine(err, watcher.Close())
	}
	return &sceneWatcher{path: abs, target: target, logger: logger, watcher: watcher}, nil
}

// run blocks until ctx is done, reloading the scene on every change to the config file.
func (w *sceneWatcher) run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.Debugw("closing config watcher", "error", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("config watcher error", "path", w.path, "error", err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := w.reload(); err != nil {
				w.logger.Warnw("cannot reload scene, keeping the current one", "path", w.path, "error", err)
			}
		}
	}
}

func (w *sceneWatcher) reload() error {
	cfg, err := config.ReadScene(w.path)
	if err != nil {
		return err
	}
	scene, err := raster.NewSceneFromConfig(*cfg, w.logger)
	if err != nil {
		return err
	}
	w.target.SetScene(scene)
	w.logger.Infow("reloaded scene", "path", w.path, "scene", cfg.Name, "objects", len(cfg.Objects))
	return nil
}
