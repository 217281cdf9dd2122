package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/robosim/sensors/config"
	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/rendering/raster"
	"github.com/robosim/sensors/sensor"
)

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger("camsim")
	}
	return logging.NewLogger("camsim")
}

// ValidateAction reads and checks the config, then reports what it describes.
func ValidateAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := readConfig(c, logger)
	if err != nil {
		return err
	}
	types := map[string]int{}
	for _, s := range cfg.Sensors {
		types[s.Type]++
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	printf(c.App.Writer, "%s is valid: scene %q with %d objects", cfg.ConfigFilePath, cfg.Scene.Name, len(cfg.Scene.Objects))
	for _, name := range names {
		printf(c.App.Writer, "  %d %s sensor(s)", types[name], name)
	}
	return nil
}

// readConfig reads the --config file and checks the parts config.Read cannot: that every
// sensor type is registered and that the scene builds.
func readConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg, err := config.Read(c.Context, c.String(flagConfig), logger)
	if err != nil {
		return nil, err
	}
	var errs error
	for _, s := range cfg.Sensors {
		if _, ok := sensor.Lookup(s.Type); !ok {
			errs = multierr.Append(errs, errors.Errorf("sensor %s has unknown type %q, known types are %v", s.Name, s.Type, sensor.RegisteredTypes()))
		}
	}
	if _, err := raster.NewSceneFromConfig(cfg.Scene, logger); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "building scene"))
	}
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
