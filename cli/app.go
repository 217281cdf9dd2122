// Package cli implements the camsim command line: validating a simulator configuration and
// running its sensors.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	// registers the built-in sensor types.
	_ "github.com/robosim/sensors/sensor/camera"
	_ "github.com/robosim/sensors/sensor/depthcamera"
)

const (
	// Flags.
	flagConfig   = "config"
	flagDebug    = "debug"
	flagStep     = "step"
	flagDuration = "duration"
	flagWeb      = "web"
	flagWatch    = "watch"
	flagColorMap = "color-map"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	configFlag := &cli.StringFlag{
		Name:     flagConfig,
		Aliases:  []string{"c"},
		Usage:    "load configuration from `FILE`",
		Required: true,
	}
	return &cli.App{
		Name:            "camsim",
		Usage:           "simulate camera and depth camera sensors",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "check a configuration file without running it",
				UsageText: "camsim validate --config FILE",
				Flags:     []cli.Flag{configFlag},
				Action:    ValidateAction,
			},
			{
				Name:      "run",
				Usage:     "run the sensors of a configuration",
				UsageText: "camsim run --config FILE [--step 10ms] [--duration 0] [--web :8080] [--watch]",
				Flags: []cli.Flag{
					configFlag,
					&cli.DurationFlag{
						Name:  flagStep,
						Value: defaultStep,
						Usage: "simulation time advanced per tick",
					},
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "stop after this much wall time, 0 runs until interrupted",
					},
					&cli.StringFlag{
						Name:  flagWeb,
						Usage: "serve the latest frames on `ADDRESS`",
					},
					&cli.BoolFlag{
						Name:  flagWatch,
						Usage: "reload the scene when the config file changes",
					},
					&cli.StringFlag{
						Name:  flagColorMap,
						Value: "grayscale",
						Usage: "how the frame server draws depth images: grayscale, moreland or hue",
					},
				},
				Action: RunAction,
			},
		},
	}
}
