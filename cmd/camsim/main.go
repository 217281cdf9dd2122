// Package main is the camsim command itself.
package main

import (
	"log"
	"os"

	"github.com/robosim/sensors/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
