package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ds7505/cmd/sensors/config"
	"github.com/mklimuk/ds7505/cmd/sensors/console"
)

var settings = config.Default()

func main() {
	os.Exit(run())
}

func run() int {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Printf("unexpected error: %v", err)
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			return exerr.ExitCode()
		}
		return 1
	}
	return 0
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "sensors"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", config.Version, config.Date, config.Commit)
	app.Usage = "DS7505 thermometer and thermostat cli"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "yaml settings file",
			EnvVars: []string{"SENSORS_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter (mcp2221, periph, gobot, sim)",
			Value:   config.AdapterMCP2221,
		},
		&cli.StringFlag{
			Name:  "bus",
			Usage: "bus name (periph) or number (gobot)",
		},
		&cli.UintFlag{
			Name:  "strap",
			Usage: "A2..A0 address strap",
		},
		&cli.UintFlag{
			Name:  "prefix",
			Usage: "4-bit address prefix",
			Value: uint(config.Default().Prefix),
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "read thresholds back after writing them",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return loadSettings(c)
	}
	app.Commands = cli.Commands{
		&tempReadCmd,
		&configCmd,
		&thresholdCmd,
		&powerCmd,
		&nvCmd,
		&resetCmd,
		&attachCmd,
		&watchCmd,
		&snapshotCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	// exit codes are handled by run
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

// loadSettings applies the settings file and then explicitly set flags.
func loadSettings(c *cli.Context) error {
	settings = config.Default()
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		settings = cfg
		slog.Debug("settings loaded", "path", path)
	}
	if c.IsSet("adapter") {
		settings.Adapter = c.String("adapter")
	}
	if c.IsSet("bus") {
		settings.Bus = c.String("bus")
	}
	for name, dst := range map[string]*byte{"strap": &settings.Strap, "prefix": &settings.Prefix} {
		if !c.IsSet(name) {
			continue
		}
		v := c.Uint(name)
		if v > 0xFF {
			return console.Exit(1, "%s %d out of range", name, v)
		}
		*dst = byte(v)
	}
	if c.IsSet("verify") {
		settings.VerifyThresholds = c.Bool("verify")
	}
	if err := settings.Validate(); err != nil {
		return console.Exit(1, "invalid settings: %s", console.Red(err))
	}
	return nil
}
