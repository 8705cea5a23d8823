package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ds7505/cmd/sensors/config"
	"github.com/mklimuk/ds7505/cmd/sensors/console"
	"github.com/mklimuk/ds7505/environment"
)

var configCmd = cli.Command{
	Name:    "config",
	Aliases: []string{"cfg"},
	Usage:   "configuration register",
	Subcommands: cli.Commands{
		&configGetCmd,
		&configSetCmd,
	},
}

var configGetCmd = cli.Command{
	Name: "get",
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		cfg, err := d.sensor.ReadConfig(ctx)
		if err != nil {
			return console.Exit(1, "could not read configuration: %s", console.Red(err))
		}
		printConfig(cfg)
		return nil
	}),
}

var configSetCmd = cli.Command{
	Name:  "set",
	Usage: "write the configuration register; omitted fields keep their current value",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "resolution", Aliases: []string{"r"}, Usage: "9, 10, 11 or 12 bits"},
		&cli.IntFlag{Name: "faults", Aliases: []string{"f"}, Usage: "1, 2, 4 or 6 consecutive faults"},
		&cli.StringFlag{Name: "polarity", Aliases: []string{"p"}, Usage: "low or high"},
		&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "comparator or interrupt"},
	},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		current, err := d.sensor.ReadConfig(ctx)
		if err != nil {
			return console.Exit(1, "could not read configuration: %s", console.Red(err))
		}
		res, ft, pol, mode := current.Resolution(), current.FaultTolerance(), current.Polarity(), current.Mode()
		if c.IsSet("resolution") {
			if res, err = parseResolution(c.Int("resolution")); err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
		}
		if c.IsSet("faults") {
			if ft, err = parseFaultTolerance(c.Int("faults")); err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
		}
		if c.IsSet("polarity") {
			if pol, err = (config.Alert{Polarity: c.String("polarity")}).Pol(); err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
		}
		if c.IsSet("mode") {
			if mode, err = parseMode(c.String("mode")); err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
		}
		written, err := d.sensor.WriteConfig(ctx, res, ft, pol, mode)
		if err != nil {
			return console.Exit(1, "could not write configuration: %s", console.Red(err))
		}
		printConfig(written)
		return nil
	}),
}

var attachCmd = cli.Command{
	Name:  "attach",
	Usage: "switch the thermostat output to interrupt mode for alert handling",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "polarity", Aliases: []string{"p"}, Usage: "low or high (default from settings)"},
	},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		alert := settings.Alert
		if c.IsSet("polarity") {
			alert.Polarity = c.String("polarity")
		}
		pol, err := alert.Pol()
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		cfg, err := d.sensor.Attach(ctx, pol)
		if err != nil {
			return console.Exit(1, "could not attach: %s", console.Red(err))
		}
		printConfig(cfg)
		return nil
	}),
}

func printConfig(cfg environment.Config) {
	console.Printf("%s %s\n", console.PictoNotebook, console.Bold(fmt.Sprintf("%#02x", byte(cfg))))
	console.Printf("resolution:      %s (%s)\n", console.White(cfg.Resolution()), cfg.Resolution().ConversionTime())
	console.Printf("fault tolerance: %s\n", console.White(cfg.FaultTolerance()))
	console.Printf("polarity:        %s\n", console.White(cfg.Polarity()))
	console.Printf("mode:            %s\n", console.White(cfg.Mode()))
	console.Printf("power:           %s\n", console.White(cfg.PowerMode()))
	if cfg.MemoryBusy() {
		console.Printf("memory:          %s\n", console.Yellow("busy"))
	}
}

func parseResolution(bits int) (environment.Resolution, error) {
	switch bits {
	case 9:
		return environment.Resolution9Bits, nil
	case 10:
		return environment.Resolution10Bits, nil
	case 11:
		return environment.Resolution11Bits, nil
	case 12:
		return environment.Resolution12Bits, nil
	default:
		return 0, fmt.Errorf("unsupported resolution %d (expected 9-12)", bits)
	}
}

func parseFaultTolerance(n int) (environment.FaultTolerance, error) {
	switch n {
	case 1:
		return environment.FaultTolerance1, nil
	case 2:
		return environment.FaultTolerance2, nil
	case 4:
		return environment.FaultTolerance4, nil
	case 6:
		return environment.FaultTolerance6, nil
	default:
		return 0, fmt.Errorf("unsupported fault tolerance %d (expected 1, 2, 4 or 6)", n)
	}
}

func parseMode(mode string) (environment.ThermostatMode, error) {
	switch mode {
	case "comparator", "cmp":
		return environment.ModeComparator, nil
	case "interrupt", "int":
		return environment.ModeInterrupt, nil
	default:
		return 0, fmt.Errorf("unknown thermostat mode %q", mode)
	}
}
