package main

import (
	"context"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/ds7505/cmd/sensors/console"
	"github.com/mklimuk/ds7505/environment"
)

var tempReadCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read the current temperature",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "every",
			Usage: "keep reading at this interval",
		},
	},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		every := c.Duration("every")
		for {
			temp, err := d.sensor.GetTemperature(ctx)
			if err != nil {
				return console.Exit(1, "error getting temperature read: %s", console.Red(err))
			}
			console.Printf("%s %s\n", console.PictoThermometer, console.White(environment.Celsius(temp)))
			if every <= 0 {
				return nil
			}
			select {
			case <-time.After(every):
			case <-ctx.Done():
				return nil
			}
		}
	}),
}

var thresholdCmd = cli.Command{
	Name:    "threshold",
	Aliases: []string{"th"},
	Usage:   "thermostat trip points",
	Subcommands: cli.Commands{
		&thresholdGetCmd,
		&thresholdSetCmd,
	},
}

var thresholdGetCmd = cli.Command{
	Name: "get",
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		tos, err := d.sensor.GetOverTemperature(ctx)
		if err != nil {
			return console.Exit(1, "could not read T_OS: %s", console.Red(err))
		}
		thyst, err := d.sensor.GetHysteresis(ctx)
		if err != nil {
			return console.Exit(1, "could not read T_HYST: %s", console.Red(err))
		}
		console.Printf("T_OS:   %s\nT_HYST: %s\n", console.White(environment.Celsius(tos)), console.White(environment.Celsius(thyst)))
		return nil
	}),
}

var thresholdSetCmd = cli.Command{
	Name:  "set",
	Usage: "write T_OS and/or T_HYST (volatile until nv copy)",
	Flags: []cli.Flag{
		&cli.Float64Flag{Name: "os", Usage: "over-temperature trip point in °C"},
		&cli.Float64Flag{Name: "hyst", Usage: "hysteresis trip point in °C"},
	},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		if !c.IsSet("os") && !c.IsSet("hyst") {
			return console.Exit(1, "nothing to set, use --os and/or --hyst")
		}
		if c.IsSet("os") {
			if err := d.sensor.SetOverTemperature(ctx, float32(c.Float64("os"))); err != nil {
				return console.Exit(1, "could not write T_OS: %s", console.Red(err))
			}
		}
		if c.IsSet("hyst") {
			if err := d.sensor.SetHysteresis(ctx, float32(c.Float64("hyst"))); err != nil {
				return console.Exit(1, "could not write T_HYST: %s", console.Red(err))
			}
		}
		state := d.sensor.Snapshot()
		console.Infof("T_OS %s, T_HYST %s", console.White(environment.Celsius(state.OverTemperature)), console.White(environment.Celsius(state.Hysteresis)))
		return nil
	}),
}

var snapshotCmd = cli.Command{
	Name:  "snapshot",
	Usage: "read every register and print the driver state as yaml",
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		if _, err := d.sensor.ReadConfig(ctx); err != nil {
			return console.Exit(1, "could not read configuration: %s", console.Red(err))
		}
		for _, reg := range []environment.Register{environment.RegTemperature, environment.RegOverTemperature, environment.RegHysteresis} {
			if _, err := d.sensor.ReadTemperature(ctx, reg); err != nil {
				return console.Exit(1, "could not read %s: %s", reg, console.Red(err))
			}
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		if err := enc.Encode(d.sensor.Snapshot()); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	}),
}
