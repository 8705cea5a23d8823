package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/ds7505/cmd/sensors/console"
	"github.com/mklimuk/ds7505/environment"
	"github.com/mklimuk/ds7505/gpio"
)

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "attach the thermostat output and report alerts until interrupted",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "pin", Usage: "gpio name (periph) or GP0..GP3 (mcp2221)"},
		&cli.StringFlag{Name: "polarity", Aliases: []string{"p"}, Usage: "low or high"},
		&cli.BoolFlag{Name: "both", Usage: "report deassertion too"},
		&cli.DurationFlag{Name: "poll", Usage: "sampling period for polled pins", Value: 100 * time.Millisecond},
	},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		alert := settings.Alert
		if c.IsSet("pin") {
			alert.Pin = c.String("pin")
		}
		if c.IsSet("polarity") {
			alert.Polarity = c.String("polarity")
		}
		if alert.Pin == "" && d.sim == nil {
			return console.Exit(1, "no alert pin configured, use --pin")
		}
		pol, err := alert.Pol()
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		opts := []gpio.WatcherOpt{gpio.WithPoll(c.Duration("poll"))}
		if c.Bool("both") {
			opts = append(opts, gpio.WithBothEdges())
		}
		watcher, err := newWatcher(d, alert.Pin, pol, opts)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		cfg, err := d.sensor.Attach(ctx, pol)
		if err != nil {
			return console.Exit(1, "could not attach: %s", console.Red(err))
		}
		console.PInfof(console.PictoPin, "watching %s (%s, %s)", cmp.Or(alert.Pin, settings.Adapter), cfg.Polarity(), cfg.Mode())

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = watcher.Watch(ctx, func(ctx context.Context, a gpio.Alert) {
			if !a.Active {
				console.Infof("%s alert cleared", a.Time.Format(time.TimeOnly))
				return
			}
			// in interrupt mode the output stays active until any register is read
			temp, err := d.sensor.GetTemperature(ctx)
			if err != nil {
				console.Errorf("could not read temperature: %v", err)
				return
			}
			console.Printf("%s %s %s\n", console.Yellow(a.Time.Format(time.TimeOnly)), console.PictoThermometer, console.White(environment.Celsius(temp)))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Exit(1, "watch error: %s", console.Red(err))
		}
		return nil
	}),
}

func newWatcher(d *device, pin string, pol environment.Polarity, opts []gpio.WatcherOpt) (gpio.Watcher, error) {
	if d.sim != nil {
		return gpio.NewPolledWatcher(d.sim.ReadOS, pol, opts...), nil
	}
	if d.bridge != nil {
		var n int
		if _, err := fmt.Sscanf(strings.ToUpper(pin), "GP%d", &n); err != nil || n < 0 || n > 3 {
			return nil, fmt.Errorf("mcp2221 alert pin must be GP0..GP3, got %q", pin)
		}
		return gpio.NewPolledWatcher(gpio.MCP2221Level(d.bridge, n), pol, opts...), nil
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not initialize host drivers: %w", err)
	}
	p := gpioreg.ByName(pin)
	if p == nil {
		return nil, fmt.Errorf("no such gpio: %s", pin)
	}
	return gpio.NewEdgeWatcher(p, pol, opts...), nil
}
