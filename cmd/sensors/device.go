package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/ds7505"
	"github.com/mklimuk/ds7505/adapter"
	"github.com/mklimuk/ds7505/cmd/sensors/config"
	"github.com/mklimuk/ds7505/cmd/sensors/console"
	"github.com/mklimuk/ds7505/environment"
	"github.com/mklimuk/ds7505/i2c"
	"github.com/mklimuk/ds7505/snsctx"
)

type device struct {
	sensor *environment.DS7505
	// bridge is set only for the mcp2221 adapter.
	bridge *adapter.MCP2221
	sim    *environment.DS7505Simulator
	close  func() error
}

func (d *device) Close() {
	if err := d.close(); err != nil {
		console.Warnf("could not close bus: %v", err)
	}
}

func openDevice(c *cli.Context) (context.Context, *device, error) {
	ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
	d := &device{close: func() error { return nil }}
	var bus ds7505.I2CBus
	switch settings.Adapter {
	case config.AdapterMCP2221:
		bridge := adapter.NewMCP2221()
		if err := bridge.Init(ctx); err != nil {
			return ctx, nil, console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		if settings.Speed != 0 && settings.Speed != 100_000 {
			if err := bridge.SetSpeed(ctx, settings.Speed); err != nil {
				return ctx, nil, console.Exit(1, "adapter initialization error: %s", console.Red(err))
			}
		}
		d.bridge = bridge
		bus = bridge
	case config.AdapterPeriph:
		b, err := i2c.NewGenericBus(settings.Bus)
		if err != nil {
			return ctx, nil, console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		d.close = b.Close
		bus = b
	case config.AdapterGobot:
		nr := -1
		if settings.Bus != "" {
			var err error
			nr, err = strconv.Atoi(settings.Bus)
			if err != nil {
				return ctx, nil, console.Exit(1, "gobot bus must be a number: %s", console.Red(err))
			}
		}
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return ctx, nil, console.Exit(1, "adaptor connect error: %s", console.Red(err))
		}
		gb := i2c.NewGobotBus(npi, nr)
		d.close = func() error {
			return errors.Join(gb.Close(), npi.I2cBusAdaptor.Finalize())
		}
		bus = gb
	case config.AdapterSim:
		address, err := environment.DS7505Address(settings.Prefix, settings.Strap)
		if err != nil {
			return ctx, nil, console.Exit(1, "%s", console.Red(err))
		}
		d.sim = environment.NewDS7505Simulator(address, simulatedRoom(time.Now()))
		bus = d.sim
	default:
		return ctx, nil, fmt.Errorf("%w: %q", config.ErrUnknownAdapter, settings.Adapter)
	}
	opts := []environment.DS7505Opt{
		environment.WithAddressPrefix(settings.Prefix),
		environment.WithStrap(settings.Strap),
	}
	if settings.VerifyThresholds {
		opts = append(opts, environment.WithVerifiedThresholds())
	}
	d.sensor = environment.NewDS7505(bus, opts...)
	return ctx, d, nil
}

// simulatedRoom swings between 20 and 30 °C once a minute.
func simulatedRoom(start time.Time) environment.TemperatureBehaviorFunc {
	return func(ctx context.Context) (float32, error) {
		phase := time.Since(start).Seconds() / 60 * 2 * math.Pi
		return 25 + 5*float32(math.Sin(phase)), nil
	}
}

// withDevice opens the sensor for the duration of action.
func withDevice(action func(ctx context.Context, c *cli.Context, d *device) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		ctx, d, err := openDevice(c)
		if err != nil {
			return err
		}
		defer d.Close()
		return action(ctx, c, d)
	}
}

// confirm asks before operations that touch the EEPROM or restart the chip.
func confirm(c *cli.Context, question string) (bool, error) {
	if c.Bool("yes") {
		return true, nil
	}
	answer, err := console.YesOrNo(question)
	if err != nil {
		return false, err
	}
	return answer == console.Yes, nil
}

var yesFlag = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Usage:   "do not ask for confirmation",
}
