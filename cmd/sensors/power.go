package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ds7505/cmd/sensors/console"
	"github.com/mklimuk/ds7505/environment"
)

var powerCmd = cli.Command{
	Name:  "power",
	Usage: "shutdown or wake the converter",
	Subcommands: cli.Commands{
		powerModeCmd("shutdown", environment.PowerShutdown),
		powerModeCmd("wake", environment.PowerActive),
	},
}

func powerModeCmd(name string, mode environment.PowerMode) *cli.Command {
	return &cli.Command{
		Name: name,
		Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
			if err := d.sensor.SetPowerMode(ctx, mode); err != nil {
				return console.Exit(1, "could not change power mode: %s", console.Red(err))
			}
			console.Infof("power mode: %s", console.White(mode))
			return nil
		}),
	}
}

var nvCmd = cli.Command{
	Name:  "nv",
	Usage: "non-volatile (EEPROM) copy of config and thresholds",
	Subcommands: cli.Commands{
		&nvCopyCmd,
		&nvRecallCmd,
		&nvBusyCmd,
	},
}

var waitFlag = &cli.DurationFlag{
	Name:  "wait",
	Usage: "poll the busy flag until the transfer completes or the timeout expires",
	Value: time.Second,
}

var nvCopyCmd = cli.Command{
	Name:  "copy",
	Usage: "store the current config and thresholds in EEPROM",
	Flags: []cli.Flag{yesFlag, waitFlag},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		ok, err := confirm(c, "overwrite the stored configuration?")
		if err != nil {
			return console.Exit(1, "prompt error: %s", console.Red(err))
		}
		if !ok {
			console.PInfof(console.PictoStop, "aborted")
			return nil
		}
		if err := d.sensor.CopyToNonVolatile(ctx); err != nil {
			return console.Exit(1, "could not copy data: %s", console.Red(err))
		}
		return waitMemory(ctx, c, d)
	}),
}

var nvRecallCmd = cli.Command{
	Name:  "recall",
	Usage: "reload config and thresholds from EEPROM",
	Flags: []cli.Flag{waitFlag},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		if err := d.sensor.RecallFromNonVolatile(ctx); err != nil {
			return console.Exit(1, "could not recall data: %s", console.Red(err))
		}
		return waitMemory(ctx, c, d)
	}),
}

var nvBusyCmd = cli.Command{
	Name: "busy",
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		busy, err := d.sensor.MemoryStatus(ctx)
		if err != nil {
			return console.Exit(1, "could not read memory status: %s", console.Red(err))
		}
		if busy {
			console.Print(console.Yellow("busy"))
			return nil
		}
		console.Print(console.Green("idle"))
		return nil
	}),
}

func waitMemory(ctx context.Context, c *cli.Context, d *device) error {
	wait := c.Duration("wait")
	if wait <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := d.sensor.WaitMemory(ctx, 10*time.Millisecond); err != nil {
		return console.Exit(1, "memory transfer did not complete: %s", console.Red(err))
	}
	console.PInfof(console.PictoFinish, "done")
	return nil
}

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "software power-on reset, reloading EEPROM values",
	Flags: []cli.Flag{yesFlag},
	Action: withDevice(func(ctx context.Context, c *cli.Context, d *device) error {
		ok, err := confirm(c, "reset the sensor?")
		if err != nil {
			return console.Exit(1, "prompt error: %s", console.Red(err))
		}
		if !ok {
			console.PInfof(console.PictoStop, "aborted")
			return nil
		}
		// the device reports nothing back for a reset
		d.sensor.SoftwareReset(ctx)
		console.PInfof(console.PictoFinish, "reset sent")
		return nil
	}),
}
