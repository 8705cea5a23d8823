package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/ds7505/adapter"
	"github.com/mklimuk/ds7505/cmd/sensors/console"
	"github.com/mklimuk/ds7505/snsctx"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "USB bridge diagnostics",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221GPIOCmd,
	},
}

var idFlag = &cli.IntSliceFlag{
	Name:  "id",
	Usage: "index of the bridge when several are connected",
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		return bridgeAction(c, func(ctx context.Context, a *adapter.MCP2221) (any, error) {
			return a.Status(ctx)
		})
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck transfer and free the bus",
	Action: func(c *cli.Context) error {
		return bridgeAction(c, func(ctx context.Context, a *adapter.MCP2221) (any, error) {
			return a.ReleaseBus(ctx)
		})
	},
}

var mcp2221GPIOCmd = cli.Command{
	Name:  "gpio",
	Usage: "read GP0..GP3",
	Flags: []cli.Flag{idFlag},
	Action: func(c *cli.Context) error {
		return bridgeAction(c, func(ctx context.Context, a *adapter.MCP2221) (any, error) {
			return a.ReadGPIO(ctx, c.IntSlice("id")...)
		})
	},
}

func bridgeAction(c *cli.Context, call func(ctx context.Context, a *adapter.MCP2221) (any, error)) error {
	a := adapter.NewMCP2221()
	ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
	res, err := call(ctx, a)
	if err != nil {
		return console.Exit(1, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(res); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}
