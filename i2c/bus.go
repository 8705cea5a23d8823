// Package i2c provides ds7505.I2CBus transports over periph.io, gobot and
// tinygo bus implementations.
package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/ds7505"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var _ ds7505.I2CBus = &GenericBus{}
var _ ds7505.I2CBus = &SharedBus{}

// GenericBus owns a periph.io bus. Close releases it.
type GenericBus struct {
	bus i2c.BusCloser
}

// NewGenericBus initializes the host drivers and opens the named bus ("" for
// the first one available).
func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &GenericBus{
		bus: bus,
	}, nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return tx(ctx, b.bus, address, buffer, nil)
}

func (b *GenericBus) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	return tx(ctx, b.bus, address, w, r)
}

// Bus exposes the underlying bus so other drivers can share it through
// NewSharedBus.
func (b *GenericBus) Bus() i2c.Bus {
	return b.bus
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}

// SharedBus borrows a periph.io bus that other drivers also use. It never
// closes the bus; transactions issued through the same SharedBus are
// serialized.
type SharedBus struct {
	mx  sync.Mutex
	bus i2c.Bus
}

func NewSharedBus(bus i2c.Bus) *SharedBus {
	return &SharedBus{bus: bus}
}

func (b *SharedBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	return tx(ctx, b.bus, address, buffer, nil)
}

func (b *SharedBus) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	return tx(ctx, b.bus, address, w, r)
}

func tx(ctx context.Context, bus i2c.Bus, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := bus.Tx(uint16(address), w, r)
	if err != nil {
		if len(r) == 0 {
			return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
		}
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}
