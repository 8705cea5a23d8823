package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/ds7505"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

var _ ds7505.I2CBus = &GobotBus{}

var ErrShortTransfer = errors.New("short i2c transfer")

// GobotBus adapts a gobot i2c.Connector (board adaptor). One connection is
// opened per device address and kept until Close. A write-then-read is a
// write followed by a separate read, without a repeated start.
type GobotBus struct {
	mx        sync.Mutex
	connector gobot.Connector
	busNr     int
	conns     map[byte]gobot.Connection
}

// NewGobotBus uses the connector default bus when busNr is negative.
func NewGobotBus(connector gobot.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		conns:     make(map[byte]gobot.Connection),
	}
}

func (b *GobotBus) connection(address byte) (gobot.Connection, error) {
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c connection to %x on bus %d: %w", address, b.busNr, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := b.connection(address)
	if err != nil {
		return err
	}
	return write(c, address, buffer)
}

func (b *GobotBus) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := b.connection(address)
	if err != nil {
		return err
	}
	if len(w) > 0 {
		if err := write(c, address, w); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	n, err := c.Read(r)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	if n != len(r) {
		return fmt.Errorf("read from %x: %w: %d of %d", address, ErrShortTransfer, n, len(r))
	}
	return nil
}

func write(c gobot.Connection, address byte, buffer []byte) error {
	n, err := c.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("write to %x: %w: %d of %d", address, ErrShortTransfer, n, len(buffer))
	}
	return nil
}

// Close closes every connection opened so far. The connector is left alone.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %x: %w", addr, err))
		}
		delete(b.conns, addr)
	}
	return errors.Join(errs...)
}
