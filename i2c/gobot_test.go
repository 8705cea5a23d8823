package i2c

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/ds7505/environment"
)

type fakeGobotConn struct {
	gobot.Connection
	written bytes.Buffer
	reply   []byte
	short   bool
	closed  bool
}

func (c *fakeGobotConn) Write(b []byte) (int, error) {
	c.written.Write(b)
	if c.short {
		return len(b) - 1, nil
	}
	return len(b), nil
}

func (c *fakeGobotConn) Read(b []byte) (int, error) {
	return copy(b, c.reply), nil
}

func (c *fakeGobotConn) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	gobot.Connector
	conns  map[int]*fakeGobotConn
	opened []int
	busNr  int
	err    error
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (gobot.Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opened = append(f.opened, address)
	f.busNr = busNr
	return f.conns[address], nil
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 1
}

func TestGobotBus_Sensor(t *testing.T) {
	conn := &fakeGobotConn{reply: []byte{0x19, 0x00}}
	connector := &fakeConnector{conns: map[int]*fakeGobotConn{0x48: conn}}
	bus := NewGobotBus(connector, -1)
	s := environment.NewDS7505(bus)
	ctx := context.Background()

	temp, err := s.GetTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(25), temp)
	require.NoError(t, s.CopyToNonVolatile(ctx))
	assert.Equal(t, []byte{0x00, 0x48}, conn.written.Bytes())
	// connection is opened once on the default bus
	assert.Equal(t, []int{0x48}, connector.opened)
	assert.Equal(t, 1, connector.busNr)

	require.NoError(t, bus.Close())
	assert.True(t, conn.closed)
}

func TestGobotBus_Errors(t *testing.T) {
	connector := &fakeConnector{err: errors.New("no bus")}
	bus := NewGobotBus(connector, 2)
	assert.Error(t, bus.WriteToAddr(context.Background(), 0x48, []byte{0x54}))

	conn := &fakeGobotConn{short: true}
	bus = NewGobotBus(&fakeConnector{conns: map[int]*fakeGobotConn{0x48: conn}}, 2)
	err := bus.WriteToAddr(context.Background(), 0x48, []byte{0x01, 0x62})
	assert.ErrorIs(t, err, ErrShortTransfer)

	conn = &fakeGobotConn{reply: []byte{0x19}}
	bus = NewGobotBus(&fakeConnector{conns: map[int]*fakeGobotConn{0x48: conn}}, 2)
	err = bus.TxAddr(context.Background(), 0x48, []byte{0x00}, make([]byte, 2))
	assert.ErrorIs(t, err, ErrShortTransfer)
}
