package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/ds7505"
	"github.com/mklimuk/ds7505/environment"
)

type fakeTinyGo struct {
	addr uint16
	w    []byte
	data []byte
	err  error
}

func (f *fakeTinyGo) Tx(addr uint16, w, r []byte) error {
	f.addr = addr
	f.w = append([]byte(nil), w...)
	copy(r, f.data)
	return f.err
}

func TestTinyGoBus(t *testing.T) {
	fake := &fakeTinyGo{data: []byte{0x62}}
	s := environment.NewDS7505(NewTinyGoBus(fake), environment.WithStrap(3))

	config, err := s.ReadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, environment.Config(0x62), config)
	assert.Equal(t, uint16(0x4B), fake.addr)
	assert.Equal(t, []byte{0x01}, fake.w)

	fake.err = errors.New("nack")
	err = s.CopyToNonVolatile(context.Background())
	assert.ErrorIs(t, err, ds7505.ErrTransport)
	assert.Equal(t, []byte{0x48}, fake.w)
}
