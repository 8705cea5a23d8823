// Package ds7505 defines the bus capabilities the DS7505 driver depends on.
// Concrete transports live in the i2c and adapter packages.
package ds7505

import (
	"context"
)

// AddressableWriter writes a single frame to a 7-bit device address.
type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
}

// AddressableTxer writes w and then reads len(r) bytes from the same device.
// Implementations must hold the bus for the whole write+read span.
type AddressableTxer interface {
	TxAddr(ctx context.Context, address byte, w, r []byte) error
}

// I2CBus is the transport capability used by device drivers. It says nothing
// about ownership: a bus may be owned by a single driver or shared by reference.
type I2CBus interface {
	AddressableWriter
	AddressableTxer
}
