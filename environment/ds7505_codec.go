package environment

import (
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Register is a DS7505 register pointer.
type Register byte

// Register map (pointer byte selects the register for the next read)
const (
	RegTemperature     Register = 0x00 // 2 bytes, read-only
	RegConfig          Register = 0x01 // 1 byte
	RegHysteresis      Register = 0x02 // 2 bytes
	RegOverTemperature Register = 0x03 // 2 bytes
)

func (r Register) String() string {
	switch r {
	case RegTemperature:
		return "TEMPER"
	case RegConfig:
		return "CONFIG"
	case RegHysteresis:
		return "T_HYST"
	case RegOverTemperature:
		return "T_OS"
	default:
		return fmt.Sprintf("REG(%#x)", byte(r))
	}
}

// Command is a pointer-less single byte opcode.
type Command byte

const (
	CmdRecallData  Command = 0xB8
	CmdCopyData    Command = 0x48
	CmdSoftwarePOR Command = 0x54
)

// ErrOutOfRange is returned when a temperature does not fit the 16-bit
// fixed-point register format.
var ErrOutOfRange = errors.New("temperature out of register range")

// Representable register values: int16 raw value divided by 256. Inputs
// that truncate into this range are accepted by EncodeTemperature.
const (
	MinRegisterTemperature float32 = -128.0
	MaxRegisterTemperature float32 = 127.99609375
)

// Resolution occupies config bits 6-5.
type Resolution byte

const (
	Resolution9Bits  Resolution = 0x00 << 5
	Resolution10Bits Resolution = 0x01 << 5
	Resolution11Bits Resolution = 0x02 << 5
	Resolution12Bits Resolution = 0x03 << 5
)

// Bits returns the number of significant temperature bits.
func (r Resolution) Bits() int {
	return 9 + int(r>>5)
}

// ConversionTime returns the maximum conversion time for the resolution.
func (r Resolution) ConversionTime() time.Duration {
	return 25 * time.Millisecond << (r >> 5)
}

func (r Resolution) String() string {
	return fmt.Sprintf("%d bits", r.Bits())
}

// FaultTolerance occupies config bits 4-3: consecutive out-of-limit
// conversions needed to trip the thermostat output.
type FaultTolerance byte

const (
	FaultTolerance1 FaultTolerance = 0x00 << 3
	FaultTolerance2 FaultTolerance = 0x01 << 3
	FaultTolerance4 FaultTolerance = 0x02 << 3
	FaultTolerance6 FaultTolerance = 0x03 << 3
)

// Count returns the number of consecutive faults.
func (f FaultTolerance) Count() int {
	return [...]int{1, 2, 4, 6}[f>>3&0x03]
}

func (f FaultTolerance) String() string {
	return fmt.Sprintf("%d faults", f.Count())
}

// Polarity of the O.S. output, config bit 2.
type Polarity byte

const (
	ActiveLow  Polarity = 0x00 << 2
	ActiveHigh Polarity = 0x01 << 2
)

func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}
	return "active-low"
}

// ThermostatMode is config bit 1.
type ThermostatMode byte

const (
	ModeComparator ThermostatMode = 0x00 << 1
	ModeInterrupt  ThermostatMode = 0x01 << 1
)

func (m ThermostatMode) String() string {
	if m == ModeInterrupt {
		return "interrupt"
	}
	return "comparator"
}

// PowerMode reflects the shutdown bit.
type PowerMode byte

const (
	PowerActive   PowerMode = 0x00
	PowerShutdown PowerMode = 0x01
)

func (m PowerMode) String() string {
	if m == PowerShutdown {
		return "shutdown"
	}
	return "active"
}

// config bit masks
const (
	configResolutionMask byte = 0x60
	configFaultMask      byte = 0x18
	configPolarityMask   byte = 0x04
	configModeMask       byte = 0x02
	configShutdownBit    byte = 0x01
	configMemoryBusyBit  byte = 0x80
)

// Config is a snapshot of the configuration register.
type Config byte

// PackConfig composes a configuration byte from the four writable fields.
// Shutdown (bit 0) and memory busy (bit 7) are always zero.
func PackConfig(res Resolution, ft FaultTolerance, pol Polarity, mode ThermostatMode) Config {
	return Config(byte(res)&configResolutionMask |
		byte(ft)&configFaultMask |
		byte(pol)&configPolarityMask |
		byte(mode)&configModeMask)
}

func (c Config) Resolution() Resolution {
	return Resolution(byte(c) & configResolutionMask)
}

func (c Config) FaultTolerance() FaultTolerance {
	return FaultTolerance(byte(c) & configFaultMask)
}

func (c Config) Polarity() Polarity {
	return Polarity(byte(c) & configPolarityMask)
}

func (c Config) Mode() ThermostatMode {
	return ThermostatMode(byte(c) & configModeMask)
}

func (c Config) Shutdown() bool {
	return byte(c)&configShutdownBit != 0
}

// MemoryBusy reports the NVB bit: an EEPROM copy or recall is in progress.
func (c Config) MemoryBusy() bool {
	return byte(c)&configMemoryBusyBit != 0
}

func (c Config) PowerMode() PowerMode {
	if c.Shutdown() {
		return PowerShutdown
	}
	return PowerActive
}

// WithPowerMode returns c with only the shutdown bit changed.
func (c Config) WithPowerMode(mode PowerMode) Config {
	if mode == PowerShutdown {
		return c | Config(configShutdownBit)
	}
	return c &^ Config(configShutdownBit)
}

func (c Config) String() string {
	return fmt.Sprintf("%#02x (%s, %s, %s, %s, %s, busy=%t)", byte(c),
		c.Resolution(), c.FaultTolerance(), c.Polarity(), c.Mode(), c.PowerMode(), c.MemoryBusy())
}

// DecodeTemperature converts a big-endian two's complement register value
// into degrees Celsius. Unused low bits are zero on the device.
func DecodeTemperature(data []byte) float32 {
	raw := int16(uint16(data[0])<<8 | uint16(data[1]))
	return float32(raw) / 256
}

// EncodeTemperature converts degrees Celsius into register bytes, truncating
// toward zero at 1/256 °C. The range check applies to the truncated raw
// value, so 127.999 encodes as 0x7FFF while 128.0 and NaN are rejected.
func EncodeTemperature(celsius float32) ([2]byte, error) {
	var out [2]byte
	v := math.Trunc(float64(celsius) * 256)
	if math.IsNaN(v) || v < math.MinInt16 || v > math.MaxInt16 {
		return out, fmt.Errorf("%w: %v", ErrOutOfRange, celsius)
	}
	raw := int16(v)
	out[0] = byte(uint16(raw) >> 8)
	out[1] = byte(uint16(raw) & 0xFF)
	return out, nil
}

// Celsius converts a register temperature into a periph physic value.
func Celsius(v float32) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(float64(v)*float64(physic.Kelvin))
}
