package environment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/ds7505"
)

// TemperatureBehaviorFunc produces the die temperature in Celsius for every
// simulated conversion.
type TemperatureBehaviorFunc func(ctx context.Context) (float32, error)

// ErrNoDevice is returned by the simulator for frames sent to other addresses.
var ErrNoDevice = errors.New("no device at address (nack)")

var _ ds7505.I2CBus = &DS7505Simulator{}

// DS7505Simulator emulates the chip from the bus side: the register pointer,
// volatile registers, the EEPROM shadow and the thermostat output. A
// conversion runs on every temperature read and O.S. sample.
//
// Example usage:
//
//	sim := NewDS7505Simulator(0x48, func(ctx context.Context) (float32, error) { return 22.5, nil })
//	s := NewDS7505(sim)
type DS7505Simulator struct {
	mx        sync.Mutex
	address   byte
	behavior  TemperatureBehaviorFunc
	pointer   Register
	regs      map[Register][]byte
	eeprom    map[Register][]byte
	busyReads int
	faults    int
	active    bool
	waitLow   bool
}

// NewDS7505Simulator starts with factory defaults: comparator mode, 9 bits,
// T_OS 80 °C and T_HYST 75 °C.
func NewDS7505Simulator(address byte, behavior TemperatureBehaviorFunc) *DS7505Simulator {
	sim := &DS7505Simulator{
		address:  address,
		behavior: behavior,
		regs: map[Register][]byte{
			RegTemperature:     {0x00, 0x00},
			RegConfig:          {0x00},
			RegHysteresis:      {0x4B, 0x00},
			RegOverTemperature: {0x50, 0x00},
		},
	}
	sim.eeprom = sim.volatile()
	return sim
}

func (d *DS7505Simulator) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if address != d.address {
		return fmt.Errorf("%w %#x", ErrNoDevice, address)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.apply(buffer)
	return nil
}

func (d *DS7505Simulator) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	if address != d.address {
		return fmt.Errorf("%w %#x", ErrNoDevice, address)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.apply(w)
	if len(r) == 0 {
		return nil
	}
	if d.pointer == RegTemperature {
		if err := d.convert(ctx); err != nil {
			return err
		}
	}
	v := append([]byte(nil), d.regs[d.pointer]...)
	if d.pointer == RegConfig && d.busyReads > 0 {
		d.busyReads--
		v[0] |= configMemoryBusyBit
	}
	copy(r, v)
	// in interrupt mode any register read clears the output
	if Config(d.regs[RegConfig][0]).Mode() == ModeInterrupt {
		d.active = false
	}
	return nil
}

// Pointer returns the register the next read will return.
func (d *DS7505Simulator) Pointer() Register {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.pointer
}

// Register returns a copy of a volatile register.
func (d *DS7505Simulator) Register(reg Register) []byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]byte(nil), d.regs[reg]...)
}

// ReadOS runs a conversion and samples the O.S. pin.
func (d *DS7505Simulator) ReadOS(ctx context.Context) (gpio.Level, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.convert(ctx); err != nil {
		return gpio.Low, err
	}
	pol := Config(d.regs[RegConfig][0]).Polarity()
	if d.active {
		return pol == ActiveHigh, nil
	}
	return pol != ActiveHigh, nil
}

func (d *DS7505Simulator) apply(frame []byte) {
	if len(frame) == 0 {
		return
	}
	switch Command(frame[0]) {
	case CmdCopyData:
		d.eeprom = d.volatile()
		d.busyReads = 2
		return
	case CmdRecallData:
		d.restore()
		d.busyReads = 1
		return
	case CmdSoftwarePOR:
		d.restore()
		d.pointer = RegTemperature
		d.resetThermostat()
		return
	}
	d.pointer = Register(frame[0] & 0x03)
	data := frame[1:]
	if len(data) == 0 || d.pointer == RegTemperature {
		return
	}
	if d.pointer == RegConfig {
		data = []byte{data[0] &^ configMemoryBusyBit}
		if Config(data[0]).Mode() != Config(d.regs[RegConfig][0]).Mode() {
			d.resetThermostat()
		}
	}
	copy(d.regs[d.pointer], data)
}

func (d *DS7505Simulator) resetThermostat() {
	d.faults = 0
	d.active = false
	d.waitLow = false
}

func (d *DS7505Simulator) volatile() map[Register][]byte {
	out := make(map[Register][]byte)
	for _, r := range []Register{RegConfig, RegHysteresis, RegOverTemperature} {
		out[r] = append([]byte(nil), d.regs[r]...)
	}
	return out
}

func (d *DS7505Simulator) restore() {
	for r, v := range d.eeprom {
		d.regs[r] = append([]byte(nil), v...)
	}
}

// resolutionMask keeps the significant bits of a 9 to 12 bit conversion.
var resolutionMask = [...]uint16{0xFF80, 0xFFC0, 0xFFE0, 0xFFF0}

func (d *DS7505Simulator) convert(ctx context.Context) error {
	config := Config(d.regs[RegConfig][0])
	if config.Shutdown() {
		return nil
	}
	celsius, err := d.behavior(ctx)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	celsius = min(max(celsius, MinRegisterTemperature), MaxRegisterTemperature)
	raw, err := EncodeTemperature(celsius)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	masked := (uint16(raw[0])<<8 | uint16(raw[1])) & resolutionMask[config.Resolution()>>5]
	d.regs[RegTemperature] = []byte{byte(masked >> 8), byte(masked)}
	d.thermostat(config, DecodeTemperature(d.regs[RegTemperature]))
	return nil
}

// thermostat trips after FaultTolerance consecutive out-of-limit conversions.
// Comparator mode asserts above T_OS and releases below T_HYST. Interrupt
// mode asserts on either crossing, alternating between them, and releases
// on a register read.
func (d *DS7505Simulator) thermostat(config Config, temp float32) {
	var tripping bool
	if config.Mode() == ModeInterrupt && d.waitLow || config.Mode() == ModeComparator && d.active {
		tripping = temp < DecodeTemperature(d.regs[RegHysteresis])
	} else {
		tripping = temp >= DecodeTemperature(d.regs[RegOverTemperature])
	}
	if !tripping {
		d.faults = 0
		return
	}
	d.faults++
	if d.faults < config.FaultTolerance().Count() {
		return
	}
	d.faults = 0
	if config.Mode() == ModeComparator {
		d.active = !d.active
		return
	}
	d.active = true
	d.waitLow = !d.waitLow
}
