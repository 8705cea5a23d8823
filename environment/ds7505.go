package environment

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/ds7505"
	"github.com/mklimuk/ds7505/snsctx"
)

// DS7505DefaultPrefix is the fixed upper nibble of the 7-bit bus address.
const DS7505DefaultPrefix byte = 0b1001

// ErrNotAThreshold is returned when a threshold write targets a register
// other than T_OS or T_HYST.
var ErrNotAThreshold = errors.New("register is not a temperature threshold")

// ErrInvalidAddress is returned for straps or prefixes that do not fit.
var ErrInvalidAddress = errors.New("invalid device address")

// ErrInvalidInterval is returned for non-positive polling intervals.
var ErrInvalidInterval = errors.New("polling interval must be positive")

// DS7505Address composes a 7-bit address from a 4-bit prefix and a 3-bit
// hardware strap (A2..A0).
func DS7505Address(prefix, strap byte) (byte, error) {
	if prefix > 0x0F {
		return 0, fmt.Errorf("%w: prefix %#x does not fit 4 bits", ErrInvalidAddress, prefix)
	}
	if strap > 0x07 {
		return 0, fmt.Errorf("%w: strap %d does not fit 3 bits", ErrInvalidAddress, strap)
	}
	return prefix<<3 | strap, nil
}

// DS7505 represents a Maxim DS7505 digital thermometer and thermostat.
// See: https://www.analog.com/media/en/technical-documentation/data-sheets/DS7505.pdf
//
// Usage:
//
//	s := NewDS7505(bus, WithStrap(0))
//	t, err := s.GetTemperature(ctx)
//
// The driver does no locking. A bus shared between goroutines or drivers must
// serialize whole transactions itself (see i2c.SharedBus).
type DS7505 struct {
	transport ds7505.I2CBus
	address   byte
	verify    bool

	config      Config
	configKnown bool
	temperature float32
	tempOS      float32
	tempHyst    float32
}

type DS7505Config struct {
	Prefix           byte
	Strap            byte
	Address          byte
	VerifyThresholds bool
}

type DS7505Opt func(*DS7505Config)

// WithStrap selects the A2..A0 strap value (0-7).
func WithStrap(strap byte) DS7505Opt {
	return func(c *DS7505Config) {
		c.Strap = strap
	}
}

// WithAddressPrefix overrides the 4-bit address prefix for board variants
// that do not use 1001.
func WithAddressPrefix(prefix byte) DS7505Opt {
	return func(c *DS7505Config) {
		c.Prefix = prefix
	}
}

// WithDeviceAddress sets the full 7-bit address, ignoring prefix and strap.
func WithDeviceAddress(address byte) DS7505Opt {
	return func(c *DS7505Config) {
		c.Address = address
	}
}

// WithVerifiedThresholds makes threshold writes re-read the register instead
// of caching the written value.
func WithVerifiedThresholds() DS7505Opt {
	return func(c *DS7505Config) {
		c.VerifyThresholds = true
	}
}

// NewDS7505 creates a driver with a zeroed cache. It does not touch the device.
// An out of range prefix or strap falls back to the default address.
func NewDS7505(trans ds7505.I2CBus, opts ...DS7505Opt) *DS7505 {
	config := &DS7505Config{
		Prefix: DS7505DefaultPrefix,
	}
	for _, opt := range opts {
		opt(config)
	}
	address := config.Address
	if address == 0 {
		var err error
		address, err = DS7505Address(config.Prefix, config.Strap)
		if err != nil {
			slog.Warn("ds7505: falling back to default address", "error", err)
			address, _ = DS7505Address(DS7505DefaultPrefix, 0)
		}
	}
	return &DS7505{
		transport: trans,
		address:   address,
		verify:    config.VerifyThresholds,
	}
}

// Address returns the 7-bit bus address.
func (s *DS7505) Address() byte {
	return s.address
}

func (s *DS7505) String() string {
	return fmt.Sprintf("ds7505@%#x", s.address)
}

// ReadConfig reads the configuration register and caches it.
func (s *DS7505) ReadConfig(ctx context.Context) (Config, error) {
	resp := make([]byte, 1)
	err := s.tx(ctx, "read config", []byte{byte(RegConfig)}, resp)
	if err != nil {
		return s.config, fmt.Errorf("ds7505: could not read config register: %w", err)
	}
	s.config = Config(resp[0])
	s.configKnown = true
	return s.config, nil
}

// WriteConfig writes the four configurable fields and refreshes the cache
// with a read. The written byte has bit 0 clear, so a config write always
// leaves the device active.
func (s *DS7505) WriteConfig(ctx context.Context, res Resolution, ft FaultTolerance, pol Polarity, mode ThermostatMode) (Config, error) {
	data := PackConfig(res, ft, pol, mode)
	err := s.write(ctx, "write config", []byte{byte(RegConfig), byte(data)})
	if err != nil {
		return s.config, fmt.Errorf("ds7505: could not write config register: %w", err)
	}
	return s.ReadConfig(ctx)
}

// ReadTemperature reads one of the temperature registers and caches the value.
func (s *DS7505) ReadTemperature(ctx context.Context, reg Register) (float32, error) {
	if reg != RegTemperature && reg != RegOverTemperature && reg != RegHysteresis {
		return 0, fmt.Errorf("ds7505: %s is not a temperature register", reg)
	}
	resp := make([]byte, 2)
	err := s.tx(ctx, "read "+reg.String(), []byte{byte(reg)}, resp)
	if err != nil {
		return s.cached(reg), fmt.Errorf("ds7505: could not read %s register: %w", reg, err)
	}
	temp := DecodeTemperature(resp)
	s.store(reg, temp)
	return temp, nil
}

// GetTemperature reads the current temperature in Celsius.
func (s *DS7505) GetTemperature(ctx context.Context) (float32, error) {
	return s.ReadTemperature(ctx, RegTemperature)
}

// GetOverTemperature reads the T_OS threshold.
func (s *DS7505) GetOverTemperature(ctx context.Context) (float32, error) {
	return s.ReadTemperature(ctx, RegOverTemperature)
}

// GetHysteresis reads the T_HYST threshold.
func (s *DS7505) GetHysteresis(ctx context.Context) (float32, error) {
	return s.ReadTemperature(ctx, RegHysteresis)
}

// WriteThreshold writes T_OS or T_HYST. On success the cache holds the value
// that was encoded, not a value read back from the device, unless the driver
// was built WithVerifiedThresholds.
func (s *DS7505) WriteThreshold(ctx context.Context, reg Register, celsius float32) error {
	if reg != RegOverTemperature && reg != RegHysteresis {
		return fmt.Errorf("ds7505: %w: %s", ErrNotAThreshold, reg)
	}
	data, err := EncodeTemperature(celsius)
	if err != nil {
		return fmt.Errorf("ds7505: could not encode %s: %w", reg, err)
	}
	err = s.write(ctx, "write "+reg.String(), []byte{byte(reg), data[0], data[1]})
	if err != nil {
		return fmt.Errorf("ds7505: could not write %s register: %w", reg, err)
	}
	if s.verify {
		_, err = s.ReadTemperature(ctx, reg)
		return err
	}
	s.store(reg, DecodeTemperature(data[:]))
	return nil
}

// SetOverTemperature writes the T_OS threshold.
func (s *DS7505) SetOverTemperature(ctx context.Context, celsius float32) error {
	return s.WriteThreshold(ctx, RegOverTemperature, celsius)
}

// SetHysteresis writes the T_HYST threshold.
func (s *DS7505) SetHysteresis(ctx context.Context, celsius float32) error {
	return s.WriteThreshold(ctx, RegHysteresis, celsius)
}

// CopyToNonVolatile copies the thresholds and config from SRAM to EEPROM.
func (s *DS7505) CopyToNonVolatile(ctx context.Context) error {
	err := s.write(ctx, "copy data", []byte{byte(CmdCopyData)})
	if err != nil {
		return fmt.Errorf("ds7505: could not send copy data command: %w", err)
	}
	return nil
}

// SoftwareReset issues a software POR. Bus errors are ignored; the device
// may not answer for a while afterwards.
func (s *DS7505) SoftwareReset(ctx context.Context) {
	_ = s.write(ctx, "software por", []byte{byte(CmdSoftwarePOR)})
}

// RecallFromNonVolatile reloads SRAM from EEPROM. Register reads return
// undefined data until MemoryBusy reports false.
func (s *DS7505) RecallFromNonVolatile(ctx context.Context) error {
	err := s.write(ctx, "recall data", []byte{byte(CmdRecallData)})
	if err != nil {
		return fmt.Errorf("ds7505: could not send recall data command: %w", err)
	}
	return nil
}

// MemoryBusy reads the config register and reports the NVB bit. A failed
// read reports false; use MemoryStatus to tell the two apart.
func (s *DS7505) MemoryBusy(ctx context.Context) bool {
	busy, err := s.MemoryStatus(ctx)
	if err != nil {
		return false
	}
	return busy
}

// MemoryStatus is MemoryBusy with the read error exposed.
func (s *DS7505) MemoryStatus(ctx context.Context) (bool, error) {
	config, err := s.ReadConfig(ctx)
	if err != nil {
		return false, err
	}
	return config.MemoryBusy(), nil
}

// WaitMemory polls MemoryStatus every interval until the EEPROM is idle.
// It returns the first read error or the context error.
func (s *DS7505) WaitMemory(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		busy, err := s.MemoryStatus(ctx)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetPowerMode does a read-modify-write of the shutdown bit, leaving every
// other config field as read.
func (s *DS7505) SetPowerMode(ctx context.Context, mode PowerMode) error {
	current, err := s.ReadConfig(ctx)
	if err != nil {
		return fmt.Errorf("ds7505: could not set %s mode: %w", mode, err)
	}
	next := current.WithPowerMode(mode)
	err = s.write(ctx, "write config", []byte{byte(RegConfig), byte(next)})
	if err != nil {
		return fmt.Errorf("ds7505: could not set %s mode: %w", mode, err)
	}
	s.config = next
	return nil
}

// Shutdown stops conversions.
func (s *DS7505) Shutdown(ctx context.Context) error {
	return s.SetPowerMode(ctx, PowerShutdown)
}

// WakeUp resumes continuous conversions.
func (s *DS7505) WakeUp(ctx context.Context) error {
	return s.SetPowerMode(ctx, PowerActive)
}

// Attach prepares the O.S. output for interrupt-driven use: it keeps the
// current resolution and fault tolerance and switches to interrupt mode with
// the given polarity. The GPIO side is configured by the caller.
func (s *DS7505) Attach(ctx context.Context, pol Polarity) (Config, error) {
	current, err := s.ReadConfig(ctx)
	if err != nil {
		return current, fmt.Errorf("ds7505: could not attach: %w", err)
	}
	return s.WriteConfig(ctx, current.Resolution(), current.FaultTolerance(), pol, ModeInterrupt)
}

// PowerMode returns the cached power mode. ok is false until the config
// register has been read at least once.
func (s *DS7505) PowerMode() (mode PowerMode, ok bool) {
	return s.config.PowerMode(), s.configKnown
}

// DS7505State is a copy of the driver cache.
type DS7505State struct {
	Address         byte    `yaml:"address"`
	Config          Config  `yaml:"config"`
	ConfigKnown     bool    `yaml:"config_known"`
	Temperature     float32 `yaml:"temperature"`
	OverTemperature float32 `yaml:"t_os"`
	Hysteresis      float32 `yaml:"t_hyst"`
}

// Snapshot returns the cached register values without touching the bus.
func (s *DS7505) Snapshot() DS7505State {
	return DS7505State{
		Address:         s.address,
		Config:          s.config,
		ConfigKnown:     s.configKnown,
		Temperature:     s.temperature,
		OverTemperature: s.tempOS,
		Hysteresis:      s.tempHyst,
	}
}

func (s *DS7505) cached(reg Register) float32 {
	switch reg {
	case RegOverTemperature:
		return s.tempOS
	case RegHysteresis:
		return s.tempHyst
	default:
		return s.temperature
	}
}

func (s *DS7505) store(reg Register, temp float32) {
	switch reg {
	case RegOverTemperature:
		s.tempOS = temp
	case RegHysteresis:
		s.tempHyst = temp
	default:
		s.temperature = temp
	}
}

func (s *DS7505) write(ctx context.Context, op string, frame []byte) error {
	err := s.transport.WriteToAddr(ctx, s.address, frame)
	s.trace(ctx, op, frame, nil, err)
	return ds7505.NewTransportError(op, s.address, err)
}

func (s *DS7505) tx(ctx context.Context, op string, w, r []byte) error {
	err := s.transport.TxAddr(ctx, s.address, w, r)
	s.trace(ctx, op, w, r, err)
	return ds7505.NewTransportError(op, s.address, err)
}

func (s *DS7505) trace(ctx context.Context, op string, w, r []byte, err error) {
	if !snsctx.IsVerbose(ctx) {
		return
	}
	if err != nil {
		slog.DebugContext(ctx, "ds7505 bus operation failed", "op", op, "addr", s.address, "w", hex.EncodeToString(w), "error", err)
		return
	}
	slog.DebugContext(ctx, "ds7505 bus operation", "op", op, "addr", s.address, "w", hex.EncodeToString(w), "r", hex.EncodeToString(r))
}
