package environment

import (
	"encoding/hex"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestDS7505_DecodeTemperature(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float32
	}{
		{[]byte{0x1C, 0x00}, 28.0},
		{[]byte{0x00, 0x80}, 0.5},
		{[]byte{0x00, 0x00}, 0.0},
		{[]byte{0x19, 0x10}, 25.0625},
		{[]byte{0x7D, 0x00}, 125.0},
		{[]byte{0xFF, 0x80}, -0.5},
		{[]byte{0xE7, 0x00}, -25.0},
		{[]byte{0xC9, 0x00}, -55.0},
		{[]byte{0x80, 0x00}, -128.0},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.Equal(t, test.expected, DecodeTemperature(test.given))
		})
	}
}

func TestDS7505_EncodeTemperature(t *testing.T) {
	tests := []struct {
		name     string
		given    float32
		expected [2]byte
	}{
		{"29C", 29.0, [2]byte{0x1D, 0x00}},
		{"22.5C", 22.5, [2]byte{0x16, 0x80}},
		{"zero", 0, [2]byte{0x00, 0x00}},
		{"negative half", -0.5, [2]byte{0xFF, 0x80}},
		{"-55C", -55.0, [2]byte{0xC9, 0x00}},
		{"max", MaxRegisterTemperature, [2]byte{0x7F, 0xFF}},
		{"min", MinRegisterTemperature, [2]byte{0x80, 0x00}},
		{"truncates positive", 0.0039, [2]byte{0x00, 0x00}},
		{"truncates negative toward zero", -0.0039, [2]byte{0x00, 0x00}},
		{"truncates below lsb", 25.07, [2]byte{0x19, 0x11}},
		{"truncates into max", 127.999, [2]byte{0x7F, 0xFF}},
		{"truncates into min", -128.001, [2]byte{0x80, 0x00}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := EncodeTemperature(test.given)
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestDS7505_EncodeTemperature_OutOfRange(t *testing.T) {
	for _, v := range []float32{128.0, -128.01, 1000, float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		_, err := EncodeTemperature(v)
		assert.ErrorIs(t, err, ErrOutOfRange, "value %v", v)
	}
}

func TestDS7505_TemperatureRoundTrip(t *testing.T) {
	for raw := math.MinInt16; raw <= math.MaxInt16; raw++ {
		given := []byte{byte(uint16(raw) >> 8), byte(uint16(raw))}
		got, err := EncodeTemperature(DecodeTemperature(given))
		require.NoError(t, err)
		if got[0] != given[0] || got[1] != given[1] {
			t.Fatalf("round trip of %#04x gave %s", uint16(raw), hex.EncodeToString(got[:]))
		}
	}
}

func TestDS7505_PackConfig(t *testing.T) {
	tests := []struct {
		name     string
		res      Resolution
		ft       FaultTolerance
		pol      Polarity
		mode     ThermostatMode
		expected Config
	}{
		{"defaults", Resolution9Bits, FaultTolerance1, ActiveLow, ModeComparator, 0x00},
		{"12 bits interrupt", Resolution12Bits, FaultTolerance1, ActiveLow, ModeInterrupt, 0x62},
		{"all set", Resolution12Bits, FaultTolerance6, ActiveHigh, ModeInterrupt, 0x7E},
		{"10 bits 2 faults", Resolution10Bits, FaultTolerance2, ActiveLow, ModeComparator, 0x28},
		{"11 bits 4 faults high", Resolution11Bits, FaultTolerance4, ActiveHigh, ModeComparator, 0x54},
		{"stray bits are masked", Resolution(0xFF), FaultTolerance(0xFF), Polarity(0xFF), ThermostatMode(0xFF), 0x7E},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := PackConfig(test.res, test.ft, test.pol, test.mode)
			assert.Equal(t, test.expected, got)
			assert.False(t, got.Shutdown())
			assert.False(t, got.MemoryBusy())
		})
	}
}

func TestDS7505_ConfigFields(t *testing.T) {
	c := Config(0xFF)
	assert.Equal(t, Resolution12Bits, c.Resolution())
	assert.Equal(t, FaultTolerance6, c.FaultTolerance())
	assert.Equal(t, ActiveHigh, c.Polarity())
	assert.Equal(t, ModeInterrupt, c.Mode())
	assert.True(t, c.Shutdown())
	assert.True(t, c.MemoryBusy())
	assert.Equal(t, PowerShutdown, c.PowerMode())

	c = Config(0x00)
	assert.Equal(t, Resolution9Bits, c.Resolution())
	assert.Equal(t, PowerActive, c.PowerMode())
	assert.NotEmpty(t, c.String())
}

func TestDS7505_ConfigWithPowerMode(t *testing.T) {
	assert.Equal(t, Config(0x63), Config(0x62).WithPowerMode(PowerShutdown))
	assert.Equal(t, Config(0x62), Config(0x63).WithPowerMode(PowerActive))
	assert.Equal(t, Config(0x63), Config(0x63).WithPowerMode(PowerShutdown))
	assert.Equal(t, Config(0xE2), Config(0xE3).WithPowerMode(PowerActive))
}

func TestDS7505_Resolution(t *testing.T) {
	assert.Equal(t, 9, Resolution9Bits.Bits())
	assert.Equal(t, 12, Resolution12Bits.Bits())
	assert.Equal(t, 25*time.Millisecond, Resolution9Bits.ConversionTime())
	assert.Equal(t, 50*time.Millisecond, Resolution10Bits.ConversionTime())
	assert.Equal(t, 100*time.Millisecond, Resolution11Bits.ConversionTime())
	assert.Equal(t, 200*time.Millisecond, Resolution12Bits.ConversionTime())
}

func TestDS7505_FaultTolerance(t *testing.T) {
	assert.Equal(t, 1, FaultTolerance1.Count())
	assert.Equal(t, 2, FaultTolerance2.Count())
	assert.Equal(t, 4, FaultTolerance4.Count())
	assert.Equal(t, 6, FaultTolerance6.Count())
}

func TestDS7505_Celsius(t *testing.T) {
	assert.Equal(t, physic.ZeroCelsius, Celsius(0))
	assert.Equal(t, physic.ZeroCelsius+25*physic.Kelvin, Celsius(25))
	assert.InDelta(t, -0.5, Celsius(-0.5).Celsius(), 1e-9)
}
