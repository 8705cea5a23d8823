//go:build integration

package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/ds7505/environment"
	"github.com/mklimuk/ds7505/snsctx"
)

// Needs an MCP2221 with a DS7505 strapped to 0x48.
func TestMCP2221_DS7505Hardware(t *testing.T) {
	ctx, cancel := context.WithTimeout(snsctx.SetVerbose(context.Background(), true), 10*time.Second)
	defer cancel()
	bridge := NewMCP2221()
	require.NoError(t, bridge.Init(ctx))

	s := environment.NewDS7505(bridge)
	_, err := s.WriteConfig(ctx, environment.Resolution12Bits, environment.FaultTolerance1, environment.ActiveLow, environment.ModeComparator)
	require.NoError(t, err)
	time.Sleep(environment.Resolution12Bits.ConversionTime())

	temp, err := s.GetTemperature(ctx)
	require.NoError(t, err)
	assert.Greater(t, temp, float32(-55))
	assert.Less(t, temp, float32(125))

	require.NoError(t, s.SetOverTemperature(ctx, 29))
	tos, err := s.GetOverTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(29), tos)

	require.NoError(t, s.Shutdown(ctx))
	mode, ok := s.PowerMode()
	assert.True(t, ok)
	assert.Equal(t, environment.PowerShutdown, mode)
	require.NoError(t, s.WakeUp(ctx))
}
