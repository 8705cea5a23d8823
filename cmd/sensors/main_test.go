package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/ds7505/cmd/sensors/config"
	"github.com/mklimuk/ds7505/cmd/sensors/console"
	"github.com/mklimuk/ds7505/environment"
)

func runSim(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	console.SetOutput(&out, &errOut)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })
	err := newApp().Run(append([]string{"sensors", "--adapter", "sim"}, args...))
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exerr cli.ExitCoder
	require.ErrorAs(t, err, &exerr)
	return exerr.ExitCode()
}

func TestCLI_Temperature(t *testing.T) {
	out, err := runSim(t, "temperature")
	require.NoError(t, err)
	assert.Contains(t, out, "°C")
}

func TestCLI_VerboseFlag(t *testing.T) {
	require.NotPanics(t, func() {
		out, err := runSim(t, "--verbose", "temperature")
		require.NoError(t, err)
		assert.Contains(t, out, "°C")
	})
	// -v stays the version flag
	_, err := runSim(t, "-v")
	assert.NoError(t, err)
}

func TestCLI_ConfigSet(t *testing.T) {
	out, err := runSim(t, "config", "set", "-r", "12", "-m", "interrupt", "-f", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "12 bits")
	assert.Contains(t, out, "4 faults")
	assert.Contains(t, out, "interrupt")
	assert.Contains(t, out, "active-low")
}

func TestCLI_ConfigSetInvalid(t *testing.T) {
	_, err := runSim(t, "config", "set", "-r", "13")
	assert.Equal(t, 1, exitCode(t, err))
	_, err = runSim(t, "config", "set", "-m", "latched")
	assert.Equal(t, 1, exitCode(t, err))
}

func TestCLI_Threshold(t *testing.T) {
	out, err := runSim(t, "threshold", "set", "--os", "29", "--hyst", "22.5")
	require.NoError(t, err)
	assert.Contains(t, out, "T_OS 29")
	assert.Contains(t, out, "T_HYST 22.5")

	_, err = runSim(t, "threshold", "set")
	assert.Equal(t, 1, exitCode(t, err))

	_, err = runSim(t, "threshold", "set", "--os", "200")
	assert.Equal(t, 1, exitCode(t, err))

	out, err = runSim(t, "threshold", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "T_OS:   80")
	assert.Contains(t, out, "T_HYST: 75")
}

func TestCLI_NonVolatile(t *testing.T) {
	out, err := runSim(t, "nv", "copy", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "done")

	out, err = runSim(t, "nv", "busy")
	require.NoError(t, err)
	assert.Contains(t, out, "idle")

	out, err = runSim(t, "reset", "-y")
	require.NoError(t, err)
	assert.Contains(t, out, "reset sent")
}

func TestCLI_PowerAndAttach(t *testing.T) {
	out, err := runSim(t, "power", "shutdown")
	require.NoError(t, err)
	assert.Contains(t, out, "shutdown")

	out, err = runSim(t, "attach", "-p", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "active-high")
	assert.Contains(t, out, "interrupt")
}

func TestCLI_Snapshot(t *testing.T) {
	out, err := runSim(t, "--strap", "2", "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "address: 74")
	assert.Contains(t, out, "config_known: true")
	assert.Contains(t, out, "t_os: 80")
}

func TestCLI_Settings(t *testing.T) {
	_, err := runSim(t, "--strap", "9", "temperature")
	assert.Equal(t, 1, exitCode(t, err))

	path := filepath.Join(t.TempDir(), "sensors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: periph\nstrap: 5\nverify_thresholds: true\n"), 0o600))
	// flags win over the file
	_, err = runSim(t, "--config", path, "temperature")
	require.NoError(t, err)
	assert.Equal(t, config.AdapterSim, settings.Adapter)
	assert.Equal(t, byte(5), settings.Strap)
	assert.True(t, settings.VerifyThresholds)
}

func TestParseFields(t *testing.T) {
	res, err := parseResolution(11)
	require.NoError(t, err)
	assert.Equal(t, environment.Resolution11Bits, res)
	ft, err := parseFaultTolerance(6)
	require.NoError(t, err)
	assert.Equal(t, environment.FaultTolerance6, ft)
	_, err = parseFaultTolerance(3)
	assert.Error(t, err)
	mode, err := parseMode("cmp")
	require.NoError(t, err)
	assert.Equal(t, environment.ModeComparator, mode)
}
