package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/signalsfoundry/scintillation-simulator/internal/cache"
	"github.com/signalsfoundry/scintillation-simulator/internal/fixtures"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// seedCache writes responses as if a previous online run had cached them.
func seedCache(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store := cache.New(nil, dir, nil)
	require.NoError(t, store.Save(cache.KindCelestrak, model.SystemGNSS, fixtures.CelestrakGNSS))
	require.NoError(t, store.Save(cache.KindSpaceTrack, model.SystemGNSS, fixtures.CelestrakGNSS))
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SCINTSIM_TRACING_ENABLED", "false")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(func() time.Time { return fixtures.CelestrakEpoch })
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestIDsCommand(t *testing.T) {
	dir := seedCache(t)
	stdout, _, err := run(t, "ids", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(fixtures.CelestrakGNSSIDs, ",")+"\n", stdout)
}

func TestTLEsCommand(t *testing.T) {
	dir := seedCache(t)
	stdout, _, err := run(t, "tles", "--data-dir", dir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 18)
	assert.Equal(t, "GPS BIIR-2  (PRN 13)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1 24876U"))
}

func TestOfflineWithoutCacheFails(t *testing.T) {
	_, _, err := run(t, "ids", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--online")
}

func TestLOSCommandWritesJSON(t *testing.T) {
	dir := seedCache(t)
	out := filepath.Join(t.TempDir(), "scenarios.json")
	_, stderr, err := run(t, "los", "--data-dir", dir, "--output", out, "--format", "json", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, stderr, "line of sight search done")
	assert.Contains(t, stderr, "run_id=")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var scenarios []struct {
		Satellite string `json:"satellite"`
		NoradID   int    `json:"norad_id"`
		Samples   []struct {
			ElevationDeg float64 `json:"elevation_deg"`
		} `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(data, &scenarios))
	for _, sc := range scenarios {
		assert.NotEmpty(t, sc.Satellite)
		assert.GreaterOrEqual(t, len(sc.Samples), 2)
	}
}

func TestLOSCommandCSVToStdout(t *testing.T) {
	dir := seedCache(t)
	stdout, _, err := run(t, "los", "--data-dir", dir, "--reference-time", "2024-11-25T12:00:00Z")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "satellite,norad_id,time,range_km,range_rate_m_s,elevation_deg,azimuth_rad\n"))
}

func TestConfigCommandMasksPassword(t *testing.T) {
	t.Setenv("SCINTSIM_IDENTITY", "user@example.com")
	t.Setenv("SCINTSIM_PASSWORD", "hunter2")
	stdout, _, err := run(t, "config", "--system", "gps", "--lat", "10")
	require.NoError(t, err)

	assert.Contains(t, stdout, "system: gps")
	assert.Contains(t, stdout, "lat: 10")
	assert.Contains(t, stdout, "*****")
	assert.NotContains(t, stdout, "hunter2")
}

func TestInvalidFlagValue(t *testing.T) {
	_, _, err := run(t, "config", "--lat", "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key="lat"`)
}

func TestTrackCommandAccelerated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := seedCache(t)
	_, stderr, err := run(t, "track", "--data-dir", dir,
		"--mode", "accelerated", "--tick", "10s", "--duration", "1m", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, "tracking started")
	assert.Contains(t, stderr, "tracking finished")
	assert.Contains(t, stderr, "observation")
}

func TestTeardownRunsWhenCommandFails(t *testing.T) {
	t.Setenv("SCINTSIM_TRACING_ENABLED", "false")
	cases := []struct {
		name    string
		dataDir string
		wantErr bool
	}{
		{"failing command", t.TempDir(), true},
		{"successful command", seedCache(t), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &app{now: func() time.Time { return fixtures.CelestrakEpoch }}
			cmd := a.rootCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs([]string{"ids", "--data-dir", tc.dataDir, "--log-dir", t.TempDir()})

			err := cmd.Execute()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, a.closed, "log files and tracer left open")
			require.NoError(t, a.teardown(context.Background()))
		})
	}
}

func TestCredentialFlags(t *testing.T) {
	t.Setenv("SCINTSIM_IDENTITY", "")
	t.Setenv("SCINTSIM_PASSWORD", "")
	stdout, _, err := run(t, "config", "--online", "--identity", "user@example.com", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "identity: user@example.com")
	assert.NotContains(t, stdout, "hunter2")
}
