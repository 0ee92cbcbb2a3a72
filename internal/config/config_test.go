package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

var now = time.Date(2024, time.November, 25, 12, 0, 0, 0, time.UTC)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindPersistentFlags(flags)
	BindOutputFlags(flags)
	BindTrackFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t), now)
	require.NoError(t, err)

	assert.Equal(t, now, cfg.ReferenceTime)
	assert.Equal(t, model.Receiver{
		Name:         DefaultReceiverName,
		LatitudeDeg:  DefaultLatitude,
		LongitudeDeg: DefaultLongitude,
		AltitudeM:    DefaultAltitude,
	}, cfg.Receiver())
	assert.Equal(t, model.SystemGNSS, cfg.SatelliteSystem())
	assert.False(t, cfg.Online)
	assert.Equal(t, 5.0, cfg.MinElevation)
	assert.Equal(t, 100*time.Second, cfg.SampleTime)
	assert.Equal(t, 12*time.Hour, cfg.SearchWindow)
	assert.Equal(t, "csv", cfg.Format)
	assert.Equal(t, "-", cfg.Output)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadWithoutCommandFlags(t *testing.T) {
	cfg, err := Load(nil, now)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Tick)
	assert.Equal(t, "realtime", cfg.Mode)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SCINTSIM_SYSTEM", "gps")
	t.Setenv("SCINTSIM_MIN_ELEVATION", "15")
	t.Setenv("SCINTSIM_SAMPLE_TIME", "30s")

	cfg, err := Load(newFlags(t, "--min-elevation=10", "--reference-time=2024-10-28T08:54:00Z"), now)
	require.NoError(t, err)

	assert.Equal(t, "gps", cfg.System)
	assert.Equal(t, 10.0, cfg.MinElevation)
	assert.Equal(t, 30*time.Second, cfg.SampleTime)
	assert.Equal(t, time.Date(2024, time.October, 28, 8, 54, 0, 0, time.UTC), cfg.ReferenceTime)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scintsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lat: 10.5\nlon: -20.25\nsystem: cubesat\nworkers: 8\n"), 0o600))

	cfg, err := Load(newFlags(t, "--config="+path, "--lon=30"), now)
	require.NoError(t, err)
	assert.Equal(t, 10.5, cfg.Latitude)
	assert.Equal(t, 30.0, cfg.Longitude)
	assert.Equal(t, "cubesat", cfg.System)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		key  string
	}{
		{"latitude", []string{"--lat=91"}, `key="lat"`},
		{"longitude", []string{"--lon=-181"}, `key="lon"`},
		{"system", []string{"--system=glonass"}, "unknown satellite system"},
		{"elevation", []string{"--min-elevation=95"}, `key="min_elevation"`},
		{"sample time", []string{"--sample-time=0s"}, `key="sample_time"`},
		{"format", []string{"--format=xml"}, `key="format"`},
		{"log level", []string{"--log-level=loud"}, `key="log_level"`},
		{"reference time", []string{"--reference-time=yesterday"}, "reference-time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tc.args...), now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestOnlineRequiresCredentials(t *testing.T) {
	t.Setenv("SCINTSIM_IDENTITY", "")
	t.Setenv("SCINTSIM_PASSWORD", "")

	_, err := Load(newFlags(t, "--online"), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key="identity"`)

	t.Setenv("SCINTSIM_IDENTITY", "user@example.com")
	t.Setenv("SCINTSIM_PASSWORD", "hunter2")
	cfg, err := Load(newFlags(t, "--online"), now)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", cfg.Identity)
	assert.Equal(t, "*****", cfg.Redacted().Password)
	assert.Equal(t, "hunter2", cfg.Password)
}

func TestCredentialFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SCINTSIM_IDENTITY", "env@example.com")
	t.Setenv("SCINTSIM_PASSWORD", "from-env")

	cfg, err := Load(newFlags(t, "--online", "--identity", "flag@example.com", "--password", "from-flag"), now)
	require.NoError(t, err)
	assert.Equal(t, "flag@example.com", cfg.Identity)
	assert.Equal(t, "from-flag", cfg.Password)

	t.Setenv("SCINTSIM_IDENTITY", "")
	t.Setenv("SCINTSIM_PASSWORD", "")
	cfg, err = Load(newFlags(t, "--online", "--identity", "flag@example.com", "--password", "from-flag"), now)
	require.NoError(t, err)
	assert.Equal(t, "flag@example.com", cfg.Identity)
}

func TestLogLevelAliases(t *testing.T) {
	for _, level := range []string{"trace", "DEBUG", "warning", "error"} {
		cfg, err := Load(newFlags(t, "--log-level", level), now)
		require.NoError(t, err, level)
		assert.True(t, logging.ValidLevel(cfg.LogLevel), level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("SCINTSIM_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("SCINTSIM_DOTENV_VALUE"))
	t.Setenv("SCINTSIM_DOTENV_KEEP", "from-env")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SCINTSIM_DOTENV_VALUE=from-file\nSCINTSIM_DOTENV_KEEP=from-file\n"), 0o600))

	require.NoError(t, loadDotEnv(dir))
	assert.Equal(t, "from-file", os.Getenv("SCINTSIM_DOTENV_VALUE"))
	assert.Equal(t, "from-env", os.Getenv("SCINTSIM_DOTENV_KEEP"))

	// A missing file is not an error.
	require.NoError(t, loadDotEnv(t.TempDir()))
}
