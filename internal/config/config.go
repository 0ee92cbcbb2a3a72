// Package config resolves the simulator settings from flags, environment
// variables, a .env file and an optional YAML file, in that precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/scintillation-simulator/internal/logging"
	"github.com/signalsfoundry/scintillation-simulator/model"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SCINTSIM"

// Defaults for a receiver at São José dos Campos, Brazil.
const (
	DefaultLatitude     = -23.20713241666
	DefaultLongitude    = -45.861737777
	DefaultAltitude     = 605.088
	DefaultReceiverName = "sao-jose-dos-campos"
)

// Flag names double as viper keys and, upper-cased, as env var suffixes.
const (
	KeyConfig         = "config"
	KeyReferenceTime  = "reference-time"
	KeyLat            = "lat"
	KeyLon            = "lon"
	KeyAlt            = "alt"
	KeyReceiverName   = "receiver-name"
	KeySystem         = "system"
	KeyOnline         = "online"
	KeyCacheResponses = "cache-responses"
	KeyDataDir        = "data-dir"
	KeyIdentity       = "identity"
	KeyPassword       = "password"
	KeyTimeout        = "http-timeout"
	KeyMinElevation   = "min-elevation"
	KeySampleTime     = "sample-time"
	KeySearchWindow   = "search-window"
	KeyEventStep      = "event-step"
	KeyWorkers        = "workers"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyLogDir         = "log-dir"
	KeyOutput         = "output"
	KeyFormat         = "format"
	KeyDuration       = "duration"
	KeyTick           = "tick"
	KeyMode           = "mode"
	KeyMetricsAddr    = "metrics-addr"
)

// Config is the fully resolved run configuration.
type Config struct {
	ReferenceTime time.Time `yaml:"reference_time" validate:"required"`

	ReceiverName string  `yaml:"receiver_name"`
	Latitude     float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Longitude    float64 `yaml:"lon" validate:"gte=-180,lte=180"`
	Altitude     float64 `yaml:"alt"`

	System         string        `yaml:"system" validate:"required"`
	Online         bool          `yaml:"online"`
	CacheResponses bool          `yaml:"cache_responses"`
	DataDir        string        `yaml:"data_dir" validate:"required"`
	Identity       string        `yaml:"identity" validate:"required_if=Online true"`
	Password       string        `yaml:"password" validate:"required_if=Online true"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" validate:"gt=0"`

	MinElevation float64       `yaml:"min_elevation" validate:"gte=0,lte=90"`
	SampleTime   time.Duration `yaml:"sample_time" validate:"gt=0"`
	SearchWindow time.Duration `yaml:"search_window" validate:"gt=0"`
	EventStep    time.Duration `yaml:"event_step" validate:"gt=0"`
	Workers      int           `yaml:"workers" validate:"gt=0"`

	Output string `yaml:"output"`
	Format string `yaml:"format" validate:"oneof=csv json"`

	Duration    time.Duration `yaml:"duration" validate:"gte=0"`
	Tick        time.Duration `yaml:"tick" validate:"gt=0"`
	Mode        string        `yaml:"mode" validate:"oneof=realtime accelerated"`
	MetricsAddr string        `yaml:"metrics_addr"`

	LogLevel  string `yaml:"log_level" validate:"loglevel"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
	LogDir    string `yaml:"log_dir"`
}

// Receiver is the configured ground receiver.
func (c Config) Receiver() model.Receiver {
	return model.Receiver{
		Name:         c.ReceiverName,
		LatitudeDeg:  c.Latitude,
		LongitudeDeg: c.Longitude,
		AltitudeM:    c.Altitude,
	}
}

// SatelliteSystem is the configured system. Load has already validated it.
func (c Config) SatelliteSystem() model.SatelliteSystem {
	return model.SatelliteSystem(c.System)
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	if c.Password != "" {
		c.Password = "*****"
	}
	return c
}

func defaults() map[string]any {
	return map[string]any{
		KeyLat:            DefaultLatitude,
		KeyLon:            DefaultLongitude,
		KeyAlt:            DefaultAltitude,
		KeyReceiverName:   DefaultReceiverName,
		KeySystem:         string(model.SystemGNSS),
		KeyOnline:         false,
		KeyCacheResponses: false,
		KeyDataDir:        "data",
		KeyTimeout:        30 * time.Second,
		KeyMinElevation:   5.0,
		KeySampleTime:     100 * time.Second,
		KeySearchWindow:   12 * time.Hour,
		KeyEventStep:      60 * time.Second,
		KeyWorkers:        4,
		KeyOutput:         "-",
		KeyFormat:         "csv",
		KeyDuration:       time.Duration(0),
		KeyTick:           time.Second,
		KeyMode:           "realtime",
		KeyLogLevel:       "info",
		KeyLogFormat:      "text",
	}
}

// BindPersistentFlags registers the flags every command shares.
func BindPersistentFlags(flags *pflag.FlagSet) {
	d := defaults()
	flags.SortFlags = true
	flags.String(KeyConfig, "", "path to a YAML config file")
	flags.String(KeyReferenceTime, "", "reference time, RFC3339 (default now)")
	flags.Float64(KeyLat, d[KeyLat].(float64), "receiver latitude in degrees")
	flags.Float64(KeyLon, d[KeyLon].(float64), "receiver longitude in degrees")
	flags.Float64(KeyAlt, d[KeyAlt].(float64), "receiver height above the WGS84 ellipsoid in metres")
	flags.String(KeyReceiverName, d[KeyReceiverName].(string), "receiver name used in exports")
	flags.String(KeySystem, d[KeySystem].(string), "satellite system: gnss, gps or cubesat")
	flags.Bool(KeyOnline, false, "download from CelesTrak and Space-Track instead of the cache")
	flags.Bool(KeyCacheResponses, false, "save downloaded responses to the data dir")
	flags.String(KeyDataDir, d[KeyDataDir].(string), "directory of cached responses")
	flags.String(KeyIdentity, "", "Space-Track login (or SCINTSIM_IDENTITY)")
	flags.String(KeyPassword, "", "Space-Track password (or SCINTSIM_PASSWORD)")
	flags.Duration(KeyTimeout, d[KeyTimeout].(time.Duration), "HTTP request timeout")
	flags.Float64(KeyMinElevation, d[KeyMinElevation].(float64), "elevation mask in degrees")
	flags.Duration(KeySampleTime, d[KeySampleTime].(time.Duration), "scenario sample spacing")
	flags.Duration(KeySearchWindow, d[KeySearchWindow].(time.Duration), "pass search half-width around the reference time")
	flags.Duration(KeyEventStep, d[KeyEventStep].(time.Duration), "coarse step of the pass search")
	flags.Int(KeyWorkers, d[KeyWorkers].(int), "satellites searched in parallel")
	flags.String(KeyLogLevel, d[KeyLogLevel].(string), "log level: trace, debug, info, warn or error")
	flags.String(KeyLogFormat, d[KeyLogFormat].(string), "console log format: text or json")
	flags.String(KeyLogDir, "", "directory for per-level rotating log files")
}

// BindOutputFlags registers the export flags.
func BindOutputFlags(flags *pflag.FlagSet) {
	flags.StringP(KeyOutput, "o", "-", `output file, "-" for stdout`)
	flags.String(KeyFormat, "csv", "output format: csv or json")
}

// BindTrackFlags registers the tracking loop flags.
func BindTrackFlags(flags *pflag.FlagSet) {
	flags.Duration(KeyDuration, 0, "simulated duration, 0 runs until interrupted")
	flags.Duration(KeyTick, time.Second, "simulation step")
	flags.String(KeyMode, "realtime", "realtime or accelerated")
	flags.String(KeyMetricsAddr, "", "serve Prometheus metrics on this address")
}

// Load resolves the configuration. flags may come from any command; keys
// it does not define fall back to env, file and defaults. now is used when
// no reference time is given.
func Load(flags *pflag.FlagSet, now time.Time) (Config, error) {
	if err := loadDotEnv("."); err != nil {
		return Config{}, err
	}

	v := viper.NewWithOptions(viper.EnvKeyReplacer(strings.NewReplacer("-", "_")))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, err
		}
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		ReceiverName:   v.GetString(KeyReceiverName),
		Latitude:       v.GetFloat64(KeyLat),
		Longitude:      v.GetFloat64(KeyLon),
		Altitude:       v.GetFloat64(KeyAlt),
		Online:         v.GetBool(KeyOnline),
		CacheResponses: v.GetBool(KeyCacheResponses),
		DataDir:        v.GetString(KeyDataDir),
		Identity:       strings.TrimSpace(v.GetString(KeyIdentity)),
		Password:       v.GetString(KeyPassword),
		HTTPTimeout:    v.GetDuration(KeyTimeout),
		MinElevation:   v.GetFloat64(KeyMinElevation),
		SampleTime:     v.GetDuration(KeySampleTime),
		SearchWindow:   v.GetDuration(KeySearchWindow),
		EventStep:      v.GetDuration(KeyEventStep),
		Workers:        v.GetInt(KeyWorkers),
		Output:         v.GetString(KeyOutput),
		Format:         strings.ToLower(v.GetString(KeyFormat)),
		Duration:       v.GetDuration(KeyDuration),
		Tick:           v.GetDuration(KeyTick),
		Mode:           strings.ToLower(v.GetString(KeyMode)),
		MetricsAddr:    v.GetString(KeyMetricsAddr),
		LogLevel:       strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:      strings.ToLower(v.GetString(KeyLogFormat)),
		LogDir:         v.GetString(KeyLogDir),
	}

	system, err := model.ParseSatelliteSystem(v.GetString(KeySystem))
	if err != nil {
		return Config{}, err
	}
	cfg.System = string(system)

	ref, err := parseReferenceTime(v.GetString(KeyReferenceTime), now)
	if err != nil {
		return Config{}, err
	}
	cfg.ReferenceTime = ref

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Receiver().Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseReferenceTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q: use RFC3339, e.g. 2024-11-25T12:00:00Z", KeyReferenceTime, s)
}

// loadDotEnv loads dir/.env when present. Variables already set win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot check %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks field ranges and reports every violation by its YAML key.
func Validate(cfg Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	if err := validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		return logging.ValidLevel(fl.Field().String())
	}); err != nil {
		return err
	}

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		errs = append(errs, fmt.Errorf(`key="%s", value="%v", failed "%s" validation`, e.Field(), redactValue(e), e.ActualTag()))
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

func redactValue(e validator.FieldError) any {
	if e.StructField() == "Password" {
		return "*****"
	}
	return e.Value()
}
