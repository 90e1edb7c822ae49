package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/c360/eventlatency/errors"
)

// DefaultEnvPrefix prefixes every environment override
const DefaultEnvPrefix = "EVENTLATENCY"

// Loader loads configuration from defaults, then file layers in order, then
// environment overrides.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader with validation enabled
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a YAML or JSON configuration file. Later layers override
// fields set by earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load builds the configuration
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range l.layers {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("read %s", path))
		}
		if err := decode(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("parse %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Load reads the file at path (if any) over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	l := NewLoader()
	if path != "" {
		l.AddLayer(path)
	}
	return l.Load()
}

// decode unmarshals YAML (and therefore JSON) into cfg, keeping fields the
// document does not mention. Unknown keys are rejected.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	get := func(suffix string) (string, bool, error) {
		key := l.envPrefix + "_" + suffix
		val, ok := l.lookupEnv(key)
		if !ok || val == "" {
			return "", false, nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return "", false, errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "validate "+key)
		}
		return val, true, nil
	}

	if val, ok, err := get("WINDOW_SIZE"); err != nil {
		return err
	} else if ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", l.envPrefix+"_WINDOW_SIZE is not an integer")
		}
		cfg.Latency.WindowSize = n
	}

	if val, ok, err := get("BASE_DIR"); err != nil {
		return err
	} else if ok {
		cfg.Latency.BaseDir = val
	}

	if val, ok, err := get("REPORT_PATH"); err != nil {
		return err
	} else if ok {
		cfg.Latency.ReportPath = val
	}

	if val, ok, err := get("NATS_URL"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URL = val
	}

	return nil
}
