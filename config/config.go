// Package config loads the spdenll command configuration from an optional
// YAML file, SPDENLL_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/notargets/spdebarrier/logging"
)

const envPrefix = "SPDENLL"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the full command configuration.
type Config struct {
	Log     logging.Config `mapstructure:"log"`
	Metrics Metrics        `mapstructure:"metrics"`
	Eval    Eval           `mapstructure:"eval"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr serves /metrics when non-empty, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

// Eval selects what the eval command computes beyond the value.
type Eval struct {
	Gradient bool `mapstructure:"gradient"`
	Report   bool `mapstructure:"report"`
}

var defaults = map[string]any{
	"log.level":     "info",
	"log.format":    "console",
	"metrics.addr":  "",
	"eval.gradient": false,
	"eval.report":   false,
}

// Flags maps command-line flag names to configuration keys.
var Flags = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-addr": "metrics.addr",
	"gradient":     "eval.gradient",
	"report":       "eval.report",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	return v
}

// Load builds the configuration. path may be empty; flags may be nil. Only
// flags present in Flags and changed on the command line override.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	if flags != nil {
		for name, key := range Flags {
			if fl := flags.Lookup(name); fl != nil {
				if err := v.BindPFlag(key, fl); err != nil {
					return nil, fmt.Errorf("config: bind flag %q: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the log settings and the metrics address.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	if c.Metrics.Addr != "" && !strings.Contains(c.Metrics.Addr, ":") {
		return fmt.Errorf("%w: metrics address %q needs a port", ErrInvalid, c.Metrics.Addr)
	}
	return nil
}
