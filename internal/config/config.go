// Package config loads Raven's tunable runtime settings — GC pacing,
// stress-GC mode, and log level — from flags, environment variables,
// and an optional config file, layered in that order of precedence.
//
// Grounded on ProbeChain-go-probe's layered flags/env/file config
// idiom, adapted from that project's node/metrics config structs to
// Raven's much smaller VM knob set. Lib: github.com/spf13/viper.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds every setting internal/vm.Config needs plus the log
// level the CLI applies to its logrus.Logger before constructing the
// VM.
type Config struct {
	GCInitialThreshold int    `mapstructure:"gc_initial_threshold"`
	GCGrowthFactor     float64 `mapstructure:"gc_growth_factor"`
	StressGC           bool   `mapstructure:"stress_gc"`
	LogLevel           string `mapstructure:"log_level"`
}

// Load reads config from (in increasing precedence order) built-in
// defaults, a config file named raven.yaml/raven.json/etc. on the
// search path, and an RAVEN_-prefixed environment variable per field.
// Load reads no command-line flags; the CLI applies its --stress-gc
// flag to the returned Config afterwards. configFile, if non-empty, is
// read in preference to the search path.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetDefault("gc_initial_threshold", 1<<20)
	v.SetDefault("gc_growth_factor", 2.0)
	v.SetDefault("stress_gc", false)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("raven")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("raven")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && configFile != "" {
			return Config{}, errors.Wrapf(err, "reading config file %q", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding configuration")
	}
	return cfg, nil
}

// ParseLevel resolves the configured log level, falling back to Info
// (with a warning on the given logger) if the string isn't valid.
func ParseLevel(log *logrus.Logger, level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unrecognized log level, defaulting to info")
		return logrus.InfoLevel
	}
	return lvl
}
