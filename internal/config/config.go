// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads runtime configuration from defaults, a YAML file and
// command-line flags, in that order of precedence.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// CodeInvalidConfig is returned when configuration fails to load or
// validate.
const CodeInvalidConfig = "INVALID_CONFIG"

// Config is the complete runtime configuration.
type Config struct {
	Log         LogConfig         `koanf:"log"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Pools       PoolsConfig       `koanf:"pools"`
	Timeouts    TimeoutsConfig    `koanf:"timeouts"`
	Distributor DistributorConfig `koanf:"distributor"`
	Local       LocalConfig       `koanf:"local"`
	Admission   AdmissionConfig   `koanf:"admission"`
	Permissions PermissionsConfig `koanf:"permissions"`
	AddOns      AddOnsConfig      `koanf:"addons"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Format string `koanf:"format" validate:"oneof=json text" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig controls the metrics and health endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// PoolsConfig sizes the two shared worker pools.
type PoolsConfig struct {
	System int `koanf:"system" validate:"min=1" jsonschema:"minimum=1"`
	AddOn  int `koanf:"addon" validate:"min=1" jsonschema:"minimum=1"`
}

// TimeoutsConfig holds the collective deadlines of the pipeline stages.
type TimeoutsConfig struct {
	Admission time.Duration `koanf:"admission" validate:"gt=0"`
	Listeners time.Duration `koanf:"listeners" validate:"gt=0"`
	Resources time.Duration `koanf:"resources" validate:"gt=0"`
	Output    time.Duration `koanf:"output" validate:"gt=0"`
}

// DistributorConfig tunes the event queue. Zero means unbounded.
type DistributorConfig struct {
	QueueLimit int `koanf:"queue_limit" validate:"min=0" jsonschema:"minimum=0"`
}

// LocalConfig tunes the local event manager.
type LocalConfig struct {
	ForwardRetries int `koanf:"forward_retries" validate:"min=0" jsonschema:"minimum=0"`
}

// AdmissionConfig lists admission policies, checked in order.
type AdmissionConfig struct {
	Policies []string `koanf:"policies"`
}

// PermissionsConfig maps add-on IDs to granted permission patterns.
type PermissionsConfig struct {
	Grants map[string][]string `koanf:"grants" validate:"dive,keys,required,endkeys,dive,required"`
}

// AddOnsConfig enables the built-in add-ons.
type AddOnsConfig struct {
	Clock  ClockConfig  `koanf:"clock"`
	Logout LogoutConfig `koanf:"logout"`
}

// ClockConfig configures the clock add-on. A zero interval disables the
// ticker while keeping the resource builder.
type ClockConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval" validate:"min=0"`
}

// LogoutConfig configures the log output add-on.
type LogoutConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Pools: PoolsConfig{
			System: 8,
			AddOn:  32,
		},
		Timeouts: TimeoutsConfig{
			Admission: time.Second,
			Listeners: time.Second,
			Resources: 10 * time.Second,
			Output:    5 * time.Second,
		},
		Local: LocalConfig{
			ForwardRetries: 5,
		},
		AddOns: AddOnsConfig{
			Clock: ClockConfig{
				Enabled: true,
			},
			Logout: LogoutConfig{
				Enabled: true,
			},
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return oops.Code(CodeInvalidConfig).Wrapf(err, "validate config")
	}
	return nil
}
