// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Pillar settings from defaults, a YAML or JSON file,
// an optional profile overlay, PILLAR_* environment variables and --set
// overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/executive"
	"github.com/jllopis/pillar/pkg/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PILLAR_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Executive ExecutiveConfig `koanf:"executive"`
	Audit     AuditConfig     `koanf:"audit"`
	World     WorldConfig     `koanf:"world"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter              string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint          string `koanf:"otlp_endpoint"`
	OTLPInsecure          bool   `koanf:"otlp_insecure"`
	ServiceName           string `koanf:"service_name"`
	MetricIntervalSeconds int    `koanf:"metric_interval_seconds"`
}

// ExecutiveConfig mirrors executive.Config in file form.
type ExecutiveConfig struct {
	MaxBatch             int     `koanf:"max_batch"`
	MaxPulls             int     `koanf:"max_pulls"`
	MaxSteps             int     `koanf:"max_steps"`
	TerminationMode      string  `koanf:"termination_mode"` // threshold, sample
	TerminationThreshold float64 `koanf:"termination_threshold"`
	SuccessThreshold     float64 `koanf:"success_threshold"`
	Seed                 int64   `koanf:"seed"`
	MaxAttempts          int     `koanf:"max_attempts"`
	RetryDelayMS         int     `koanf:"retry_delay_ms"`
}

type AuditConfig struct {
	Driver string `koanf:"driver"` // none, memory, sqlite
	DSN    string `koanf:"dsn"`
}

// WorldConfig seeds the simulated rail world used by the CLI.
type WorldConfig struct {
	Length  float64        `koanf:"length"`
	Gripper float64        `koanf:"gripper"`
	Speed   float64        `koanf:"speed"`
	Objects []ObjectConfig `koanf:"objects"`
}

type ObjectConfig struct {
	Name     string  `koanf:"name"`
	Position float64 `koanf:"position"`
}

func defaults(k *koanf.Koanf) {
	def := executive.DefaultConfig()
	values := map[string]any{
		"log.level":                         "info",
		"log.format":                        "text",
		"telemetry.exporter":                "none",
		"telemetry.otlp_endpoint":           "localhost:4317",
		"telemetry.otlp_insecure":           true,
		"telemetry.service_name":            "pillar",
		"telemetry.metric_interval_seconds": 10,
		"executive.max_batch":               def.MaxBatch,
		"executive.max_pulls":               def.MaxPulls,
		"executive.max_steps":               def.MaxSteps,
		"executive.termination_mode":        string(def.TerminationMode),
		"executive.termination_threshold":   def.TerminationThreshold,
		"executive.success_threshold":       def.SuccessThreshold,
		"executive.seed":                    def.Seed,
		"executive.max_attempts":            def.Retry.MaxAttempts,
		"executive.retry_delay_ms":          int(def.Retry.InitialDelay / time.Millisecond),
		"audit.driver":                      "memory",
		"audit.dsn":                         "",
		"world.length":                      10.0,
		"world.gripper":                     0.0,
		"world.speed":                       0.5,
	}
	for key, value := range values {
		_ = k.Set(key, value)
	}
}

// Load reads defaults, the file at path (if any) and PILLAR_* variables.
func Load(path string) (*Config, error) {
	return LoadWithProfile(path, "")
}

// LoadWithProfile is Load plus a profile overlay: with profile "dev" and
// path "conf/pillar.yaml", "conf/pillar.dev.yaml" is merged on top when it
// exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	k, err := load(path, profile, nil)
	if err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// LoadWithCLI parses --config, --profile and repeated --set key=value
// arguments. --set wins over everything else.
func LoadWithCLI(args []string) (*Config, error) {
	path, profile, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	k, err := load(path, profile, overrides)
	if err != nil {
		return nil, err
	}
	return unmarshal(k)
}

func load(path, profile string, overrides map[string]any) (*koanf.Koanf, error) {
	k := koanf.New(".")
	defaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("load config %s", path), err)
		}
		if profile != "" {
			overlay := profilePath(path, profile)
			if _, err := os.Stat(overlay); err == nil {
				if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
					return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("load profile %s", overlay), err)
				}
			}
		}
	}

	// PILLAR_EXECUTIVE_MAX_STEPS -> executive.max_steps
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("apply --set %s", key), err)
		}
	}
	return k, nil
}

// envKey maps an environment variable to a config key. Only the first
// underscore after the prefix separates section from field, so field
// names keep their underscores.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func profilePath(path, profile string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + profile + ext
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseCLIOverrides(args []string) (string, string, map[string]any, error) {
	var path, profile string
	overrides := map[string]any{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var value string
		switch {
		case arg == "--config", arg == "--profile", arg == "--set":
			if i+1 >= len(args) {
				return "", "", nil, fmt.Errorf("missing value for %s", arg)
			}
			value = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--profile="), strings.HasPrefix(arg, "--set="):
			arg, value, _ = strings.Cut(arg, "=")
		default:
			return "", "", nil, fmt.Errorf("unknown config flag %q", arg)
		}
		switch arg {
		case "--config":
			path = value
		case "--profile":
			profile = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return "", "", nil, fmt.Errorf("invalid --set %q, expected key=value", value)
			}
			overrides[key] = parseOverrideValue(raw)
		}
	}
	return path, profile, overrides, nil
}

// parseOverrideValue decodes raw as a YAML scalar or flow collection so that
// numbers, booleans and lists keep their type. Anything else stays a string.
func parseOverrideValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var out any
	if err := yamlv3.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return raw
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return errors.Newf(errors.CodeInvalidInput, "unknown log format %q", c.Log.Format)
	}
	switch strings.ToLower(c.Telemetry.Exporter) {
	case "none", "stdout", "otlp":
	default:
		return errors.Newf(errors.CodeInvalidInput, "unknown telemetry exporter %q", c.Telemetry.Exporter)
	}
	switch strings.ToLower(c.Audit.Driver) {
	case "none", "memory":
	case "sqlite":
		if strings.TrimSpace(c.Audit.DSN) == "" {
			return errors.New(errors.CodeInvalidInput, "audit.dsn is required for the sqlite driver", nil)
		}
	default:
		return errors.Newf(errors.CodeInvalidInput, "unknown audit driver %q", c.Audit.Driver)
	}
	if err := c.World.Validate(); err != nil {
		return err
	}
	return c.Executive.ToExecutive().Validate()
}

// Validate rejects a starting rail the simulator could not reach by itself:
// gripper or objects off the rail, or objects without a unique name.
func (w WorldConfig) Validate() error {
	if w.Length <= 0 {
		return errors.Newf(errors.CodeInvalidInput, "world.length must be positive, got %v", w.Length)
	}
	if w.Speed <= 0 {
		return errors.Newf(errors.CodeInvalidInput, "world.speed must be positive, got %v", w.Speed)
	}
	if w.Gripper < 0 || w.Gripper > w.Length {
		return errors.Newf(errors.CodeInvalidInput, "world.gripper %v is off the rail [0, %v]", w.Gripper, w.Length)
	}
	seen := make(map[string]bool, len(w.Objects))
	for i, o := range w.Objects {
		name := strings.TrimSpace(o.Name)
		switch {
		case name == "":
			return errors.Newf(errors.CodeInvalidInput, "world.objects[%d] has no name", i)
		case seen[name]:
			return errors.Newf(errors.CodeInvalidInput, "world.objects[%d]: duplicate name %q", i, name)
		case o.Position < 0 || o.Position > w.Length:
			return errors.Newf(errors.CodeInvalidInput, "world.objects[%d] %q at %v is off the rail [0, %v]", i, name, o.Position, w.Length)
		}
		seen[name] = true
	}
	return nil
}

// ToExecutive converts the file form into executive.Config.
func (c ExecutiveConfig) ToExecutive() executive.Config {
	cfg := executive.DefaultConfig()
	cfg.MaxBatch = c.MaxBatch
	cfg.MaxPulls = c.MaxPulls
	cfg.MaxSteps = c.MaxSteps
	cfg.TerminationMode = executive.TerminationMode(strings.ToLower(c.TerminationMode))
	cfg.TerminationThreshold = c.TerminationThreshold
	cfg.SuccessThreshold = c.SuccessThreshold
	cfg.Seed = c.Seed
	cfg.Retry = cfg.Retry.WithMaxAttempts(c.MaxAttempts)
	if c.RetryDelayMS > 0 {
		cfg.Retry = cfg.Retry.WithInitialDelay(time.Duration(c.RetryDelayMS) * time.Millisecond)
	}
	return cfg
}

// ToTelemetry converts the file form into telemetry.Config.
func (c TelemetryConfig) ToTelemetry() telemetry.Config {
	return telemetry.Config{
		Exporter:       strings.ToLower(c.Exporter),
		OTLPEndpoint:   c.OTLPEndpoint,
		OTLPInsecure:   c.OTLPInsecure,
		MetricInterval: time.Duration(c.MetricIntervalSeconds) * time.Second,
	}
}
