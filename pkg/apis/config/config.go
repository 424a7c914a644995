/*
Copyright 2026 The FleetCI Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config holds the agent configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"knative.dev/pkg/apis"
	"sigs.k8s.io/yaml"
)

const (
	// EnvPrefix prefixes the environment variables that override the file,
	// as in FLEETCI_AGENT_ID.
	EnvPrefix = "fleetci"

	DefaultWorkRoot       = "/var/lib/fleetci/agent"
	DefaultArtifactsDir   = "artifacts"
	DefaultEventCacheSize = 4096
	DefaultLogLevel       = "info"
	DefaultTracingService = "fleetci-agent"
)

// Config is the configuration of one agent.
type Config struct {
	Agent     Agent     `json:"agent"`
	Artifacts Artifacts `json:"artifacts"`
	Events    Events    `json:"events"`
	Tracing   Tracing   `json:"tracing"`
	Logging   Logging   `json:"logging"`
}

// Agent identifies the agent and where it builds.
type Agent struct {
	ID       string `json:"id,omitempty" split_words:"true"`
	Hostname string `json:"hostname,omitempty" split_words:"true"`
	// Location is shown in the job console; it defaults to WorkRoot.
	Location string `json:"location,omitempty" split_words:"true"`
	WorkRoot string `json:"workRoot,omitempty" split_words:"true"`
}

// Artifacts configures the local artifact store.
type Artifacts struct {
	Root string `json:"root,omitempty" split_words:"true"`
}

// Events configures the cloud events status reports are sent as.
type Events struct {
	// Sink is the URL events are sent to. Empty disables events.
	Sink      string `json:"sink,omitempty" split_words:"true"`
	CacheSize int    `json:"cacheSize,omitempty" split_words:"true"`
}

// Tracing configures the jaeger exporter.
type Tracing struct {
	Enabled  bool   `json:"enabled,omitempty" split_words:"true"`
	Endpoint string `json:"endpoint,omitempty" split_words:"true"`
	Username string `json:"username,omitempty" split_words:"true"`
	Password string `json:"password,omitempty" split_words:"true"`
	Service  string `json:"service,omitempty" split_words:"true"`
}

// Logging configures the agent's own log.
type Logging struct {
	Level string `json:"level,omitempty" split_words:"true"`
}

// Equals returns true if two Tracing configs are identical
func (t *Tracing) Equals(other *Tracing) bool {
	if t == nil && other == nil {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	return *t == *other
}

// Load reads the configuration file at path, if any, applies the FLEETCI_*
// environment overrides and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(context.Background()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills in every unset field.
func (c *Config) SetDefaults() {
	if c.Agent.WorkRoot == "" {
		c.Agent.WorkRoot = DefaultWorkRoot
	}
	if c.Agent.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			c.Agent.Hostname = h
		}
	}
	if c.Agent.ID == "" {
		c.Agent.ID = c.Agent.Hostname
	}
	if c.Agent.Location == "" {
		c.Agent.Location = c.Agent.WorkRoot
	}
	if c.Artifacts.Root == "" {
		c.Artifacts.Root = filepath.Join(c.Agent.WorkRoot, DefaultArtifactsDir)
	}
	if c.Events.CacheSize == 0 {
		c.Events.CacheSize = DefaultEventCacheSize
	}
	if c.Tracing.Service == "" {
		c.Tracing.Service = DefaultTracingService
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Validate implements apis.Validatable
func (c *Config) Validate(ctx context.Context) (errs *apis.FieldError) {
	if !filepath.IsAbs(c.Agent.WorkRoot) {
		errs = errs.Also(apis.ErrInvalidValue(c.Agent.WorkRoot, "agent.workRoot", "must be an absolute path"))
	}
	if c.Events.CacheSize < 0 {
		errs = errs.Also(apis.ErrInvalidValue(c.Events.CacheSize, "events.cacheSize", "must not be negative"))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = errs.Also(apis.ErrMissingField("tracing.endpoint"))
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = errs.Also(apis.ErrInvalidValue(c.Logging.Level, "logging.level", err.Error()))
	}
	return errs
}

// LogLevel returns the configured zap level.
func (c *Config) LogLevel() zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
