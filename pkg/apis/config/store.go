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

package config

import (
	"context"
	"errors"
)

type cfgKey struct{}

var errNoConfig = errors.New("no configuration in context")

// FromContext extracts a Config from the provided context.
func FromContext(ctx context.Context) (*Config, error) {
	x, ok := ctx.Value(cfgKey{}).(*Config)
	if ok {
		return x, nil
	}
	return nil, errNoConfig
}

// FromContextOrDefaults is like FromContext, but when no Config is attached it
// returns a Config populated with the defaults.
func FromContextOrDefaults(ctx context.Context) *Config {
	if cfg, err := FromContext(ctx); err == nil {
		return cfg
	}
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// ToContext attaches the provided Config to the provided context, returning the
// new context with the Config attached.
func ToContext(ctx context.Context, c *Config) context.Context {
	return context.WithValue(ctx, cfgKey{}, c)
}
