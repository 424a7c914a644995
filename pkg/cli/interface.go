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

// Package cli holds what every agent command shares.
package cli

import (
	"io"

	"github.com/fleetci/pipeline/pkg/apis/config"
	"k8s.io/utils/clock"
)

type Stream struct {
	Out io.Writer
	Err io.Writer
}

// Params interface provides
type Params interface {
	// SetConfigPath sets the agent configuration file read by Config
	SetConfigPath(string)
	ConfigPath() string
	Config() (*config.Config, error)

	Time() clock.PassiveClock
}
