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

package cli

import (
	"fmt"

	"github.com/fleetci/pipeline/pkg/apis/config"
	"k8s.io/utils/clock"
)

// AgentParams reads the agent configuration from a file and the environment.
type AgentParams struct {
	config     *config.Config
	configPath string
}

// ensure that AgentParams complies with cli.Params interface
var _ Params = (*AgentParams)(nil)

func (p *AgentParams) SetConfigPath(path string) {
	p.configPath = path
	p.config = nil
}

func (p *AgentParams) ConfigPath() string {
	return p.configPath
}

// Config loads the configuration once; an empty path reads only the
// environment.
func (p *AgentParams) Config() (*config.Config, error) {
	if p.config != nil {
		return p.config, nil
	}
	cfg, err := config.Load(p.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent configuration: %w", err)
	}
	p.config = cfg
	return p.config, nil
}

func (p *AgentParams) Time() clock.PassiveClock {
	return clock.RealClock{}
}
