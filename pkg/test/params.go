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

package test

import (
	"github.com/fleetci/pipeline/pkg/apis/config"
	"github.com/fleetci/pipeline/pkg/cli"
	"k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"
)

// Params serves a fixed configuration.
type Params struct {
	path  string
	Cfg   *config.Config
	Err   error
	Clock clock.PassiveClock
}

var _ cli.Params = &Params{}

func (p *Params) SetConfigPath(path string) {
	p.path = path
}

func (p *Params) ConfigPath() string {
	return p.path
}

func (p *Params) Config() (*config.Config, error) {
	return p.Cfg, p.Err
}

func (p *Params) Time() clock.PassiveClock {
	if p.Clock == nil {
		p.Clock = clocktesting.NewFakePassiveClock(clock.RealClock{}.Now())
	}
	return p.Clock
}
