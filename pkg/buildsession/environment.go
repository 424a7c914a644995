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

package buildsession

import (
	"strings"
	"time"
)

// secureValueDisplay is printed in place of a secure variable's value.
const secureValueDisplay = "********"

// environment is the process environment a build accumulates through
// export commands.
type environment struct {
	base     map[string]string
	order    []string
	exported map[string]string
}

func newEnvironment(base []string) *environment {
	e := &environment{base: map[string]string{}, exported: map[string]string{}}
	for _, kv := range base {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if _, seen := e.base[name]; !seen {
			e.order = append(e.order, name)
		}
		e.base[name] = value
	}
	return e
}

// set exports name and reports whether it replaced an existing value.
func (e *environment) set(name, value string) bool {
	_, inBase := e.base[name]
	_, inExported := e.exported[name]
	if !inBase && !inExported {
		e.order = append(e.order, name)
	}
	e.exported[name] = value
	return inBase || inExported
}

func (e *environment) get(name string) (string, bool) {
	if v, ok := e.exported[name]; ok {
		return v, true
	}
	v, ok := e.base[name]
	return v, ok
}

// environ renders the environment for a child process.
func (e *environment) environ() []string {
	out := make([]string, 0, len(e.order))
	for _, name := range e.order {
		v, _ := e.get(name)
		out = append(out, name+"="+v)
	}
	return out
}

// buildVariables returns the session's variables with the defaults filled in.
func (s *Session) buildVariables() map[string]string {
	vars := map[string]string{
		"date":           s.clock().Now().Format(time.UnixDate),
		"agent.hostname": "unknown",
		"agent.location": s.WorkRoot,
	}
	for k, v := range s.BuildVariables {
		vars[k] = v
	}
	return vars
}
