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

package v1

import (
	"context"
	"regexp"

	"knative.dev/pkg/apis"
)

// EnvironmentVariable is exported into the build. Secure values are masked
// in console output.
type EnvironmentVariable struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Secure bool   `json:"secure,omitempty"`
}

// EnvironmentVariables keeps the configured order.
type EnvironmentVariables []EnvironmentVariable

var envNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// Secure returns the secure variables.
func (e EnvironmentVariables) Secure() EnvironmentVariables {
	return e.filter(true)
}

// Plain returns the variables that may be printed.
func (e EnvironmentVariables) Plain() EnvironmentVariables {
	return e.filter(false)
}

func (e EnvironmentVariables) filter(secure bool) EnvironmentVariables {
	var out EnvironmentVariables
	for _, v := range e {
		if v.Secure == secure {
			out = append(out, v)
		}
	}
	return out
}

// Validate implements apis.Validatable
func (e EnvironmentVariables) Validate(ctx context.Context) (errs *apis.FieldError) {
	seen := map[string]struct{}{}
	for i, v := range e {
		if v.Name == "" {
			errs = errs.Also(apis.ErrMissingField("name").ViaIndex(i))
			continue
		}
		if !envNameRegex.MatchString(v.Name) {
			errs = errs.Also(apis.ErrInvalidKeyName(v.Name, "name").ViaIndex(i))
		}
		if _, ok := seen[v.Name]; ok {
			errs = errs.Also(apis.ErrMultipleOneOf("name").ViaIndex(i))
		}
		seen[v.Name] = struct{}{}
	}
	return errs
}
