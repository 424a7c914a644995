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
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
	"knative.dev/pkg/apis"
)

// RunIfStatus is a run-if label. Passed and Failed double as the values of
// the running status label of a build.
type RunIfStatus string

const (
	// RunIfPassed runs a node while nothing has failed yet.
	RunIfPassed RunIfStatus = "passed"
	// RunIfFailed runs a node only once something has failed.
	RunIfFailed RunIfStatus = "failed"
	// RunIfAny runs a node regardless of the running label.
	RunIfAny RunIfStatus = "any"
)

var validRunIfStatuses = sets.NewString(string(RunIfPassed), string(RunIfFailed), string(RunIfAny))

// RunIfConfigs is the raw list of run-if labels configured on a task. An
// empty list behaves like [passed].
type RunIfConfigs []RunIfStatus

// RunIf is a shorthand for building a RunIfConfigs.
func RunIf(statuses ...RunIfStatus) RunIfConfigs {
	return RunIfConfigs(statuses)
}

// Matches reports whether a node gated by c runs under the given running label.
func (c RunIfConfigs) Matches(label RunIfStatus) bool {
	if len(c) == 0 {
		return label == RunIfPassed
	}
	for _, s := range c {
		if s == RunIfAny || s == label {
			return true
		}
	}
	return false
}

func (c RunIfConfigs) String() string {
	if len(c) == 0 {
		return string(RunIfPassed)
	}
	if len(c) == 1 {
		return string(c[0])
	}
	return fmt.Sprintf("%v", []RunIfStatus(c))
}

// Validate implements apis.Validatable
func (c RunIfConfigs) Validate(ctx context.Context) (errs *apis.FieldError) {
	for i, s := range c {
		if !validRunIfStatuses.Has(string(s)) {
			errs = errs.Also(apis.ErrInvalidValue(s, "", fmt.Sprintf("must be one of %v", validRunIfStatuses.List())).ViaIndex(i))
		}
	}
	return errs
}
