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

	"knative.dev/pkg/apis"
)

// Validate implements apis.Validatable
func (a *JobAssignment) Validate(ctx context.Context) (errs *apis.FieldError) {
	if a.Pipeline == "" {
		errs = errs.Also(apis.ErrMissingField("pipeline"))
	}
	if a.Stage == "" {
		errs = errs.Also(apis.ErrMissingField("stage"))
	}
	if a.Job == "" {
		errs = errs.Also(apis.ErrMissingField("job"))
	}
	for i, b := range a.Builders {
		errs = errs.Also(b.Validate(ctx).ViaFieldIndex("builders", i))
	}
	errs = errs.Also(ValidateArtifactPlanList(ctx, a.ArtifactPlans))
	errs = errs.Also(a.Environment.Validate(ctx).ViaField("environment"))
	for i, m := range a.Materials {
		errs = errs.Also(m.Validate(ctx).ViaFieldIndex("materials", i))
	}
	for i, g := range a.PropertyGenerators {
		errs = errs.Also(g.Validate(ctx).ViaFieldIndex("properties", i))
	}
	return errs
}
