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
	"regexp"

	"k8s.io/apimachinery/pkg/util/sets"
	"knative.dev/pkg/apis"
)

// DestinationPathPattern rejects destinations that start or end with a dot or
// a space, or that consist only of dots.
const DestinationPathPattern = `([^. ].+[^. ])|([^. ][^. ])|([^. ])`

var destinationPathRegex = regexp.MustCompile(`^(` + DestinationPathPattern + `)$`)

var validArtifactPlanTypes = sets.NewString(string(ArtifactPlanTypeFile), string(ArtifactPlanTypeTest), string(ArtifactPlanTypeExternal))

// Validate implements apis.Validatable
func (p ArtifactPlan) Validate(ctx context.Context) (errs *apis.FieldError) {
	if p.Source == "" {
		errs = errs.Also(apis.ErrMissingField("src"))
	}
	if p.Destination != "" && !destinationPathRegex.MatchString(p.Destination) {
		errs = errs.Also(apis.ErrInvalidValue(p.Destination, "dest", fmt.Sprintf("must match the pattern %s", DestinationPathPattern)))
	}
	switch {
	case p.Type != "" && !validArtifactPlanTypes.Has(string(p.Type)):
		errs = errs.Also(apis.ErrInvalidValue(p.Type, "type", fmt.Sprintf("must be one of %v", validArtifactPlanTypes.List())))
	case p.Type == ArtifactPlanTypeExternal && p.Pluggable == nil:
		errs = errs.Also(apis.ErrMissingField("pluggable"))
	case p.Type != ArtifactPlanTypeExternal && p.Pluggable != nil:
		errs = errs.Also(apis.ErrDisallowedFields("pluggable"))
	}
	if p.Pluggable != nil {
		errs = errs.Also(p.Pluggable.Validate(ctx).ViaField("pluggable"))
	}
	return errs
}

// Validate implements apis.Validatable
func (c *PluggableArtifactConfig) Validate(ctx context.Context) (errs *apis.FieldError) {
	if c.ID == "" {
		errs = errs.Also(apis.ErrMissingField("id"))
	}
	if c.StoreID == "" {
		errs = errs.Also(apis.ErrMissingField("storeId"))
	}
	return errs
}

// ValidateArtifactPlans validates each plan on its own and then marks both
// plans of every (src, dest) duplicate pair as invalid. The result is keyed
// by the index of the offending plan; valid plans have no entry.
func ValidateArtifactPlans(ctx context.Context, plans []ArtifactPlan) map[int]*apis.FieldError {
	result := map[int]*apis.FieldError{}
	add := func(i int, err *apis.FieldError) {
		if err == nil {
			return
		}
		result[i] = result[i].Also(err)
	}

	firstSeen := map[[2]string]int{}
	marked := sets.NewInt()
	for i, p := range plans {
		add(i, p.Validate(ctx))

		key := [2]string{p.Source, p.Destination}
		first, ok := firstSeen[key]
		if !ok {
			firstSeen[key] = i
			continue
		}
		if !marked.Has(first) {
			add(first, duplicatePlanError(p))
			marked.Insert(first)
		}
		add(i, duplicatePlanError(p))
		marked.Insert(i)
	}
	return result
}

func duplicatePlanError(p ArtifactPlan) *apis.FieldError {
	msg := fmt.Sprintf("duplicate artifact defined with source [%s] and destination [%s]", p.Source, p.Destination)
	return &apis.FieldError{Message: msg, Paths: []string{"src", "dest"}}
}

// ValidateArtifactPlanList folds the per-plan errors of ValidateArtifactPlans
// into one error indexed under "artifacts".
func ValidateArtifactPlanList(ctx context.Context, plans []ArtifactPlan) (errs *apis.FieldError) {
	perPlan := ValidateArtifactPlans(ctx, plans)
	for i := range plans {
		if err, ok := perPlan[i]; ok {
			errs = errs.Also(err.ViaFieldIndex("artifacts", i))
		}
	}
	return errs
}
