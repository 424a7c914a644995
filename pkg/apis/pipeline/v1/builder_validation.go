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
func (b Builder) Validate(ctx context.Context) (errs *apis.FieldError) {
	set := 0
	for _, ok := range []bool{b.Exec != nil, b.Fetch != nil, b.Kill != nil} {
		if ok {
			set++
		}
	}
	switch {
	case set == 0:
		errs = errs.Also(apis.ErrMissingOneOf("exec", "fetch", "kill"))
	case set > 1:
		errs = errs.Also(apis.ErrMultipleOneOf("exec", "fetch", "kill"))
	}
	if b.Exec != nil {
		errs = errs.Also(b.Exec.Validate(ctx).ViaField("exec"))
	}
	if b.Fetch != nil {
		errs = errs.Also(b.Fetch.Validate(ctx).ViaField("fetch"))
	}
	errs = errs.Also(b.RunIf.Validate(ctx).ViaField("runIf"))
	if b.OnCancel != nil {
		if b.OnCancel.OnCancel != nil {
			errs = errs.Also(apis.ErrDisallowedFields("onCancel.onCancel"))
		}
		errs = errs.Also(b.OnCancel.Validate(ctx).ViaField("onCancel"))
	}
	return errs
}

// Validate implements apis.Validatable
func (t *ExecTask) Validate(ctx context.Context) (errs *apis.FieldError) {
	if t.Command == "" {
		errs = errs.Also(apis.ErrMissingField("command"))
	}
	return errs
}

// Validate implements apis.Validatable
func (t *FetchTask) Validate(ctx context.Context) (errs *apis.FieldError) {
	if t.Source == "" {
		errs = errs.Also(apis.ErrMissingField("source"))
	}
	return errs
}

// Validate implements apis.Validatable
func (g PropertyGenerator) Validate(ctx context.Context) (errs *apis.FieldError) {
	if g.Name == "" {
		errs = errs.Also(apis.ErrMissingField("name"))
	}
	if g.Source == "" {
		errs = errs.Also(apis.ErrMissingField("src"))
	}
	if g.XPath == "" {
		errs = errs.Also(apis.ErrMissingField("xpath"))
	}
	return errs
}

// Validate implements apis.Validatable
func (m MaterialRevision) Validate(ctx context.Context) (errs *apis.FieldError) {
	if m.Type != "" && m.Type != "git" {
		errs = errs.Also(apis.ErrInvalidValue(m.Type, "type", "only git materials are supported"))
	}
	if m.URL == "" {
		errs = errs.Also(apis.ErrMissingField("url"))
	}
	if m.Revision == "" {
		errs = errs.Also(apis.ErrMissingField("revision"))
	}
	return errs
}
