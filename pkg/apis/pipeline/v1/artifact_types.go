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
	"fmt"
	"strings"
)

// ArtifactPlanType is the kind of files an ArtifactPlan collects.
type ArtifactPlanType string

const (
	// ArtifactPlanTypeFile uploads plain build outputs.
	ArtifactPlanTypeFile ArtifactPlanType = "file"
	// ArtifactPlanTypeTest uploads unit test reports and merges them into one report.
	ArtifactPlanTypeTest ArtifactPlanType = "test"
	// ArtifactPlanTypeExternal hands the files to an external artifact store.
	ArtifactPlanTypeExternal ArtifactPlanType = "external"
)

// TestOutputDir is the destination test reports are published under when a
// test plan does not name one.
const TestOutputDir = "testoutput"

// ArtifactPlan maps a source glob in the working directory to a destination
// in the artifact store.
type ArtifactPlan struct {
	Type ArtifactPlanType `json:"type,omitempty"`
	// Source is a glob relative to the job working directory. `**` spans
	// directories.
	Source string `json:"src"`
	// Destination is relative to the root of the job's artifact store; empty
	// means the root itself.
	Destination string `json:"dest,omitempty"`
	// Pluggable is only set for external plans.
	Pluggable *PluggableArtifactConfig `json:"pluggable,omitempty"`
}

// PluggableArtifactConfig names the external store an artifact is published to.
type PluggableArtifactConfig struct {
	ID            string            `json:"id"`
	StoreID       string            `json:"storeId"`
	Configuration map[string]string `json:"configuration,omitempty"`
}

// NewArtifactPlan returns a plan with a normalized source and destination.
func NewArtifactPlan(t ArtifactPlanType, src, dest string) ArtifactPlan {
	p := ArtifactPlan{Type: t, Source: src, Destination: dest}
	p.Normalize()
	return p
}

// Normalize trims the source and destination and turns back slashes into
// forward slashes. Normalizing twice is the same as normalizing once.
func (p *ArtifactPlan) Normalize() {
	p.Source = normalizePath(p.Source)
	p.Destination = normalizePath(p.Destination)
	if p.Type == "" {
		p.Type = ArtifactPlanTypeFile
	}
}

// EffectiveDestination is the destination uploads land in. Test plans
// without a destination publish under TestOutputDir.
func (p ArtifactPlan) EffectiveDestination() string {
	if p.Type == ArtifactPlanTypeTest && p.Destination == "" {
		return TestOutputDir
	}
	return p.Destination
}

func (p ArtifactPlan) String() string {
	return fmt.Sprintf("%s [%s] -> [%s]", p.Type, p.Source, p.Destination)
}

func normalizePath(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), `\`, "/")
}
