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

	"sigs.k8s.io/yaml"
)

// JobAssignment is everything an agent needs to run one job.
type JobAssignment struct {
	JobIdentifier `json:",inline"`

	Builders           []Builder            `json:"builders,omitempty"`
	ArtifactPlans      []ArtifactPlan       `json:"artifacts,omitempty"`
	Environment        EnvironmentVariables `json:"environment,omitempty"`
	Materials          []MaterialRevision   `json:"materials,omitempty"`
	PropertyGenerators []PropertyGenerator  `json:"properties,omitempty"`

	FetchMaterials  bool `json:"fetchMaterials,omitempty"`
	CleanWorkingDir bool `json:"cleanWorkingDir,omitempty"`
	// WorkingDirectory is relative to the agent's work root, usually
	// "pipelines/<pipeline>".
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	ServerURL        string `json:"serverUrl,omitempty"`
}

// ParseJobAssignment reads an assignment from YAML or JSON and normalizes
// its artifact plans.
func ParseJobAssignment(data []byte) (*JobAssignment, error) {
	a := &JobAssignment{}
	if err := yaml.UnmarshalStrict(data, a); err != nil {
		return nil, fmt.Errorf("failed to parse job assignment: %w", err)
	}
	a.SetDefaults()
	return a, nil
}

// SetDefaults fills in the working directory and normalizes artifact plans.
func (a *JobAssignment) SetDefaults() {
	if a.WorkingDirectory == "" && a.Pipeline != "" {
		a.WorkingDirectory = "pipelines/" + a.Pipeline
	}
	for i := range a.ArtifactPlans {
		a.ArtifactPlans[i].Normalize()
	}
}

// TestPlans returns the unit test report plans.
func (a *JobAssignment) TestPlans() []ArtifactPlan {
	var out []ArtifactPlan
	for _, p := range a.ArtifactPlans {
		if p.Type == ArtifactPlanTypeTest {
			out = append(out, p)
		}
	}
	return out
}
