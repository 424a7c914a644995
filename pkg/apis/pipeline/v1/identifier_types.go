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
	"strconv"
)

// JobIdentifier locates one run of a job.
type JobIdentifier struct {
	Pipeline        string `json:"pipeline"`
	PipelineCounter int    `json:"pipelineCounter"`
	PipelineLabel   string `json:"pipelineLabel,omitempty"`
	Stage           string `json:"stage"`
	StageCounter    string `json:"stageCounter"`
	Job             string `json:"job"`
	BuildID         int64  `json:"buildId,omitempty"`
}

// BuildLocator is the stable path of the job run, built from counters.
func (j JobIdentifier) BuildLocator() string {
	return fmt.Sprintf("%s/%d/%s/%s/%s", j.Pipeline, j.PipelineCounter, j.Stage, j.StageCounter, j.Job)
}

// BuildLocatorForDisplay uses the pipeline label in place of its counter.
func (j JobIdentifier) BuildLocatorForDisplay() string {
	label := j.PipelineLabel
	if label == "" {
		label = strconv.Itoa(j.PipelineCounter)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", j.Pipeline, label, j.Stage, j.StageCounter, j.Job)
}

// StageLocator identifies the stage run the job belongs to.
func (j JobIdentifier) StageLocator() string {
	return fmt.Sprintf("%s/%d/%s/%s", j.Pipeline, j.PipelineCounter, j.Stage, j.StageCounter)
}

func (j JobIdentifier) String() string {
	return j.BuildLocatorForDisplay()
}
