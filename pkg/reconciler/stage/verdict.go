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

// Package stage reduces the outcomes of a stage's jobs into one verdict.
package stage

import (
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
)

// StageVerdict is the derived status of a stage.
type StageVerdict string

const (
	VerdictBuilding  StageVerdict = "Building"
	VerdictFailing   StageVerdict = "Failing"
	VerdictPassed    StageVerdict = "Passed"
	VerdictFailed    StageVerdict = "Failed"
	VerdictCancelled StageVerdict = "Cancelled"
)

// IsCompleted reports whether no job of the stage can still change it.
func (v StageVerdict) IsCompleted() bool {
	return v == VerdictPassed || v == VerdictFailed || v == VerdictCancelled
}

// jobStatusCount holds the number of jobs per result.
type jobStatusCount struct {
	Passed     int
	Failed     int
	Cancelled  int
	Incomplete int
}

func countJobs(outcomes []v1.JobOutcome) jobStatusCount {
	var c jobStatusCount
	for _, o := range outcomes {
		switch {
		case !o.IsCompleted() || o.Result == v1.JobResultUnknown:
			c.Incomplete++
		case o.Result == v1.JobResultCancelled:
			c.Cancelled++
		case o.Result == v1.JobResultFailed:
			c.Failed++
		default:
			c.Passed++
		}
	}
	return c
}

// Verdict computes the stage verdict from the current outcomes of its jobs.
// While any job is incomplete the stage is Failing if a job already failed
// and Building otherwise. Once every job completed a cancellation beats a
// failure, and a stage with no jobs has passed.
func Verdict(outcomes []v1.JobOutcome) StageVerdict {
	c := countJobs(outcomes)
	switch {
	case c.Incomplete > 0 && c.Failed > 0:
		return VerdictFailing
	case c.Incomplete > 0:
		return VerdictBuilding
	case c.Cancelled > 0:
		return VerdictCancelled
	case c.Failed > 0:
		return VerdictFailed
	}
	return VerdictPassed
}

// NullOutcome is returned by the selectors when nothing matches.
var NullOutcome = v1.JobOutcome{Name: "", State: "", Result: v1.JobResultUnknown}

// IsNull reports whether o is the NullOutcome sentinel.
func IsNull(o v1.JobOutcome) bool {
	return o.Name == "" && o.State == "" && len(o.Transitions) == 0
}

// MostRecentCompleted returns the last inserted outcome that has a
// completion time.
func MostRecentCompleted(outcomes []v1.JobOutcome) v1.JobOutcome {
	for i := len(outcomes) - 1; i >= 0; i-- {
		if _, ok := outcomes[i].CompletedAt(); ok {
			return outcomes[i]
		}
	}
	return NullOutcome
}

// MostRecentPassed returns the last inserted outcome that passed.
func MostRecentPassed(outcomes []v1.JobOutcome) v1.JobOutcome {
	for i := len(outcomes) - 1; i >= 0; i-- {
		if outcomes[i].Result == v1.JobResultPassed {
			return outcomes[i]
		}
	}
	return NullOutcome
}
