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
	"time"
)

// JobState is the lifecycle position of a job run.
type JobState string

const (
	JobStateScheduled  JobState = "Scheduled"
	JobStateAssigned   JobState = "Assigned"
	JobStatePreparing  JobState = "Preparing"
	JobStateBuilding   JobState = "Building"
	JobStateCompleting JobState = "Completing"
	JobStateCompleted  JobState = "Completed"
)

// jobStateOrder is the only order states may be entered in.
var jobStateOrder = []JobState{
	JobStateScheduled,
	JobStateAssigned,
	JobStatePreparing,
	JobStateBuilding,
	JobStateCompleting,
	JobStateCompleted,
}

func (s JobState) rank() int {
	for i, o := range jobStateOrder {
		if o == s {
			return i
		}
	}
	return -1
}

// IsCompleted reports whether s is the terminal state.
func (s JobState) IsCompleted() bool {
	return s == JobStateCompleted
}

// JobResult is the verdict of a job run. It stays Unknown until the run is
// Completed.
type JobResult string

const (
	JobResultUnknown   JobResult = "Unknown"
	JobResultPassed    JobResult = "Passed"
	JobResultFailed    JobResult = "Failed"
	JobResultCancelled JobResult = "Cancelled"
)

// StateTransition records when a state was entered.
type StateTransition struct {
	State JobState  `json:"state"`
	At    time.Time `json:"at"`
}

// JobOutcome is the reported status of one job run.
type JobOutcome struct {
	Name          string    `json:"name"`
	State         JobState  `json:"state"`
	Result        JobResult `json:"result"`
	AgentIdentity string    `json:"agent,omitempty"`
	// Transitions is ordered by insertion.
	Transitions []StateTransition `json:"transitions,omitempty"`
}

// NewJobOutcome returns a Scheduled outcome with an Unknown result.
func NewJobOutcome(name string, now time.Time) JobOutcome {
	return JobOutcome{
		Name:        name,
		State:       JobStateScheduled,
		Result:      JobResultUnknown,
		Transitions: []StateTransition{{State: JobStateScheduled, At: now}},
	}
}

// Transition moves the outcome to the next state. States can only be entered
// in order and none may be skipped; a cancelled outcome only accepts the
// forced Completed.
func (o *JobOutcome) Transition(s JobState, now time.Time) error {
	if o.State.IsCompleted() {
		return fmt.Errorf("job %q is already %s", o.Name, o.State)
	}
	if o.Result == JobResultCancelled {
		if s != JobStateCompleted {
			return fmt.Errorf("job %q is cancelled and cannot move to %s", o.Name, s)
		}
		o.enter(s, now)
		return nil
	}
	cur, next := o.State.rank(), s.rank()
	if next < 0 {
		return fmt.Errorf("unknown job state %q", s)
	}
	if next != cur+1 {
		return fmt.Errorf("job %q cannot move from %s to %s", o.Name, o.State, s)
	}
	o.enter(s, now)
	return nil
}

// Complete enters Completed with the given result. A passed job must be
// Completing; a failure or cancellation may end the job from any state, as
// when its build could not even be prepared.
func (o *JobOutcome) Complete(r JobResult, now time.Time) error {
	if r == JobResultUnknown {
		return fmt.Errorf("job %q cannot complete with result %s", o.Name, r)
	}
	if o.State.IsCompleted() {
		return fmt.Errorf("job %q is already %s", o.Name, o.State)
	}
	if r == JobResultCancelled {
		o.Cancel(now)
		return nil
	}
	if r == JobResultPassed && o.State != JobStateCompleting {
		return fmt.Errorf("job %q cannot pass from %s", o.Name, o.State)
	}
	o.Result = r
	o.enter(JobStateCompleted, now)
	return nil
}

// Cancel marks the outcome Cancelled and forces it to Completed. It may be
// called from any state and is a no-op once the outcome is completed.
func (o *JobOutcome) Cancel(now time.Time) {
	if o.State.IsCompleted() {
		return
	}
	o.Result = JobResultCancelled
	o.enter(JobStateCompleted, now)
}

func (o *JobOutcome) enter(s JobState, now time.Time) {
	o.State = s
	o.Transitions = append(o.Transitions, StateTransition{State: s, At: now})
}

// TransitionTime returns when s was entered, if it was.
func (o JobOutcome) TransitionTime(s JobState) (time.Time, bool) {
	for _, t := range o.Transitions {
		if t.State == s {
			return t.At, true
		}
	}
	return time.Time{}, false
}

// CompletedAt returns when the outcome was completed, if it was.
func (o JobOutcome) CompletedAt() (time.Time, bool) {
	return o.TransitionTime(JobStateCompleted)
}

// IsCompleted reports whether the outcome reached its terminal state.
func (o JobOutcome) IsCompleted() bool {
	return o.State.IsCompleted()
}
