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

// Package cloudevent reports job status transitions as cloud events.
package cloudevent

import (
	"fmt"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/reconciler/events/cache"
	"github.com/google/uuid"
)

// FleetEventType holds the types of cloud events sent by an agent
type FleetEventType string

const (
	// JobPreparingEventV1 is sent when the agent starts preparing a job
	JobPreparingEventV1 FleetEventType = "dev.fleetci.event.job.preparing.v1"
	// JobBuildingEventV1 is sent when the job's tasks start running
	JobBuildingEventV1 FleetEventType = "dev.fleetci.event.job.building.v1"
	// JobCompletingEventV1 is sent when the job starts publishing its artifacts
	JobCompletingEventV1 FleetEventType = "dev.fleetci.event.job.completing.v1"
	// JobCompletedEventV1 is sent once with the job's result
	JobCompletedEventV1 FleetEventType = "dev.fleetci.event.job.completed.v1"
)

func (t FleetEventType) String() string {
	return string(t)
}

// EventTypeFor returns the event type announcing state.
func EventTypeFor(state v1.JobState) FleetEventType {
	return FleetEventType(fmt.Sprintf("dev.fleetci.event.job.%s.v1", strings.ToLower(string(state))))
}

// JobEventData is the payload of a job event.
type JobEventData struct {
	Job     v1.JobIdentifier `json:"job"`
	Outcome v1.JobOutcome    `json:"outcome"`
}

// eventForJob creates the event announcing the current state of outcome.
func eventForJob(source string, job v1.JobIdentifier, outcome v1.JobOutcome, now time.Time) (*cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.New().String())
	event.SetSource(source)
	event.SetSubject(job.BuildLocator())
	event.SetType(EventTypeFor(outcome.State).String())
	event.SetTime(now)
	if outcome.State.IsCompleted() {
		event.SetExtension(cache.ResultExtension, string(outcome.Result))
	}
	if err := event.SetData(cloudevents.ApplicationJSON, JobEventData{Job: job, Outcome: outcome}); err != nil {
		return nil, err
	}
	return &event, nil
}
