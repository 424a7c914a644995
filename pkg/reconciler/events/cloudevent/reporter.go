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

package cloudevent

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/buildsession"
	"github.com/fleetci/pipeline/pkg/reconciler/events/cache"
	lru "github.com/hashicorp/golang-lru"
	"k8s.io/utils/clock"
	"knative.dev/pkg/logging"
)

var _ buildsession.StatusReporter = (*Reporter)(nil)

// Reporter tracks the outcome of one job and announces every state it
// enters as a cloud event. Failing to deliver an event is logged and never
// fails the job; an out of order report does.
type Reporter struct {
	client cloudevents.Client
	cache  *lru.Cache
	sink   string
	source string
	job    v1.JobIdentifier
	clock  clock.PassiveClock

	mu      sync.Mutex
	outcome v1.JobOutcome
}

// NewReporter returns a reporter for job, already Assigned to agentID. The
// client and the cache are taken from ctx; without a client nothing is sent.
func NewReporter(ctx context.Context, job v1.JobIdentifier, agentID, sink string, clk clock.PassiveClock) *Reporter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	r := &Reporter{
		cache:  cache.Get(ctx),
		sink:   sink,
		source: "/agents/" + agentID,
		job:    job,
		clock:  clk,
	}
	if untyped := ctx.Value(ceKey{}); untyped != nil {
		r.client = untyped.(cloudevents.Client)
	}
	now := clk.Now()
	r.outcome = v1.NewJobOutcome(job.Job, now)
	r.outcome.AgentIdentity = agentID
	// Scheduled is always followed by Assigned.
	_ = r.outcome.Transition(v1.JobStateAssigned, now)
	return r
}

// Outcome returns a copy of the outcome reported so far.
func (r *Reporter) Outcome() v1.JobOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.outcome
	o.Transitions = append([]v1.StateTransition(nil), r.outcome.Transitions...)
	return o
}

// ReportCurrentStatus moves the job to state.
func (r *Reporter) ReportCurrentStatus(ctx context.Context, state v1.JobState) error {
	return r.update(ctx, func(o *v1.JobOutcome, now time.Time) error {
		return o.Transition(state, now)
	})
}

// ReportCompleting moves the job to Completing. The result is only recorded
// once the job completes.
func (r *Reporter) ReportCompleting(ctx context.Context, _ v1.JobResult) error {
	return r.update(ctx, func(o *v1.JobOutcome, now time.Time) error {
		return o.Transition(v1.JobStateCompleting, now)
	})
}

// ReportCompleted ends the job with result.
func (r *Reporter) ReportCompleted(ctx context.Context, result v1.JobResult) error {
	return r.update(ctx, func(o *v1.JobOutcome, now time.Time) error {
		return o.Complete(result, now)
	})
}

func (r *Reporter) update(ctx context.Context, f func(*v1.JobOutcome, time.Time) error) error {
	r.mu.Lock()
	now := r.clock.Now()
	if err := f(&r.outcome, now); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("reporting %s: %w", r.job.BuildLocatorForDisplay(), err)
	}
	outcome := r.outcome
	outcome.Transitions = append([]v1.StateTransition(nil), r.outcome.Transitions...)
	r.mu.Unlock()

	r.send(ctx, outcome, now)
	return nil
}

func (r *Reporter) send(ctx context.Context, outcome v1.JobOutcome, now time.Time) {
	logger := logging.FromContext(ctx)
	if r.client == nil {
		logger.Debugw("No cloud events client, not sending", "job", r.job.BuildLocator(), "state", outcome.State)
		return
	}
	event, err := eventForJob(r.source, r.job, outcome, now)
	if err != nil {
		logger.Warnf("Unable to create cloud event for job %s: %v", r.job.BuildLocator(), err)
		return
	}
	if r.cache != nil {
		sent, err := cache.ContainsOrAddCloudEvent(r.cache, event)
		if err != nil {
			logger.Warnf("Error while checking cache: %s", err)
		}
		if sent {
			logger.Infof("cloudevent %v already sent", event)
			return
		}
	}
	if r.sink != "" {
		ctx = cloudevents.ContextWithTarget(ctx, r.sink)
	}
	ctx = cloudevents.ContextWithRetriesExponentialBackoff(ctx, 10*time.Millisecond, 10)
	if result := r.client.Send(ctx, *event); !cloudevents.IsACK(result) {
		logger.Warnf("Failed to send cloudevent: %s", result.Error())
		return
	}
	logger.Debugf("Sent event for job %s: %s", r.job.BuildLocator(), event.Type())
}
