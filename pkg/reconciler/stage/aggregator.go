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

package stage

import (
	"context"
	"errors"
	"sync"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"knative.dev/pkg/logging"
)

// ErrClosed is returned by an Aggregator after Close.
var ErrClosed = errors.New("stage aggregator is closed")

// stageState is the set of outcomes reported for one stage, in the order
// their jobs first reported.
type stageState struct {
	outcomes []v1.JobOutcome
	index    map[string]int
}

// accept records o. An outcome replaces an earlier one of the same job
// unless that one is already completed.
func (s *stageState) accept(o v1.JobOutcome) bool {
	if i, ok := s.index[o.Name]; ok {
		if s.outcomes[i].IsCompleted() {
			return false
		}
		s.outcomes[i] = o
		return true
	}
	s.index[o.Name] = len(s.outcomes)
	s.outcomes = append(s.outcomes, o)
	return true
}

func (s *stageState) snapshot() []v1.JobOutcome {
	out := make([]v1.JobOutcome, len(s.outcomes))
	for i, o := range s.outcomes {
		o.Transitions = append([]v1.StateTransition(nil), o.Transitions...)
		out[i] = o
	}
	return out
}

// Aggregator collects job outcomes reported by many agents. A single
// goroutine owns every stage; callers talk to it over a channel.
type Aggregator struct {
	requests chan func(map[string]*stageState)
	done     chan struct{}
	once     sync.Once
}

// NewAggregator starts an Aggregator. It runs until Close is called or ctx
// is done.
func NewAggregator(ctx context.Context) *Aggregator {
	a := &Aggregator{
		requests: make(chan func(map[string]*stageState)),
		done:     make(chan struct{}),
	}
	go a.loop(ctx)
	return a
}

func (a *Aggregator) loop(ctx context.Context) {
	logger := logging.FromContext(ctx)
	stages := map[string]*stageState{}
	for {
		select {
		case req := <-a.requests:
			req(stages)
		case <-ctx.Done():
			logger.Debug("Stage aggregator stopped")
			a.Close()
			return
		case <-a.done:
			return
		}
	}
}

// do runs fn on the owning goroutine and waits for it.
func (a *Aggregator) do(ctx context.Context, fn func(map[string]*stageState)) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}
	finished := make(chan struct{})
	req := func(stages map[string]*stageState) {
		fn(stages)
		close(finished)
	}
	select {
	case a.requests <- req:
	case <-a.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Report records the outcome of one job of stage. It reports false when
// the job had already completed and the outcome was ignored.
func (a *Aggregator) Report(ctx context.Context, stage string, o v1.JobOutcome) (bool, error) {
	var accepted bool
	err := a.do(ctx, func(stages map[string]*stageState) {
		s, ok := stages[stage]
		if !ok {
			s = &stageState{index: map[string]int{}}
			stages[stage] = s
		}
		accepted = s.accept(o)
	})
	if err == nil && !accepted {
		logging.FromContext(ctx).Debugw("Ignoring outcome of completed job", "stage", stage, "job", o.Name)
	}
	return accepted, err
}

// Snapshot returns a copy of the outcomes reported for stage.
func (a *Aggregator) Snapshot(ctx context.Context, stage string) ([]v1.JobOutcome, error) {
	var out []v1.JobOutcome
	err := a.do(ctx, func(stages map[string]*stageState) {
		if s, ok := stages[stage]; ok {
			out = s.snapshot()
		}
	})
	return out, err
}

// Verdict computes the verdict of stage from its current snapshot.
func (a *Aggregator) Verdict(ctx context.Context, stage string) (StageVerdict, error) {
	outcomes, err := a.Snapshot(ctx, stage)
	if err != nil {
		return "", err
	}
	return Verdict(outcomes), nil
}

// Close stops the aggregator. Later calls fail with ErrClosed.
func (a *Aggregator) Close() {
	a.once.Do(func() { close(a.done) })
}
