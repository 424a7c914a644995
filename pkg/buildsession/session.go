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

// Package buildsession executes a command tree against the agent's
// environment and reports the job's progress.
package buildsession

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/artifacts"
	"github.com/fleetci/pipeline/pkg/buildcommand"
	"github.com/fleetci/pipeline/pkg/composer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"
	"knative.dev/pkg/logging"
)

// StatusReporter receives the job's state transitions.
type StatusReporter interface {
	ReportCurrentStatus(ctx context.Context, state v1.JobState) error
	ReportCompleting(ctx context.Context, result v1.JobResult) error
	ReportCompleted(ctx context.Context, result v1.JobResult) error
}

// ArtifactRepository stores the job's artifacts and build properties.
type ArtifactRepository interface {
	Upload(ctx context.Context, e artifacts.UploadEntry) error
	SetProperty(ctx context.Context, name, value string) error
	OpenDir(ctx context.Context, job, source string) (io.ReadCloser, error)
	OpenFile(ctx context.Context, job, source string) (io.ReadCloser, error)
	ChecksumsFor(ctx context.Context, job string) (*artifacts.ChecksumManifest, error)
}

// MaterialUpdater brings a material checkout to its assigned revision.
type MaterialUpdater interface {
	Update(ctx context.Context, workDir string, m v1.MaterialRevision, out io.Writer) error
}

var _ ArtifactRepository = (*artifacts.LocalRepository)(nil)

// Session binds a command tree to a live agent. A Session runs one build.
type Session struct {
	// Console receives the job's console log.
	Console   io.Writer
	Reporter  StatusReporter
	Artifacts ArtifactRepository
	Runner    Runner
	Materials MaterialUpdater
	// WorkRoot is the directory working directories are relative to.
	WorkRoot string
	// Env is the environment processes inherit. Nil means the agent's own.
	Env []string
	// BuildVariables are substituted for ${name} in echo text.
	BuildVariables map[string]string
	Clock          clock.PassiveClock
	Tracer         trace.Tracer

	// mu orders Cancel against completion. cancel and completed only change
	// while it is held; the walker polls them without it.
	mu        sync.Mutex
	cancel    atomic.Bool
	completed atomic.Bool
	final     v1.JobResult
}

// Cancel asks the running build to stop. It is safe to call from any
// goroutine and has no effect once the job has reported completion. The
// build notices it between commands; a running process is not interrupted.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed.Load() {
		return false
	}
	s.cancel.Store(true)
	return true
}

// complete fixes the job result from the running label. Only the first
// call wins; later calls return the recorded result and false.
func (s *Session) complete(label v1.RunIfStatus) (v1.JobResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed.Load() {
		return s.final, false
	}
	s.settle(s.result(label))
	return s.final, true
}

// completeWith records result unless the job already completed.
func (s *Session) completeWith(result v1.JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.completed.Load() {
		s.settle(result)
	}
}

// settle must be called with mu held.
func (s *Session) settle(result v1.JobResult) {
	s.final = result
	s.completed.Store(true)
}

// outcome is the recorded result once the job completed, otherwise the
// result the running label gives.
func (s *Session) outcome(label v1.RunIfStatus) v1.JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed.Load() {
		return s.final
	}
	return s.result(label)
}

// Cancelled reports whether Cancel was called before completion.
func (s *Session) Cancelled() bool {
	return s.cancel.Load()
}

// cancelRequested is what the walker polls.
func (s *Session) cancelRequested() bool {
	return s.cancel.Load() && !s.completed.Load()
}

// Run compiles an assignment and builds it. An assignment that cannot be
// compiled is reported as Completed and Failed without any other status.
func (s *Session) Run(ctx context.Context, a *v1.JobAssignment) v1.JobResult {
	logger := logging.FromContext(ctx)
	cmd, err := composer.Compose(ctx, a)
	if err != nil {
		logger.Errorw("Failed to compose build", "error", err)
		con := newConsole(s.console())
		con.Printf("Failed to prepare the job: %v", err)
		_ = con.Flush()
		s.completeWith(v1.JobResultFailed)
		if s.Reporter == nil {
			return v1.JobResultFailed
		}
		if rerr := s.Reporter.ReportCompleted(ctx, v1.JobResultFailed); rerr != nil {
			logger.Errorw("Failed to report completion", "error", rerr)
		}
		return v1.JobResultFailed
	}
	return s.Build(ctx, cmd)
}

// Build walks the tree and returns the job result.
func (s *Session) Build(ctx context.Context, root buildcommand.Command) v1.JobResult {
	ctx, span := s.tracer().Start(ctx, "build")
	defer span.End()

	w := newWalker(s, newConsole(s.console()))
	label := w.build(ctx, root)
	result := s.outcome(label)

	if err := w.console.Flush(); err != nil {
		logging.FromContext(ctx).Errorw("Failed to flush console", "error", err)
	}
	span.SetAttributes(attribute.String("result", string(result)))
	if result != v1.JobResultPassed {
		span.SetStatus(codes.Error, string(result))
	}
	logging.FromContext(ctx).Infow("Build finished", "result", result)
	return result
}

func (s *Session) result(label v1.RunIfStatus) v1.JobResult {
	switch {
	case s.cancel.Load():
		return v1.JobResultCancelled
	case label == v1.RunIfFailed:
		return v1.JobResultFailed
	}
	return v1.JobResultPassed
}

func (s *Session) console() io.Writer {
	if s.Console == nil {
		return io.Discard
	}
	return s.Console
}

func (s *Session) clock() clock.PassiveClock {
	if s.Clock == nil {
		return clock.RealClock{}
	}
	return s.Clock
}

func (s *Session) tracer() trace.Tracer {
	if s.Tracer == nil {
		return trace.NewNoopTracerProvider().Tracer("buildsession")
	}
	return s.Tracer
}

func (s *Session) runner() Runner {
	if s.Runner == nil {
		return &RealRunner{}
	}
	return s.Runner
}

func (s *Session) baseEnv() []string {
	if s.Env == nil {
		return os.Environ()
	}
	return s.Env
}
