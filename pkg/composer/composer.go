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

// Package composer compiles a job assignment into the command tree an agent
// executes.
package composer

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/buildcommand"
	"knative.dev/pkg/logging"
)

// Build variables the session resolves in echo text.
const (
	DateVariable          = "${date}"
	AgentHostnameVariable = "${agent.hostname}"
	AgentLocationVariable = "${agent.location}"
)

// Environment variables exported into every build.
const (
	ServerURLEnv       = "GO_SERVER_URL"
	PipelineNameEnv    = "GO_PIPELINE_NAME"
	PipelineCounterEnv = "GO_PIPELINE_COUNTER"
	PipelineLabelEnv   = "GO_PIPELINE_LABEL"
	StageNameEnv       = "GO_STAGE_NAME"
	StageCounterEnv    = "GO_STAGE_COUNTER"
	JobNameEnv         = "GO_JOB_NAME"
)

// Compose validates an assignment and compiles it into one root command.
// Nothing is built when the assignment is invalid.
func Compose(ctx context.Context, a *v1.JobAssignment) (buildcommand.Command, error) {
	if a == nil {
		return buildcommand.Command{}, fmt.Errorf("no job assignment")
	}
	if err := a.Validate(ctx); err != nil {
		return buildcommand.Command{}, fmt.Errorf("invalid job assignment %s: %w", a.BuildLocatorForDisplay(), err)
	}
	c := &composer{a: a, locator: a.BuildLocatorForDisplay()}

	builders, err := c.builders()
	if err != nil {
		return buildcommand.Command{}, err
	}

	root := buildcommand.Compose(
		buildcommand.Echo("Job Started: "+DateVariable),
		buildcommand.ReportCurrentStatus(v1.JobStatePreparing),
		c.prepare(),
		buildcommand.ReportCurrentStatus(v1.JobStateBuilding),
		c.build(builders),
		c.complete(),
		buildcommand.ReportCompleted(c.announce("Job completed")).RunIfAny(),
	).WithOnCancel(buildcommand.Compose(
		buildcommand.Echo(c.announce("Job is cancelled")).RunIfAny(),
		buildcommand.ReportCompleted(c.announce("Job completed")).RunIfAny(),
	).RunIfAny())

	logging.FromContext(ctx).Debugw("Composed build", "job", c.locator, "builders", len(builders), "artifacts", len(a.ArtifactPlans))
	return root, nil
}

type composer struct {
	a       *v1.JobAssignment
	locator string
}

func (c *composer) announce(what string) string {
	return fmt.Sprintf("%s %s on %s [%s]", what, c.locator, AgentHostnameVariable, AgentLocationVariable)
}

func (c *composer) workingDir() string {
	return c.a.WorkingDirectory
}

func (c *composer) prepare() buildcommand.Command {
	wd := c.workingDir()
	steps := []buildcommand.Command{buildcommand.Echo(c.announce("Start to prepare"))}
	if c.a.CleanWorkingDir {
		var keep []string
		if c.a.FetchMaterials {
			for _, m := range c.a.Materials {
				if m.Dest != "" {
					keep = append(keep, m.Dest)
				}
			}
		}
		steps = append(steps, buildcommand.Cleandir(wd, keep...).
			WithTest(buildcommand.Test(buildcommand.TestDirExists, wd)))
	}
	steps = append(steps, buildcommand.Mkdirs(wd).
		WithTest(buildcommand.Test(buildcommand.TestDirNotExists, wd)))

	if !c.a.FetchMaterials {
		steps = append(steps, buildcommand.Echo("Skipping material update since stage is configured not to fetch materials"))
		return buildcommand.Compose(steps...)
	}
	steps = append(steps, buildcommand.Echo("Start to update materials."))
	for _, m := range c.a.Materials {
		steps = append(steps, buildcommand.Checkout(m).WithWorkingDir(wd))
	}
	return buildcommand.Compose(steps...)
}

func (c *composer) build(builders []buildcommand.Command) buildcommand.Command {
	steps := []buildcommand.Command{buildcommand.Echo(c.announce("Start to build"))}
	for _, v := range c.a.Environment.Secure() {
		steps = append(steps, buildcommand.Secret(v.Value))
	}
	steps = append(steps,
		buildcommand.Export(ServerURLEnv, c.a.ServerURL, false),
		buildcommand.Export(PipelineNameEnv, c.a.Pipeline, false),
		buildcommand.Export(PipelineCounterEnv, strconv.Itoa(c.a.PipelineCounter), false),
		buildcommand.Export(PipelineLabelEnv, pipelineLabel(c.a.JobIdentifier), false),
		buildcommand.Export(StageNameEnv, c.a.Stage, false),
		buildcommand.Export(StageCounterEnv, c.a.StageCounter, false),
		buildcommand.Export(JobNameEnv, c.a.Job, false),
	)
	for _, v := range c.a.Environment {
		steps = append(steps, buildcommand.Export(v.Name, v.Value, v.Secure))
	}
	steps = append(steps, builders...)
	return buildcommand.Compose(steps...)
}

func pipelineLabel(j v1.JobIdentifier) string {
	if j.PipelineLabel != "" {
		return j.PipelineLabel
	}
	return strconv.Itoa(j.PipelineCounter)
}

func (c *composer) builders() ([]buildcommand.Command, error) {
	out := make([]buildcommand.Command, 0, len(c.a.Builders))
	for i, b := range c.a.Builders {
		cmd, err := c.builder(b)
		if err != nil {
			return nil, fmt.Errorf("builder %d: %w", i, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}

// builder wraps one task with its run-if gate, the current status echo and
// a cancellation handler.
func (c *composer) builder(b v1.Builder) (buildcommand.Command, error) {
	task, err := c.task(b)
	if err != nil {
		return buildcommand.Command{}, err
	}
	node := buildcommand.Compose(
		buildcommand.Echo("Current job status: passed").RunIf(v1.RunIfPassed),
		buildcommand.Echo("Current job status: failed").RunIf(v1.RunIfFailed),
		buildcommand.Echo("Task: "+describe(b)).RunIfAny(),
		task.RunIfAny(),
	).WithRunIfConfig(b.RunIf)

	handler := []buildcommand.Command{buildcommand.Echo("Cancelling task: " + describe(b)).RunIfAny()}
	if b.OnCancel != nil {
		cancelTask, err := c.task(*b.OnCancel)
		if err != nil {
			return buildcommand.Command{}, fmt.Errorf("onCancel: %w", err)
		}
		handler = append(handler,
			buildcommand.Echo("On Cancel Task: "+describe(*b.OnCancel)).RunIfAny(),
			cancelTask.RunIfAny(),
		)
	}
	return node.WithOnCancel(buildcommand.Compose(handler...).RunIfAny()), nil
}

func (c *composer) task(b v1.Builder) (buildcommand.Command, error) {
	wd := c.workingDir()
	switch {
	case b.Exec != nil:
		return buildcommand.Exec(b.Exec.Command, b.Exec.Args...).
			WithWorkingDir(path.Join(wd, b.Exec.WorkingDir)), nil
	case b.Fetch != nil:
		f := b.Fetch
		args := buildcommand.DownloadArgs{
			Source:      f.Source,
			URL:         f.URL,
			ChecksumURL: f.ChecksumURL,
			Destination: f.Destination,
		}
		if f.IsFile {
			return buildcommand.DownloadFile(args).WithWorkingDir(wd), nil
		}
		return buildcommand.DownloadDir(args).WithWorkingDir(wd), nil
	case b.Kill != nil:
		return buildcommand.NoOp(), nil
	}
	return buildcommand.Command{}, fmt.Errorf("builder %q has no task", b.Description)
}

func describe(b v1.Builder) string {
	if b.Description != "" {
		return b.Description
	}
	switch {
	case b.Exec != nil:
		return strings.TrimSpace(b.Exec.Command + " " + strings.Join(b.Exec.Args, " "))
	case b.Fetch != nil:
		kind := "directory"
		if b.Fetch.IsFile {
			kind = "file"
		}
		return fmt.Sprintf("fetch artifact %s [%s] => [%s]", kind, b.Fetch.Source, b.Fetch.Destination)
	case b.Kill != nil:
		return "kill all child processes"
	}
	return ""
}

// complete builds the completing phase. It runs whatever the build result.
func (c *composer) complete() buildcommand.Command {
	wd := c.workingDir()
	steps := []buildcommand.Command{
		buildcommand.ReportCompleting().RunIfAny(),
		buildcommand.Echo(c.announce("Start to create properties")).RunIfAny(),
	}
	for _, g := range c.a.PropertyGenerators {
		steps = append(steps, buildcommand.GenerateProperty(g.Name, g.Source, g.XPath).WithWorkingDir(wd).RunIfAny())
	}

	steps = append(steps, buildcommand.Echo(c.announce("Start to upload")).RunIfAny())
	var testSources []string
	for _, p := range c.a.ArtifactPlans {
		switch p.Type {
		case v1.ArtifactPlanTypeExternal:
			steps = append(steps, buildcommand.Echo(fmt.Sprintf("[WARN] Artifact [%s] is configured for external store [%s] which this agent cannot publish to.", p.Source, p.Pluggable.StoreID)).RunIfAny())
			continue
		case v1.ArtifactPlanTypeTest:
			testSources = append(testSources, p.Source)
		}
		steps = append(steps, buildcommand.Upload(p.Source, p.EffectiveDestination(), false).WithWorkingDir(wd).RunIfAny())
	}
	if len(testSources) > 0 {
		steps = append(steps, buildcommand.GenerateTestReport(testSources, v1.TestOutputDir).WithWorkingDir(wd).RunIfAny())
	} else {
		steps = append(steps, buildcommand.NoOp().RunIfAny())
	}
	return buildcommand.Compose(steps...).RunIfAny()
}
