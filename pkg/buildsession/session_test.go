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

package buildsession_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fleetci/pipeline/internal/test/diff"
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/artifacts"
	"github.com/fleetci/pipeline/pkg/buildcommand"
	"github.com/fleetci/pipeline/pkg/buildsession"
	"github.com/google/go-cmp/cmp"
	clocktesting "k8s.io/utils/clock/testing"
	logtesting "knative.dev/pkg/logging/testing"
)

var job = v1.JobIdentifier{
	Pipeline:        "p1",
	PipelineCounter: 1,
	PipelineLabel:   "100",
	Stage:           "mingle",
	StageCounter:    "1",
	Job:             "run-ant",
}

type fakeReporter struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeReporter) record(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return nil
}

func (r *fakeReporter) ReportCurrentStatus(_ context.Context, s v1.JobState) error {
	return r.record(string(s))
}

func (r *fakeReporter) ReportCompleting(_ context.Context, res v1.JobResult) error {
	return r.record("Completing/" + string(res))
}

func (r *fakeReporter) ReportCompleted(_ context.Context, res v1.JobResult) error {
	return r.record("Completed/" + string(res))
}

// fakeRunner prints the command line and fails commands named "false".
type fakeRunner struct {
	processes []buildsession.Process
	onRun     func(p buildsession.Process)
}

func (f *fakeRunner) Run(_ context.Context, p buildsession.Process) error {
	f.processes = append(f.processes, p)
	if f.onRun != nil {
		f.onRun(p)
	}
	fmt.Fprintf(p.Stdout, "ran %s\n", p.String())
	if p.Name == "false" {
		return &buildsession.ExitError{Command: p.String(), Code: 1}
	}
	return nil
}

type fixture struct {
	session  *buildsession.Session
	console  *bytes.Buffer
	reporter *fakeReporter
	runner   *fakeRunner
	repo     *artifacts.LocalRepository
	work     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	work := t.TempDir()
	repo, err := artifacts.NewLocalRepository(t.TempDir(), job)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		console:  &bytes.Buffer{},
		reporter: &fakeReporter{},
		runner:   &fakeRunner{},
		repo:     repo,
		work:     work,
	}
	f.session = &buildsession.Session{
		Console:   f.console,
		Reporter:  f.reporter,
		Artifacts: repo,
		Runner:    f.runner,
		WorkRoot:  work,
		Env:       []string{"PATH=/bin"},
		BuildVariables: map[string]string{
			"agent.hostname": "agent1",
			"agent.location": "/var/lib/agent",
		},
		Clock: clocktesting.NewFakePassiveClock(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)),
	}
	return f
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func consoleLines(b *bytes.Buffer) []string {
	return strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
}

func TestBuild_RunIfFollowsRunningLabel(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)

	got := f.session.Build(ctx, buildcommand.Compose(
		buildcommand.Echo("first"),
		buildcommand.Fail("something broke"),
		buildcommand.Echo("only while passing"),
		buildcommand.Echo("only once failed").RunIf(v1.RunIfFailed),
		buildcommand.Echo("always").RunIfAny(),
		buildcommand.Compose(
			buildcommand.Echo("child of a passed compose").RunIfAny(),
		),
	))

	if got != v1.JobResultFailed {
		t.Errorf("Build() = %s, want %s", got, v1.JobResultFailed)
	}
	want := []string{
		"[go] first",
		"[go] something broke",
		"[go] only once failed",
		"[go] always",
	}
	if d := cmp.Diff(want, consoleLines(f.console)); d != "" {
		t.Errorf("console %s", diff.PrintWantGot(d))
	}
}

func TestBuild_LabelNeverResets(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)

	got := f.session.Build(ctx, buildcommand.Compose(
		buildcommand.Exec("false").RunIfAny(),
		buildcommand.Exec("true").RunIfAny(),
		buildcommand.Echo("passed again?"),
	))
	if got != v1.JobResultFailed {
		t.Errorf("Build() = %s, want %s", got, v1.JobResultFailed)
	}
	want := []string{
		"ran false",
		"[go] Command [false] exited with code 1",
		"ran true",
	}
	if d := cmp.Diff(want, consoleLines(f.console)); d != "" {
		t.Errorf("console %s", diff.PrintWantGot(d))
	}
}

func TestBuild_TestGuards(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	writeFiles(t, f.work, map[string]string{"present/file.txt": "x"})

	got := f.session.Build(ctx, buildcommand.Compose(
		buildcommand.Echo("dir exists").WithTest(buildcommand.Test(buildcommand.TestDirExists, "present")),
		buildcommand.Echo("dir missing").WithTest(buildcommand.Test(buildcommand.TestDirExists, "absent")),
		buildcommand.Echo("not a dir").WithTest(buildcommand.Test(buildcommand.TestDirNotExists, "absent")),
		buildcommand.Echo("file exists").WithTest(buildcommand.Test(buildcommand.TestFileExists, "present/file.txt")),
		buildcommand.Echo("file missing").WithTest(buildcommand.Test(buildcommand.TestFileNotExists, "present/file.txt")),
		buildcommand.Echo("output matches").WithTest(buildcommand.TestOutput(buildcommand.TestOutputEquals, "hello", buildcommand.Echo("hello"))),
		buildcommand.Echo("output differs").WithTest(buildcommand.TestOutput(buildcommand.TestOutputNotEquals, "hello", buildcommand.Echo("hello"))),
		buildcommand.Echo("failing guard command").WithTest(buildcommand.TestOutput(buildcommand.TestOutputNotEquals, "x", buildcommand.Fail("nope"))),
	))

	if got != v1.JobResultPassed {
		t.Errorf("Build() = %s, want %s", got, v1.JobResultPassed)
	}
	want := []string{
		"[go] dir exists",
		"[go] not a dir",
		"[go] file exists",
		"[go] output matches",
	}
	if d := cmp.Diff(want, consoleLines(f.console)); d != "" {
		t.Errorf("console %s", diff.PrintWantGot(d))
	}
}

func TestBuild_EchoSubstitutesBuildVariables(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)

	f.session.Build(ctx, buildcommand.Echo("on ${agent.hostname} [${agent.location}] at ${date}, ${unknown}"))

	want := "[go] on agent1 [/var/lib/agent] at Wed Mar  4 05:06:07 UTC 2026, ${unknown}\n"
	if got := f.console.String(); got != want {
		t.Errorf("console = %q, want %q", got, want)
	}
}

func TestBuild_ExportsAndSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)

	f.session.Build(ctx, buildcommand.Compose(
		buildcommand.Secret("i am a secret"),
		buildcommand.Export("foo", "foo(i am a secret)", false),
		buildcommand.Export("bar", "i am a secret", true),
		buildcommand.Export("PATH", "/tmp", false),
		buildcommand.Export("foo", "again", false),
		buildcommand.Exec("env"),
	))

	out := f.console.String()
	for _, line := range []string{
		"[go] setting environment variable 'foo' to value 'foo(******)'",
		"[go] setting environment variable 'bar' to value '********'",
		"[go] overriding environment variable 'PATH' with value '/tmp'",
		"[go] overriding environment variable 'foo' with value 'again'",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("console is missing %q:\n%s", line, out)
		}
	}
	if strings.Contains(out, "i am a secret") {
		t.Errorf("console leaks the secret:\n%s", out)
	}

	if len(f.runner.processes) != 1 {
		t.Fatalf("ran %d processes, want 1", len(f.runner.processes))
	}
	wantEnv := []string{"PATH=/tmp", "foo=again", "bar=i am a secret"}
	if d := cmp.Diff(wantEnv, f.runner.processes[0].Env); d != "" {
		t.Errorf("process env %s", diff.PrintWantGot(d))
	}
}

func TestBuild_MissingWorkingDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)

	got := f.session.Build(ctx, buildcommand.Exec("make").WithWorkingDir("not-exists"))

	if got != v1.JobResultFailed {
		t.Errorf("Build() = %s, want %s", got, v1.JobResultFailed)
	}
	want := fmt.Sprintf("[go] Working directory %q is not a directory!\n", filepath.Join(f.work, "not-exists"))
	if d := cmp.Diff(want, f.console.String()); d != "" {
		t.Errorf("console %s", diff.PrintWantGot(d))
	}
	if len(f.runner.processes) != 0 {
		t.Errorf("ran %v, want nothing", f.runner.processes)
	}
}

func TestBuild_Upload(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	writeFiles(t, f.work, map[string]string{
		"target/libs/a.jar": "a",
		"target/libs/b.jar": "b",
	})

	got := f.session.Build(ctx, buildcommand.Upload("target/**/*.jar", "dist", false))
	if got != v1.JobResultPassed {
		t.Fatalf("Build() = %s, want Passed:\n%s", got, f.console.String())
	}
	want := []artifacts.PublishedRecord{
		{Source: "target/libs/a.jar", Destination: "dist/libs"},
		{Source: "target/libs/b.jar", Destination: "dist/libs"},
	}
	if d := cmp.Diff(want, f.repo.Published()); d != "" {
		t.Errorf("Published() %s", diff.PrintWantGot(d))
	}
}

func TestBuild_WithoutArtifactRepository(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  buildcommand.Command
		line string
	}{{
		name: "upload",
		cmd:  buildcommand.Upload("target/app.jar", "dist", false),
		line: "[go] no artifact repository to upload [target/app.jar] to",
	}, {
		name: "download directory",
		cmd:  buildcommand.DownloadDir(buildcommand.DownloadArgs{Source: "dist/libs", Destination: "fetched"}),
		line: "[go] no artifact repository to fetch [dist/libs] from",
	}, {
		name: "download file",
		cmd:  buildcommand.DownloadFile(buildcommand.DownloadArgs{Source: "dist/app.jar", Destination: "fetched"}),
		line: "[go] no artifact repository to fetch [dist/app.jar] from",
	}, {
		name: "test report",
		cmd:  buildcommand.GenerateTestReport([]string{"reports"}, "testoutput"),
		line: "[go] no artifact repository to upload the test report to",
	}} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := logtesting.TestContextWithLogger(t)
			writeFiles(t, f.work, map[string]string{"target/app.jar": "jar"})
			f.session.Artifacts = nil

			if got := f.session.Build(ctx, tc.cmd); got != v1.JobResultFailed {
				t.Errorf("Build() = %s, want %s", got, v1.JobResultFailed)
			}
			if d := cmp.Diff([]string{tc.line}, consoleLines(f.console)); d != "" {
				t.Errorf("console %s", diff.PrintWantGot(d))
			}
		})
	}
}

func TestBuild_UploadNoMatch(t *testing.T) {
	for _, tc := range []struct {
		name          string
		ignoreUnmatch bool
		want          v1.JobResult
		line          string
	}{{
		name: "fails the build",
		want: v1.JobResultFailed,
		line: "[go] Failed to upload [**/*.png]",
	}, {
		name:          "ignored",
		ignoreUnmatch: true,
		want:          v1.JobResultPassed,
		line:          "[WARN] The rule [**/*.png] cannot match any resource under",
	}} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := logtesting.TestContextWithLogger(t)

			got := f.session.Build(ctx, buildcommand.Upload("**/*.png", "", tc.ignoreUnmatch))
			if got != tc.want {
				t.Errorf("Build() = %s, want %s", got, tc.want)
			}
			if !strings.Contains(f.console.String(), tc.line) {
				t.Errorf("console is missing %q:\n%s", tc.line, f.console.String())
			}
		})
	}
}

func TestBuild_DownloadVerifiesChecksums(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	writeFiles(t, f.work, map[string]string{
		"build/libs/a.jar":     "a",
		"build/libs/sub/b.jar": "b",
		"build/notes.txt":      "notes",
	})

	got := f.session.Build(ctx, buildcommand.Compose(
		buildcommand.Upload("build/libs", "dist", false),
		buildcommand.Upload("build/notes.txt", "docs", false),
		buildcommand.DownloadDir(buildcommand.DownloadArgs{Source: "dist/libs", Destination: "fetched"}),
		buildcommand.DownloadDir(buildcommand.DownloadArgs{Source: "dist/libs/", Destination: "trailing-slash"}),
		buildcommand.DownloadDir(buildcommand.DownloadArgs{Source: `dist\libs\`, Destination: "backslashes"}),
		buildcommand.DownloadFile(buildcommand.DownloadArgs{Source: "docs/notes.txt", Destination: "fetched"}),
	))
	if got != v1.JobResultPassed {
		t.Fatalf("Build() = %s, want Passed:\n%s", got, f.console.String())
	}

	for name, want := range map[string]string{
		"fetched/libs/a.jar":            "a",
		"fetched/libs/sub/b.jar":        "b",
		"trailing-slash/libs/a.jar":     "a",
		"trailing-slash/libs/sub/b.jar": "b",
		"backslashes/libs/a.jar":        "a",
		"fetched/notes.txt":             "notes",
	} {
		data, err := os.ReadFile(filepath.Join(f.work, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("reading %s: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
	out := f.console.String()
	for _, line := range []string{
		fmt.Sprintf("Saved artifact to [%s] after verifying the integrity of its contents.", filepath.Join(f.work, "fetched")),
		fmt.Sprintf("Saved artifact to [%s] after verifying the integrity of its contents.", filepath.Join(f.work, "trailing-slash")),
		fmt.Sprintf("Saved artifact to [%s] after verifying the integrity of its contents.", filepath.Join(f.work, "backslashes")),
		fmt.Sprintf("Saved artifact to [%s] after verifying the integrity of its contents.", filepath.Join(f.work, "fetched", "notes.txt")),
	} {
		if !strings.Contains(out, line) {
			t.Errorf("console is missing %q:\n%s", line, out)
		}
	}
	if strings.Contains(out, "[WARN]") {
		t.Errorf("console has warnings:\n%s", out)
	}
}

func TestBuild_Cleandir(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	writeFiles(t, f.work, map[string]string{
		"wd/junk.txt":       "x",
		"wd/src/keep/a.go":  "a",
		"wd/src/drop/b.go":  "b",
		"wd/material/c.go":  "c",
		"wd/target/out.jar": "o",
	})

	got := f.session.Build(ctx, buildcommand.Cleandir("wd", "src/keep", "material"))
	if got != v1.JobResultPassed {
		t.Fatalf("Build() = %s:\n%s", got, f.console.String())
	}

	var remaining []string
	err := filepath.Walk(filepath.Join(f.work, "wd"), func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(f.work, p)
			remaining = append(remaining, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"wd/material/c.go", "wd/src/keep/a.go"}
	if d := cmp.Diff(want, remaining); d != "" {
		t.Errorf("remaining files %s", diff.PrintWantGot(d))
	}
}

func TestBuild_Mkdirs(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)

	if got := f.session.Build(ctx, buildcommand.Mkdirs("a/b")); got != v1.JobResultPassed {
		t.Fatalf("Build() = %s:\n%s", got, f.console.String())
	}
	if info, err := os.Stat(filepath.Join(f.work, "a", "b")); err != nil || !info.IsDir() {
		t.Errorf("a/b was not created: %v", err)
	}
}

func TestBuild_GenerateReport(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	writeFiles(t, f.work, map[string]string{
		"reports/TEST-a.xml": `<testsuite name="a" tests="3" failures="1" errors="0" skipped="1" time="1.5"></testsuite>`,
	})

	got := f.session.Build(ctx, buildcommand.GenerateTestReport([]string{"reports"}, v1.TestOutputDir))
	if got != v1.JobResultPassed {
		t.Fatalf("Build() = %s:\n%s", got, f.console.String())
	}
	for name, want := range map[string]string{
		artifacts.TotalTestCountProperty:   "3",
		artifacts.FailedTestCountProperty:  "1",
		artifacts.IgnoredTestCountProperty: "1",
		artifacts.TestDurationProperty:     "1.500",
	} {
		if v, ok := f.repo.Property(name); !ok || v != want {
			t.Errorf("property %s = %q, %t; want %q", name, v, ok, want)
		}
	}
	if _, ok := f.repo.Manifest().Get(v1.TestOutputDir + "/" + artifacts.TestReportIndex); !ok {
		t.Errorf("index.xml was not published, manifest has %v", f.repo.Manifest().Keys())
	}
}

func TestBuild_GeneratePropertyFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	writeFiles(t, f.work, map[string]string{
		"out/coverage.xml": `<report><coverage line="87.5"/></report>`,
	})

	got := f.session.Build(ctx, buildcommand.Compose(
		buildcommand.GenerateProperty("coverage", "out/coverage.xml", "//coverage/@line"),
		buildcommand.GenerateProperty("missing", "out/none.xml", "//x"),
	))
	if got != v1.JobResultPassed {
		t.Errorf("Build() = %s, want Passed", got)
	}
	if v, _ := f.repo.Property("coverage"); v != "87.5" {
		t.Errorf("coverage = %q, want 87.5", v)
	}
	if !strings.Contains(f.console.String(), "[WARN] Failed to create property missing") {
		t.Errorf("missing warning:\n%s", f.console.String())
	}
}

func assignment() *v1.JobAssignment {
	a := &v1.JobAssignment{
		JobIdentifier: job,
		ServerURL:     "https://server",
		Environment: v1.EnvironmentVariables{
			{Name: "foo", Value: "foo(i am a secret)"},
			{Name: "bar", Value: "i am a secret", Secure: true},
		},
		Builders: []v1.Builder{{
			Exec:     &v1.ExecTask{Command: "./build.sh"},
			OnCancel: &v1.Builder{Exec: &v1.ExecTask{Command: "./cleanup.sh"}},
		}, {
			Exec:  &v1.ExecTask{Command: "./notify.sh"},
			RunIf: v1.RunIf(v1.RunIfFailed),
		}},
	}
	a.SetDefaults()
	return a
}

func TestRun_Passes(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)

	if got := f.session.Run(ctx, assignment()); got != v1.JobResultPassed {
		t.Fatalf("Run() = %s:\n%s", got, f.console.String())
	}
	want := []string{"Preparing", "Building", "Completing/Passed", "Completed/Passed"}
	if d := cmp.Diff(want, f.reporter.calls); d != "" {
		t.Errorf("reports %s", diff.PrintWantGot(d))
	}
	var ran []string
	for _, p := range f.runner.processes {
		ran = append(ran, p.Name)
	}
	if d := cmp.Diff([]string{"./build.sh"}, ran); d != "" {
		t.Errorf("processes %s", diff.PrintWantGot(d))
	}
	out := f.console.String()
	if strings.Count(out, "[go] Job completed p1/100/mingle/1/run-ant on agent1 [/var/lib/agent]") != 1 {
		t.Errorf("want exactly one completion line:\n%s", out)
	}
	if strings.Contains(out, "i am a secret") {
		t.Errorf("console leaks the secret:\n%s", out)
	}
	if f.session.Cancel() {
		t.Errorf("Cancel() after completion was accepted")
	}
}

func TestRun_FailedBuilderRunsFailedTasks(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	a := assignment()
	a.Builders[0].Exec.Command = "false"

	if got := f.session.Run(ctx, a); got != v1.JobResultFailed {
		t.Fatalf("Run() = %s:\n%s", got, f.console.String())
	}
	var ran []string
	for _, p := range f.runner.processes {
		ran = append(ran, p.Name)
	}
	if d := cmp.Diff([]string{"false", "./notify.sh"}, ran); d != "" {
		t.Errorf("processes %s", diff.PrintWantGot(d))
	}
	want := []string{"Preparing", "Building", "Completing/Failed", "Completed/Failed"}
	if d := cmp.Diff(want, f.reporter.calls); d != "" {
		t.Errorf("reports %s", diff.PrintWantGot(d))
	}
	if !strings.Contains(f.console.String(), "[go] Current job status: failed") {
		t.Errorf("missing failed status line:\n%s", f.console.String())
	}
}

func TestRun_CancelDuringTask(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	f.runner.onRun = func(p buildsession.Process) {
		if p.Name == "./build.sh" {
			f.session.Cancel()
		}
	}

	if got := f.session.Run(ctx, assignment()); got != v1.JobResultCancelled {
		t.Fatalf("Run() = %s:\n%s", got, f.console.String())
	}

	var ran []string
	for _, p := range f.runner.processes {
		ran = append(ran, p.Name)
	}
	if d := cmp.Diff([]string{"./build.sh", "./cleanup.sh"}, ran); d != "" {
		t.Errorf("processes %s", diff.PrintWantGot(d))
	}
	want := []string{"Preparing", "Building", "Completed/Cancelled"}
	if d := cmp.Diff(want, f.reporter.calls); d != "" {
		t.Errorf("reports %s", diff.PrintWantGot(d))
	}

	lines := consoleLines(f.console)
	tail := lines[len(lines)-6:]
	wantTail := []string{
		"ran ./build.sh",
		"[go] Cancelling task: ./build.sh",
		"[go] On Cancel Task: ./cleanup.sh",
		"ran ./cleanup.sh",
		"[go] Job is cancelled p1/100/mingle/1/run-ant on agent1 [/var/lib/agent]",
		"[go] Job completed p1/100/mingle/1/run-ant on agent1 [/var/lib/agent]",
	}
	if d := cmp.Diff(wantTail, tail); d != "" {
		t.Errorf("console tail %s", diff.PrintWantGot(d))
	}
}

func TestRun_CancelBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	f.session.Cancel()

	if got := f.session.Run(ctx, assignment()); got != v1.JobResultCancelled {
		t.Fatalf("Run() = %s", got)
	}
	if len(f.runner.processes) != 0 {
		t.Errorf("ran %v, want nothing", f.runner.processes)
	}
	if d := cmp.Diff([]string{"Completed/Cancelled"}, f.reporter.calls); d != "" {
		t.Errorf("reports %s", diff.PrintWantGot(d))
	}
	want := []string{
		"[go] Job is cancelled p1/100/mingle/1/run-ant on agent1 [/var/lib/agent]",
		"[go] Job completed p1/100/mingle/1/run-ant on agent1 [/var/lib/agent]",
	}
	if d := cmp.Diff(want, consoleLines(f.console)); d != "" {
		t.Errorf("console %s", diff.PrintWantGot(d))
	}
}

func TestBuild_CancelAfterCompletionIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	var accepted bool
	f.runner.onRun = func(buildsession.Process) { accepted = f.session.Cancel() }

	got := f.session.Build(ctx, buildcommand.Compose(
		buildcommand.ReportCompleted("done").RunIfAny(),
		buildcommand.Exec("late").RunIfAny(),
	))
	if got != v1.JobResultPassed {
		t.Errorf("Build() = %s, want %s", got, v1.JobResultPassed)
	}
	if accepted {
		t.Error("Cancel() = true after completion")
	}
	if f.session.Cancelled() {
		t.Error("Cancelled() = true after completion")
	}
	if d := cmp.Diff([]string{"Completed/Passed"}, f.reporter.calls); d != "" {
		t.Errorf("reports %s", diff.PrintWantGot(d))
	}
}

func TestBuild_ConcurrentCancelAgreesWithReportedResult(t *testing.T) {
	ctx := logtesting.TestContextWithLogger(t)
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		start := make(chan struct{})
		accepted := make(chan bool, 1)
		go func() {
			<-start
			accepted <- f.session.Cancel()
		}()
		close(start)
		got := f.session.Build(ctx, buildcommand.ReportCompleted("").RunIfAny())
		cancelled := <-accepted

		if cancelled && got != v1.JobResultCancelled {
			t.Fatalf("run %d: Cancel() = true but Build() = %s", i, got)
		}
		if !cancelled && got != v1.JobResultPassed {
			t.Fatalf("run %d: Cancel() = false but Build() = %s", i, got)
		}
		if calls := f.reporter.calls; len(calls) > 0 {
			if d := cmp.Diff([]string{"Completed/" + string(got)}, calls); d != "" {
				t.Fatalf("run %d: reports %s", i, diff.PrintWantGot(d))
			}
		}
	}
}

func TestBuild_NestedHandlersRunInnermostOnly(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	f.runner.onRun = func(buildsession.Process) { f.session.Cancel() }

	tree := buildcommand.Compose(
		buildcommand.Compose(
			buildcommand.Compose(
				buildcommand.Exec("work"),
				buildcommand.Echo("never"),
			).WithOnCancel(buildcommand.Echo("inner handler").RunIfAny()),
			buildcommand.Echo("never either"),
		).WithOnCancel(buildcommand.Echo("middle handler").RunIfAny()),
	).WithOnCancel(buildcommand.Compose(
		buildcommand.Echo("root handler").RunIfAny(),
		buildcommand.ReportCompleted("done").RunIfAny(),
	).RunIfAny())

	if got := f.session.Build(ctx, tree); got != v1.JobResultCancelled {
		t.Errorf("Build() = %s, want Cancelled", got)
	}
	want := []string{"ran work", "[go] inner handler", "[go] root handler", "[go] done"}
	if d := cmp.Diff(want, consoleLines(f.console)); d != "" {
		t.Errorf("console %s", diff.PrintWantGot(d))
	}
}

func TestRun_CompositionFault(t *testing.T) {
	f := newFixture(t)
	ctx := logtesting.TestContextWithLogger(t)
	a := assignment()
	a.Builders = append(a.Builders, v1.Builder{})

	if got := f.session.Run(ctx, a); got != v1.JobResultFailed {
		t.Errorf("Run() = %s, want Failed", got)
	}
	if d := cmp.Diff([]string{"Completed/Failed"}, f.reporter.calls); d != "" {
		t.Errorf("reports %s", diff.PrintWantGot(d))
	}
	if strings.Contains(f.console.String(), "Start to prepare") {
		t.Errorf("console shows a prepare phase:\n%s", f.console.String())
	}
	if len(f.runner.processes) != 0 {
		t.Errorf("ran %v, want nothing", f.runner.processes)
	}
}

func TestRealRunner(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	ctx := logtesting.TestContextWithLogger(t)
	var out bytes.Buffer
	r := &buildsession.RealRunner{}

	err := r.Run(ctx, buildsession.Process{Name: "/bin/sh", Args: []string{"-c", "echo $GREETING; exit 3"}, Dir: t.TempDir(), Env: []string{"GREETING=hi"}, Stdout: &out, Stderr: io.Discard})
	if got, want := out.String(), "hi\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	want := &buildsession.ExitError{Command: "/bin/sh -c echo $GREETING; exit 3", Code: 3}
	if d := cmp.Diff(want, err); d != "" {
		t.Errorf("error %s", diff.PrintWantGot(d))
	}

	err = r.Run(ctx, buildsession.Process{Name: "definitely-not-a-command", Dir: t.TempDir(), Stdout: io.Discard, Stderr: io.Discard})
	if err == nil || !strings.Contains(err.Error(), "Please make sure [definitely-not-a-command] can be executed on this agent.") {
		t.Errorf("Run() = %v, want a start error", err)
	}
}
