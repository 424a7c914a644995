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

// Package buildcommand defines the immutable command tree an agent executes
// for a job.
package buildcommand

import (
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
)

// Kind tags the variant of a Command.
type Kind string

const (
	KindCompose          Kind = "compose"
	KindEcho             Kind = "echo"
	KindExec             Kind = "exec"
	KindExport           Kind = "export"
	KindSecret           Kind = "secret"
	KindUpload           Kind = "upload"
	KindDownloadFile     Kind = "download-file"
	KindDownloadDir      Kind = "download-dir"
	KindGenerateReport   Kind = "generate-report"
	KindGenerateProperty Kind = "generate-property"
	KindMkdirs           Kind = "mkdirs"
	KindCleandir         Kind = "cleandir"
	KindTest             Kind = "test"
	KindFail             Kind = "fail"
	KindReportStatus     Kind = "report-status"
	KindReportCompleting Kind = "report-completing"
	KindReportCompleted  Kind = "report-completed"
	KindCheckout         Kind = "checkout"
	KindNoOp             Kind = "no-op"
)

// Command is one node of the tree. The zero value is not useful; build
// commands with the constructors in this package. Every With* method returns
// a modified copy and leaves the receiver untouched.
type Command struct {
	kind       Kind
	args       Args
	children   []Command
	runIf      v1.RunIfConfigs
	workingDir string
	onCancel   *Command
	test       *Command
}

func newCommand(k Kind, a Args) Command {
	return Command{kind: k, args: a}
}

// Kind returns the variant tag.
func (c Command) Kind() Kind { return c.kind }

// Args returns the kind-specific payload, nil for kinds without one.
func (c Command) Args() Args { return c.args }

// Children returns a copy of the children of a compose node.
func (c Command) Children() []Command {
	return append([]Command(nil), c.children...)
}

// RunIfConfig returns the run-if labels gating this node.
func (c Command) RunIfConfig() v1.RunIfConfigs {
	return append(v1.RunIfConfigs(nil), c.runIf...)
}

// WorkingDir is relative to the session's work root; empty means the root.
func (c Command) WorkingDir() string { return c.workingDir }

// OnCancel returns the node run in place of this one on cancellation.
func (c Command) OnCancel() (Command, bool) {
	if c.onCancel == nil {
		return Command{}, false
	}
	return *c.onCancel, true
}

// Test returns the guard that must pass before this node runs.
func (c Command) Test() (Command, bool) {
	if c.test == nil {
		return Command{}, false
	}
	return *c.test, true
}

// RunIf returns a copy gated by the given labels.
func (c Command) RunIf(statuses ...v1.RunIfStatus) Command {
	c.runIf = append(v1.RunIfConfigs(nil), statuses...)
	return c
}

// RunIfAny returns a copy that runs regardless of the running label.
func (c Command) RunIfAny() Command {
	return c.RunIf(v1.RunIfAny)
}

// WithRunIfConfig returns a copy gated by a configured run-if list.
func (c Command) WithRunIfConfig(r v1.RunIfConfigs) Command {
	return c.RunIf(r...)
}

// WithWorkingDir returns a copy that runs in dir.
func (c Command) WithWorkingDir(dir string) Command {
	c.workingDir = dir
	return c
}

// WithOnCancel returns a copy with a cancellation handler.
func (c Command) WithOnCancel(h Command) Command {
	c.onCancel = &h
	return c
}

// WithTest returns a copy guarded by t, which must be a test command.
func (c Command) WithTest(t Command) Command {
	c.test = &t
	return c
}

// Compose groups children; it has no behaviour of its own.
func Compose(children ...Command) Command {
	c := newCommand(KindCompose, nil)
	c.children = append([]Command(nil), children...)
	return c
}

// Echo prints lines to the console with the agent prefix. `${name}` refers
// to a build variable.
func Echo(lines ...string) Command {
	return newCommand(KindEcho, EchoArgs{Lines: append([]string(nil), lines...)})
}

// Exec runs a process.
func Exec(command string, args ...string) Command {
	return newCommand(KindExec, ExecArgs{Command: command, Args: append([]string(nil), args...)})
}

// Export sets an environment variable for the following commands.
func Export(name, value string, secure bool) Command {
	return newCommand(KindExport, ExportArgs{Name: name, Value: value, Secure: secure})
}

// Secret registers a value that is masked in all console output.
func Secret(value string) Command {
	return newCommand(KindSecret, SecretArgs{Value: value})
}

// SecretWithSubstitution masks value with substitution instead of the
// default mask.
func SecretWithSubstitution(value, substitution string) Command {
	return newCommand(KindSecret, SecretArgs{Value: value, Substitution: substitution})
}

// Upload publishes the files matched by src under dest in the artifact store.
func Upload(src, dest string, ignoreUnmatch bool) Command {
	return newCommand(KindUpload, UploadArgs{Source: src, Destination: dest, IgnoreUnmatch: ignoreUnmatch})
}

// DownloadFile fetches a single published file.
func DownloadFile(a DownloadArgs) Command {
	return newCommand(KindDownloadFile, a)
}

// DownloadDir fetches a published directory.
func DownloadDir(a DownloadArgs) Command {
	return newCommand(KindDownloadDir, a)
}

// GenerateTestReport merges the test reports under sources and uploads the
// result to uploadPath.
func GenerateTestReport(sources []string, uploadPath string) Command {
	return newCommand(KindGenerateReport, GenerateReportArgs{Sources: append([]string(nil), sources...), UploadPath: uploadPath})
}

// GenerateProperty reads one build property from an XML file.
func GenerateProperty(name, src, xpath string) Command {
	return newCommand(KindGenerateProperty, GeneratePropertyArgs{Name: name, Source: src, XPath: xpath})
}

// Mkdirs creates path and its parents. It fails if path already exists.
func Mkdirs(path string) Command {
	return newCommand(KindMkdirs, PathArgs{Path: path})
}

// Cleandir empties path, keeping the allowed entries.
func Cleandir(path string, allowed ...string) Command {
	return newCommand(KindCleandir, CleandirArgs{Path: path, Allowed: append([]string(nil), allowed...)})
}

// Test builds a guard on a path: -d, -nd, -f or -nf.
func Test(flag TestFlag, path string) Command {
	return newCommand(KindTest, TestArgs{Flag: flag, Operand: path})
}

// TestOutput builds a guard comparing the output of sub against value with
// -eq or -neq.
func TestOutput(flag TestFlag, value string, sub Command) Command {
	return newCommand(KindTest, TestArgs{Flag: flag, Operand: value, Command: &sub})
}

// Fail prints message and marks the build failed.
func Fail(message string) Command {
	return newCommand(KindFail, FailArgs{Message: message})
}

// ReportCurrentStatus reports a job state to the server.
func ReportCurrentStatus(s v1.JobState) Command {
	return newCommand(KindReportStatus, ReportArgs{State: s})
}

// ReportCompleting reports the Completing state.
func ReportCompleting() Command {
	return newCommand(KindReportCompleting, ReportArgs{State: v1.JobStateCompleting})
}

// ReportCompleted reports the terminal state with the build result and
// prints announcement. Only the first completion of a job is reported.
func ReportCompleted(announcement string) Command {
	return newCommand(KindReportCompleted, ReportArgs{State: v1.JobStateCompleted, Message: announcement})
}

// Checkout brings a material to its assigned revision.
func Checkout(m v1.MaterialRevision) Command {
	return newCommand(KindCheckout, CheckoutArgs{Material: m})
}

// NoOp does nothing.
func NoOp() Command {
	return newCommand(KindNoOp, nil)
}
