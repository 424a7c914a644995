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

package buildcommand

import (
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
)

// Args is the kind-specific payload of a Command. Only types in this package
// implement it.
type Args interface {
	isArgs()
}

// EchoArgs holds the lines printed by an echo command.
type EchoArgs struct {
	Lines []string
}

// ExecArgs holds the process to run.
type ExecArgs struct {
	Command string
	Args    []string
}

// ExportArgs holds one environment variable.
type ExportArgs struct {
	Name   string
	Value  string
	Secure bool
}

// SecretArgs holds a value to mask.
type SecretArgs struct {
	Value        string
	Substitution string
}

// UploadArgs holds one artifact plan to publish.
type UploadArgs struct {
	Source        string
	Destination   string
	IgnoreUnmatch bool
}

// DownloadArgs locates a published artifact and where to save it.
type DownloadArgs struct {
	// Source is the published path; it prefixes the checksum manifest keys.
	Source      string
	URL         string
	ChecksumURL string
	// Destination is relative to the command's working directory.
	Destination string
}

// GenerateReportArgs holds the test report sources to merge.
type GenerateReportArgs struct {
	Sources    []string
	UploadPath string
}

// GeneratePropertyArgs selects one property from an XML file.
type GeneratePropertyArgs struct {
	Name   string
	Source string
	XPath  string
}

// PathArgs names a path relative to the working directory.
type PathArgs struct {
	Path string
}

// CleandirArgs names a directory to empty and the entries to keep.
type CleandirArgs struct {
	Path    string
	Allowed []string
}

// TestFlag selects the predicate of a test command.
type TestFlag string

const (
	TestDirExists       TestFlag = "-d"
	TestDirNotExists    TestFlag = "-nd"
	TestFileExists      TestFlag = "-f"
	TestFileNotExists   TestFlag = "-nf"
	TestOutputEquals    TestFlag = "-eq"
	TestOutputNotEquals TestFlag = "-neq"
)

// TestArgs holds a guard predicate. Command is only set for -eq and -neq.
type TestArgs struct {
	Flag    TestFlag
	Operand string
	Command *Command
}

// FailArgs holds the failure message.
type FailArgs struct {
	Message string
}

// ReportArgs holds the job state to report and the line printed with it.
type ReportArgs struct {
	State   v1.JobState
	Message string
}

// CheckoutArgs holds the material revision to sync to.
type CheckoutArgs struct {
	Material v1.MaterialRevision
}

func (EchoArgs) isArgs()             {}
func (ExecArgs) isArgs()             {}
func (ExportArgs) isArgs()           {}
func (SecretArgs) isArgs()           {}
func (UploadArgs) isArgs()           {}
func (DownloadArgs) isArgs()         {}
func (GenerateReportArgs) isArgs()   {}
func (GeneratePropertyArgs) isArgs() {}
func (PathArgs) isArgs()             {}
func (CleandirArgs) isArgs()         {}
func (TestArgs) isArgs()             {}
func (FailArgs) isArgs()             {}
func (ReportArgs) isArgs()           {}
func (CheckoutArgs) isArgs()         {}
