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

// Builder is one configured task of a job. Exactly one of Exec, Fetch or
// Kill is set.
type Builder struct {
	Description string       `json:"description,omitempty"`
	RunIf       RunIfConfigs `json:"runIf,omitempty"`
	// OnCancel runs in place of the task when the job is cancelled while the
	// task is active.
	OnCancel *Builder `json:"onCancel,omitempty"`

	Exec  *ExecTask  `json:"exec,omitempty"`
	Fetch *FetchTask `json:"fetch,omitempty"`
	Kill  *KillTask  `json:"kill,omitempty"`
}

// ExecTask runs a process.
type ExecTask struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	// WorkingDir is relative to the job working directory.
	WorkingDir string `json:"workingDir,omitempty"`
}

// FetchTask downloads an artifact the server already holds, either a single
// file or a directory.
type FetchTask struct {
	// Source is the artifact path as published, e.g. "up42_stage/build/logs".
	Source string `json:"source"`
	// Destination is relative to the job working directory.
	Destination string `json:"destination,omitempty"`
	IsFile      bool   `json:"isFile,omitempty"`
	// URL and ChecksumURL locate the artifact and its manifest in the store.
	URL         string `json:"url,omitempty"`
	ChecksumURL string `json:"checksumUrl,omitempty"`
}

// KillTask signals the processes started by the job. Used as a cancel task.
type KillTask struct {
	Signal string `json:"signal,omitempty"`
}

// TaskKind names which of the one-of fields is set.
func (b Builder) TaskKind() string {
	switch {
	case b.Exec != nil:
		return "exec"
	case b.Fetch != nil:
		return "fetch"
	case b.Kill != nil:
		return "kill"
	}
	return ""
}

// PropertyGenerator harvests one build property from a file in the working
// directory once the build is done.
type PropertyGenerator struct {
	Name string `json:"name"`
	// Source is relative to the job working directory.
	Source string `json:"src"`
	// XPath selects the value; an XPath that ends in an attribute (`/@name`)
	// reads that attribute, anything else reads element text.
	XPath string `json:"xpath"`
}

// MaterialRevision pins a material to the revision the build must run against.
type MaterialRevision struct {
	Type     string `json:"type,omitempty"`
	URL      string `json:"url"`
	Revision string `json:"revision"`
	// Dest is the checkout directory, relative to the job working directory.
	Dest string `json:"dest,omitempty"`
}
