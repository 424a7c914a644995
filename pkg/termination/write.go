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

// Package termination records the outcomes of the jobs an agent ran in a
// file read by whatever supervises the agent.
package termination

import (
	"encoding/json"
	"os"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
)

// WriteOutcomes appends outcomes to the JSON list at path, creating it if
// needed. An unreadable existing list is replaced.
func WriteOutcomes(path string, outcomes []v1.JobOutcome) error {
	fileContents, err := os.ReadFile(path)
	if err == nil {
		if existing, err := ParseOutcomes(string(fileContents)); err == nil {
			outcomes = append(existing, outcomes...)
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	jsonOutput, err := json.Marshal(outcomes)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Write(jsonOutput); err != nil {
		return err
	}
	return f.Sync()
}
