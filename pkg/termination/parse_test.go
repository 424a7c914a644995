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

package termination

import (
	"testing"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
)

func TestParseOutcomes(t *testing.T) {
	got, err := ParseOutcomes(`[{"name":"linux","state":"Completed","result":"Passed"}]`)
	if err != nil {
		t.Fatalf("ParseOutcomes() = %v", err)
	}
	if len(got) != 1 || got[0].Result != v1.JobResultPassed {
		t.Errorf("ParseOutcomes() = %+v", got)
	}
}

func TestParseOutcomes_Empty(t *testing.T) {
	got, err := ParseOutcomes("")
	if err != nil || got != nil {
		t.Errorf("ParseOutcomes(\"\") = %v, %v", got, err)
	}
}

func TestParseOutcomes_Invalid(t *testing.T) {
	if _, err := ParseOutcomes("{"); err == nil {
		t.Error("expected an error")
	}
}
