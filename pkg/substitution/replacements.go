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

// Package substitution expands ${name} build variables.
package substitution

import (
	"sort"
	"strings"
)

// ApplyReplacements returns a string with references to build variables
// replaced, based on the mapping provided in replacements.
// For example, if the input string is "on ${agent.hostname}", and replacements
// maps "agent.hostname" to "agent1", the output would be "on agent1".
// References to unknown variables are left as they are.
func ApplyReplacements(in string, replacements map[string]string) string {
	if !strings.Contains(in, "${") {
		return in
	}
	names := make([]string, 0, len(replacements))
	for k := range replacements {
		names = append(names, k)
	}
	sort.Strings(names)
	replacementsList := make([]string, 0, 2*len(names))
	for _, k := range names {
		replacementsList = append(replacementsList, "${"+k+"}", replacements[k])
	}
	// strings.Replacer does all replacements in one pass, so a value that
	// contains a reference is not expanded again.
	replacer := strings.NewReplacer(replacementsList...)
	return replacer.Replace(in)
}
