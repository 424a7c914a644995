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

// Package artifacts resolves artifact plans against a working directory and
// moves artifacts between an agent and the artifact store with integrity
// checks.
package artifacts

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/gobwas/glob"
)

// UploadEntry is one file or directory to publish and the store directory
// it is published into.
type UploadEntry struct {
	// Source is an absolute path on the agent.
	Source string
	// Path is Source relative to the directory the plan was resolved in,
	// with `/` separators. It names the artifact in published records.
	Path string
	// Destination is relative to the root of the job's artifact store.
	Destination string
}

// NoMatchError is returned when an artifact rule matches nothing.
type NoMatchError struct {
	Source  string
	BaseDir string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("The rule [%s] cannot match any resource under [%s]", e.Source, e.BaseDir)
}

// HasWildcard reports whether pattern contains glob metacharacters.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// splitPattern returns the segments before the first wildcard segment and
// the remaining segments.
func splitPattern(pattern string) (fixed, wild []string) {
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	for i, s := range segments {
		if HasWildcard(s) {
			return segments[:i], segments[i:]
		}
	}
	return segments, nil
}

// DestinationFor returns the store directory a file matched by pattern is
// published into. Directories of the match that were part of the fixed
// prefix of the pattern are dropped, directories introduced by wildcards are
// kept and the file name itself is never appended.
func DestinationFor(pattern, dest, baseDir, matched string) (string, error) {
	rel, err := filepath.Rel(baseDir, matched)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s to %s: %w", matched, baseDir, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside of %s", matched, baseDir)
	}
	fixed, wild := splitPattern(pattern)
	if len(wild) == 0 {
		return dest, nil
	}
	segments := strings.Split(rel, "/")
	if len(segments) <= len(fixed) {
		return dest, nil
	}
	dirs := segments[len(fixed) : len(segments)-1]
	return joinDestination(dest, path.Join(dirs...)), nil
}

func joinDestination(dest, sub string) string {
	switch {
	case sub == "":
		return dest
	case dest == "":
		return sub
	}
	return dest + "/" + sub
}

// Resolve scans baseDir for the files a plan selects. A source without
// wildcards naming an existing file or directory is published as is.
func Resolve(plan v1.ArtifactPlan, baseDir string) ([]UploadEntry, error) {
	dest := plan.EffectiveDestination()
	if !HasWildcard(plan.Source) {
		src := filepath.Join(baseDir, filepath.FromSlash(plan.Source))
		if _, err := os.Stat(src); err != nil {
			return nil, &NoMatchError{Source: plan.Source, BaseDir: baseDir}
		}
		return []UploadEntry{{Source: src, Path: ManifestKey(plan.Source), Destination: dest}}, nil
	}

	matcher, err := compilePattern(plan.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact source %q: %w", plan.Source, err)
	}
	var entries []UploadEntry
	err = filepath.WalkDir(baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(baseDir, p)
		if err != nil {
			return err
		}
		if !matcher.Match(filepath.ToSlash(rel)) {
			return nil
		}
		to, err := DestinationFor(plan.Source, dest, baseDir, p)
		if err != nil {
			return err
		}
		entries = append(entries, UploadEntry{Source: p, Path: filepath.ToSlash(rel), Destination: to})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", baseDir, err)
	}
	if len(entries) == 0 {
		return nil, &NoMatchError{Source: plan.Source, BaseDir: baseDir}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Source < entries[j].Source })
	return entries, nil
}

// globSet matches when any of its alternatives does.
type globSet []glob.Glob

func (g globSet) Match(s string) bool {
	for _, m := range g {
		if m.Match(s) {
			return true
		}
	}
	return false
}

// compilePattern compiles pattern with `/` as separator. `**/` also matches
// zero directories, so every combination with those segments removed is
// compiled as an alternative.
func compilePattern(pattern string) (globSet, error) {
	variants := map[string]struct{}{}
	var expand func(p string)
	expand = func(p string) {
		if _, ok := variants[p]; ok {
			return
		}
		variants[p] = struct{}{}
		for i := strings.Index(p, "**/"); i >= 0; {
			if i == 0 || p[i-1] == '/' {
				expand(p[:i] + p[i+3:])
			}
			next := strings.Index(p[i+1:], "**/")
			if next < 0 {
				break
			}
			i += next + 1
		}
	}
	expand(strings.Trim(pattern, "/"))

	keys := make([]string, 0, len(variants))
	for k := range variants {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	set := make(globSet, 0, len(keys))
	for _, k := range keys {
		g, err := glob.Compile(k, '/')
		if err != nil {
			return nil, err
		}
		set = append(set, g)
	}
	return set, nil
}
