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

package artifacts_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fleetci/pipeline/internal/test/diff"
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/artifacts"
	"github.com/google/go-cmp/cmp"
)

func TestDestinationFor(t *testing.T) {
	base := filepath.FromSlash("pipelines/pipelineA")
	for _, tc := range []struct {
		name    string
		pattern string
		dest    string
		matched string
		want    string
	}{{
		name:    "double star then single star",
		pattern: "test/**/*/a.log",
		dest:    "logs",
		matched: "test/a/b/a.log",
		want:    "logs/a/b",
	}, {
		name:    "file name wildcard at the root",
		pattern: "*.jar",
		dest:    "dist",
		matched: "app.jar",
		want:    "dist",
	}, {
		name:    "suffix wildcard",
		pattern: "*blah.xml",
		dest:    "dist",
		matched: "fooblah.xml",
		want:    "dist",
	}, {
		name:    "leading double star keeps every directory",
		pattern: "**/*.png",
		dest:    "mypic",
		matched: "logs/pic/x.png",
		want:    "mypic/logs/pic",
	}, {
		name:    "fixed prefix is dropped",
		pattern: "logs/pic/*.png",
		dest:    "mypic",
		matched: "logs/pic/x.png",
		want:    "mypic",
	}, {
		name:    "trailing double star",
		pattern: "target/**/*",
		dest:    "",
		matched: "target/classes/com/acme/A.class",
		want:    "classes/com/acme",
	}, {
		name:    "no wildcard",
		pattern: "target/app.jar",
		dest:    "dist",
		matched: "target/app.jar",
		want:    "dist",
	}} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := artifacts.DestinationFor(tc.pattern, tc.dest, base, filepath.Join(base, filepath.FromSlash(tc.matched)))
			if err != nil {
				t.Fatalf("DestinationFor() = %v", err)
			}
			if got != tc.want {
				t.Errorf("DestinationFor(%q, %q, %q) = %q, want %q", tc.pattern, tc.dest, tc.matched, got, tc.want)
			}
		})
	}
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

func TestResolve(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, map[string]string{
		"x.png":          "root",
		"logs/pic/y.png": "nested",
		"logs/pic/y.txt": "other",
		"logs/a.png":     "shallow",
	})

	got, err := artifacts.Resolve(v1.NewArtifactPlan(v1.ArtifactPlanTypeFile, "**/*.png", "mypic"), base)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	want := []artifacts.UploadEntry{
		{Source: filepath.Join(base, "logs", "a.png"), Path: "logs/a.png", Destination: "mypic/logs"},
		{Source: filepath.Join(base, "logs", "pic", "y.png"), Path: "logs/pic/y.png", Destination: "mypic/logs/pic"},
		{Source: filepath.Join(base, "x.png"), Path: "x.png", Destination: "mypic"},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("Resolve() %s", diff.PrintWantGot(d))
	}
}

func TestResolve_Directory(t *testing.T) {
	base := t.TempDir()
	writeFiles(t, base, map[string]string{"test-reports/result.xml": "<testsuite/>"})

	got, err := artifacts.Resolve(v1.NewArtifactPlan(v1.ArtifactPlanTypeTest, "test-reports", "test-report-dest"), base)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	want := []artifacts.UploadEntry{{Source: filepath.Join(base, "test-reports"), Path: "test-reports", Destination: "test-report-dest"}}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("Resolve() %s", diff.PrintWantGot(d))
	}
}

func TestResolve_NoMatch(t *testing.T) {
	base := t.TempDir()
	for _, src := range []string{"something-not-there.txt", "build/**/*.jar"} {
		_, err := artifacts.Resolve(v1.NewArtifactPlan(v1.ArtifactPlanTypeFile, src, "dist"), base)
		var noMatch *artifacts.NoMatchError
		if !errors.As(err, &noMatch) {
			t.Fatalf("Resolve(%q) = %v, want a NoMatchError", src, err)
		}
		want := "The rule [" + src + "] cannot match any resource under [" + base + "]"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	}
}
