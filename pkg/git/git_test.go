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

package git

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	logtesting "knative.dev/pkg/logging/testing"
)

func TestMain(m *testing.M) {
	// Serve file:// remotes in process so the tests do not need a git binary.
	client.InstallProtocol("file", server.NewClient(server.DefaultLoader))
	os.Exit(m.Run())
}

func TestValidateGitSSHURLFormat(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{url: "git@github.com:user/project.git", want: true},
		{url: "git@127.0.0.1:user/project.git", want: true},
		{url: "http://github.com/user/project.git", want: false},
		{url: "https://github.com/user/project.git", want: false},
		{url: "https://host.xz/path/to/repo.git/", want: false},
		{url: "ssh://user@host.xz:port/path/to/repo.git/", want: true},
		{url: "ssh://host.xz/path/to/repo.git/", want: true},
		{url: "/srv/git/project.git", want: false},
	}
	for _, tt := range tests {
		if got := validateGitSSHURLFormat(tt.url); got != tt.want {
			t.Errorf("validateGitSSHURLFormat(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

type origin struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() = %v", err)
	}
	return &origin{t: t, dir: dir, repo: repo}
}

func (o *origin) url() string {
	return filepath.Join(o.dir, ".git")
}

func (o *origin) commit(file, content string) plumbing.Hash {
	o.t.Helper()
	if err := os.WriteFile(filepath.Join(o.dir, file), []byte(content), 0o644); err != nil {
		o.t.Fatal(err)
	}
	wt, err := o.repo.Worktree()
	if err != nil {
		o.t.Fatal(err)
	}
	if _, err := wt.Add(file); err != nil {
		o.t.Fatal(err)
	}
	h, err := wt.Commit("update "+file, &gogit.CommitOptions{
		Author: &object.Signature{Name: "builder", Email: "builder@example.com", When: time.Now()},
	})
	if err != nil {
		o.t.Fatalf("Commit() = %v", err)
	}
	return h
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestUpdate_ClonesThenFetches(t *testing.T) {
	ctx := logtesting.TestContextWithLogger(t)
	src := newOrigin(t)
	first := src.commit("version.txt", "1")
	work := t.TempDir()
	u := &Updater{}

	var out bytes.Buffer
	m := v1.MaterialRevision{URL: src.url(), Revision: first.String(), Dest: "app"}
	if err := u.Update(ctx, work, m, &out); err != nil {
		t.Fatalf("Update() = %v", err)
	}
	if got := readFile(t, filepath.Join(work, "app", "version.txt")); got != "1" {
		t.Errorf("version.txt = %q, want 1", got)
	}
	if !bytes.Contains(out.Bytes(), []byte("Checked out "+src.url()+" at "+first.String())) {
		t.Errorf("missing checkout line in %q", out.String())
	}

	second := src.commit("version.txt", "2")
	m.Revision = second.String()
	if err := u.Update(ctx, work, m, &out); err != nil {
		t.Fatalf("second Update() = %v", err)
	}
	if got := readFile(t, filepath.Join(work, "app", "version.txt")); got != "2" {
		t.Errorf("version.txt = %q, want 2", got)
	}

	// Going back to an older revision works from the local history.
	m.Revision = first.String()
	if err := u.Update(ctx, work, m, &out); err != nil {
		t.Fatalf("third Update() = %v", err)
	}
	if got := readFile(t, filepath.Join(work, "app", "version.txt")); got != "1" {
		t.Errorf("version.txt = %q, want 1", got)
	}
}

func TestUpdate_Errors(t *testing.T) {
	ctx := logtesting.TestContextWithLogger(t)
	src := newOrigin(t)
	src.commit("a.txt", "a")

	for _, tc := range []struct {
		name string
		m    v1.MaterialRevision
	}{{
		name: "unsupported type",
		m:    v1.MaterialRevision{Type: "svn", URL: src.url(), Revision: "HEAD"},
	}, {
		name: "unknown revision",
		m:    v1.MaterialRevision{URL: src.url(), Revision: "0123456789012345678901234567890123456789", Dest: "x"},
	}, {
		name: "missing repository",
		m:    v1.MaterialRevision{URL: filepath.Join(t.TempDir(), "nothing"), Revision: "HEAD", Dest: "y"},
	}} {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := (&Updater{}).Update(ctx, t.TempDir(), tc.m, &out); err == nil {
				t.Error("Update() succeeded, want error")
			}
		})
	}
}
