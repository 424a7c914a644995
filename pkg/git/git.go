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

// Package git brings git materials to their assigned revision.
package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"knative.dev/pkg/logging"
)

// MaterialType is the material type handled by Updater. An empty type is
// treated as git.
const MaterialType = "git"

// sshURLRegexFormat matches the url of SSH git repository
var sshURLRegexFormat = regexp.MustCompile(`(ssh://[\w\d\.]+|.+@?.+\..+:)(:[\d]+){0,1}/*(.*)`)

// Updater clones a material on first use, fetches it afterwards and checks
// out the assigned revision with a detached HEAD.
type Updater struct {
	// Auth is used for every remote operation; nil means anonymous.
	Auth transport.AuthMethod
}

// Update brings m to its revision under workDir/m.Dest, writing progress to
// out.
func (u *Updater) Update(ctx context.Context, workDir string, m v1.MaterialRevision, out io.Writer) error {
	logger := logging.FromContext(ctx)
	if m.Type != "" && m.Type != MaterialType {
		return fmt.Errorf("unsupported material type %q", m.Type)
	}
	url := strings.TrimSpace(m.URL)
	if validateGitSSHURLFormat(url) && u.Auth == nil {
		fmt.Fprintf(out, "[WARN] No SSH credentials configured for %s\n", url)
	}
	dir := filepath.Join(workDir, m.Dest)

	repo, err := gogit.PlainOpen(dir)
	switch {
	case errors.Is(err, gogit.ErrRepositoryNotExists):
		logger.Debugw("Cloning material", "url", url, "dir", dir)
		repo, err = gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
			URL:        url,
			Auth:       u.Auth,
			Progress:   out,
			NoCheckout: true,
		})
		if err != nil {
			return fmt.Errorf("failed to clone %s: %w", url, err)
		}
	case err != nil:
		return fmt.Errorf("failed to open %s: %w", dir, err)
	default:
		logger.Debugw("Fetching material", "url", url, "dir", dir)
		err = repo.FetchContext(ctx, &gogit.FetchOptions{
			Auth:     u.Auth,
			Progress: out,
			Force:    true,
			Tags:     gogit.AllTags,
		})
		if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to fetch %s: %w", url, err)
		}
	}

	hash, err := resolve(repo, m.Revision)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", m.Revision, err)
	}
	fmt.Fprintf(out, "Checked out %s at %s\n", url, hash)
	return nil
}

// resolve finds revision as given, then as a branch of origin.
func resolve(repo *gogit.Repository, revision string) (*plumbing.Hash, error) {
	if revision == "" {
		revision = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err == nil {
		return hash, nil
	}
	if remote, rerr := repo.ResolveRevision(plumbing.Revision("origin/" + revision)); rerr == nil {
		return remote, nil
	}
	return nil, fmt.Errorf("unknown revision %s: %w", revision, err)
}

func validateGitSSHURLFormat(url string) bool {
	return sshURLRegexFormat.MatchString(url)
}
