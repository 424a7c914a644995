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

package artifacts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"knative.dev/pkg/logging"
)

// ChecksumMismatchError aborts a fetch when a file does not match the digest
// recorded for it on the server.
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("Verification of the integrity of the artifact [%s] failed: expected md5 %s, got %s", e.Path, e.Expected, e.Actual)
}

// Verifier saves fetched artifacts and checks them against a checksum
// manifest, reporting to Out.
type Verifier struct {
	Out io.Writer
}

// fetchReport collects the per-file verification state of one fetch.
type fetchReport struct {
	out        io.Writer
	manifest   *ChecksumManifest
	unverified bool
}

// check compares the digest of one saved file with the manifest.
func (r *fetchReport) check(key, sum string) error {
	if r.manifest == nil {
		r.unverified = true
		return nil
	}
	expected, ok := r.manifest.Get(key)
	if !ok {
		fmt.Fprintf(r.out, "[WARN] The md5checksum value of the artifact [%s] was not found on the server. Hence, Go could not verify the integrity of its contents.\n", key)
		r.unverified = true
		return nil
	}
	if expected != sum {
		fmt.Fprintf(r.out, "[ERROR] Verification of the integrity of the artifact [%s] failed. The artifact file on the server may have changed since its original upload.\n", key)
		return &ChecksumMismatchError{Path: key, Expected: expected, Actual: sum}
	}
	return nil
}

func (r *fetchReport) done(dest string) {
	if r.unverified {
		fmt.Fprintf(r.out, "Saved artifact to [%s] without verifying the integrity of its contents.\n", dest)
		return
	}
	fmt.Fprintf(r.out, "Saved artifact to [%s] after verifying the integrity of its contents.\n", dest)
}

// Fetch unpacks a zip stream below destRoot. Each file is checked against
// manifest under the key <sourcePrefix>/<path in archive>; a nil manifest
// skips verification. A mismatch stops the fetch; files already saved stay
// on disk.
func (v *Verifier) Fetch(ctx context.Context, archive io.Reader, sourcePrefix, destRoot string, manifest *ChecksumManifest) error {
	logger := logging.FromContext(ctx)
	entries, cleanup, err := openArchive(archive)
	if err != nil {
		return err
	}
	defer cleanup()

	report := &fetchReport{out: v.Out, manifest: manifest}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := md5.New()
		if _, err := extractEntry(e, destRoot, h); err != nil {
			return err
		}
		key := ManifestKey(path.Join(sourcePrefix, e.name))
		if err := report.check(key, hex.EncodeToString(h.Sum(nil))); err != nil {
			logger.Errorw("Artifact failed verification", "artifact", key, "error", err)
			return err
		}
	}
	report.done(destRoot)
	logger.Debugw("Saved artifact", "source", sourcePrefix, "destination", destRoot, "files", len(entries), "verified", !report.unverified)
	return nil
}

// FetchFile saves a single artifact file to dest, checked against manifest
// under the key sourcePath.
func (v *Verifier) FetchFile(ctx context.Context, r io.Reader, sourcePath, dest string, manifest *ChecksumManifest) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(out, h), r); err != nil {
		out.Close()
		return fmt.Errorf("failed to save %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	report := &fetchReport{out: v.Out, manifest: manifest}
	key := ManifestKey(sourcePath)
	if err := report.check(key, hex.EncodeToString(h.Sum(nil))); err != nil {
		logging.FromContext(ctx).Errorw("Artifact failed verification", "artifact", key, "error", err)
		return err
	}
	report.done(dest)
	return nil
}
