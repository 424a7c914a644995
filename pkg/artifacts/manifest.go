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
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magiconair/properties"
)

// ChecksumManifest maps artifact paths, relative to the root of a job's
// artifact store, to MD5 hex digests. It uses the properties file format:
// one `path=md5` line per file.
type ChecksumManifest struct {
	props *properties.Properties
}

// NewChecksumManifest returns an empty manifest.
func NewChecksumManifest() *ChecksumManifest {
	p := properties.NewProperties()
	p.DisableExpansion = true
	return &ChecksumManifest{props: p}
}

// ParseChecksumManifest reads a manifest in properties format.
func ParseChecksumManifest(data []byte) (*ChecksumManifest, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse checksum manifest: %w", err)
	}
	p.DisableExpansion = true
	return &ChecksumManifest{props: p}, nil
}

// ManifestKey normalizes an artifact path into a manifest key.
func ManifestKey(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// Get returns the digest recorded for an artifact path.
func (m *ChecksumManifest) Get(artifactPath string) (string, bool) {
	if m == nil {
		return "", false
	}
	return m.props.Get(ManifestKey(artifactPath))
}

// Set records the digest of an artifact path.
func (m *ChecksumManifest) Set(artifactPath, md5sum string) error {
	if _, _, err := m.props.Set(ManifestKey(artifactPath), md5sum); err != nil {
		return fmt.Errorf("failed to record checksum of %s: %w", artifactPath, err)
	}
	return nil
}

// Merge copies every entry of other into m.
func (m *ChecksumManifest) Merge(other *ChecksumManifest) error {
	for _, k := range other.Keys() {
		v, _ := other.props.Get(k)
		if err := m.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the artifact paths in sorted order.
func (m *ChecksumManifest) Keys() []string {
	if m == nil {
		return nil
	}
	keys := m.props.Keys()
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (m *ChecksumManifest) Len() int {
	if m == nil {
		return 0
	}
	return m.props.Len()
}

// Bytes renders the manifest with sorted keys.
func (m *ChecksumManifest) Bytes() []byte {
	sorted := properties.NewProperties()
	sorted.DisableExpansion = true
	sorted.WriteSeparator = "="
	for _, k := range m.Keys() {
		v, _ := m.props.Get(k)
		sorted.MustSet(k, v)
	}
	var buf bytes.Buffer
	// Writing to a bytes.Buffer cannot fail.
	_, _ = sorted.Write(&buf, properties.UTF8)
	return buf.Bytes()
}

// ComputeManifest digests every file below dir. Keys are the file's path
// relative to dir, prefixed with prefix.
func ComputeManifest(dir, prefix string) (*ChecksumManifest, error) {
	m := NewChecksumManifest()
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		sum, err := FileMD5(p)
		if err != nil {
			return err
		}
		return m.Set(path.Join(prefix, filepath.ToSlash(rel)), sum)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute checksums under %s: %w", dir, err)
	}
	return m, nil
}

// FileMD5 returns the MD5 hex digest of a file.
func FileMD5(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
