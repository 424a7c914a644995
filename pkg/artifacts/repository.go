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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/magiconair/properties"
	"knative.dev/pkg/logging"
)

const (
	// MetadataDir holds the checksum manifest and build properties of a job.
	MetadataDir = "cruise-output"
	// ChecksumFile is the manifest file name inside MetadataDir.
	ChecksumFile = "md5.checksum"
	// PropertiesFile is the build properties file name inside MetadataDir.
	PropertiesFile = "properties"
)

// PublishedRecord is one published file. Source is its path relative to the
// job working directory and Destination the store directory holding it.
type PublishedRecord struct {
	Source      string
	Destination string
}

// LocalRepository is a directory-backed artifact store. Each job owns the
// directory <root>/<build locator>.
type LocalRepository struct {
	root string
	job  v1.JobIdentifier

	mu         sync.Mutex
	manifest   *ChecksumManifest
	properties *properties.Properties
	published  []PublishedRecord
}

// NewLocalRepository opens the store of job below root, loading any
// manifest and properties written by earlier uploads.
func NewLocalRepository(root string, job v1.JobIdentifier) (*LocalRepository, error) {
	r := &LocalRepository{root: root, job: job}
	m, err := r.loadManifest(job.BuildLocator())
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = NewChecksumManifest()
	}
	r.manifest = m

	props := properties.NewProperties()
	props.DisableExpansion = true
	data, err := os.ReadFile(r.metadataPath(job.BuildLocator(), PropertiesFile))
	switch {
	case err == nil:
		l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
		if props, err = l.LoadBytes(data); err != nil {
			return nil, fmt.Errorf("failed to load build properties: %w", err)
		}
		props.DisableExpansion = true
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	r.properties = props
	return r, nil
}

func (r *LocalRepository) jobDir(job string) string {
	if job == "" {
		job = r.job.BuildLocator()
	}
	return filepath.Join(r.root, filepath.FromSlash(job))
}

func (r *LocalRepository) metadataPath(job, name string) string {
	return filepath.Join(r.jobDir(job), MetadataDir, name)
}

// Upload publishes the file or directory e.Source under e.Destination. It is
// transferred as a zip stream and the checksums of every stored file are
// added to the job's manifest. One record per file is kept; an entry
// without a Path is recorded under the base name of its source.
func (r *LocalRepository) Upload(ctx context.Context, e UploadEntry) error {
	src, dest := e.Source, e.Destination
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	target := filepath.Join(r.jobDir(""), filepath.FromSlash(dest))

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(WriteArchive(pw, src, true))
	}()
	if err := ExtractArchive(pr, target); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("failed to upload %s: %w", src, err)
	}

	name := filepath.Base(src)
	logical := path.Join(dest, name)
	source := e.Path
	if source == "" {
		source = name
	}
	var uploaded *ChecksumManifest
	var records []PublishedRecord
	if info.IsDir() {
		if uploaded, err = ComputeManifest(filepath.Join(target, name), logical); err != nil {
			return err
		}
		for _, key := range uploaded.Keys() {
			rel := strings.TrimPrefix(key, ManifestKey(logical)+"/")
			records = append(records, PublishedRecord{
				Source:      path.Join(source, rel),
				Destination: ManifestKey(path.Dir(path.Join(logical, rel))),
			})
		}
	} else {
		sum, err := FileMD5(filepath.Join(target, name))
		if err != nil {
			return err
		}
		uploaded = NewChecksumManifest()
		if err := uploaded.Set(logical, sum); err != nil {
			return err
		}
		records = append(records, PublishedRecord{Source: source, Destination: dest})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.manifest.Merge(uploaded); err != nil {
		return err
	}
	if err := writeMetadata(r.metadataPath("", ChecksumFile), r.manifest.Bytes()); err != nil {
		return err
	}
	r.published = append(r.published, records...)
	logging.FromContext(ctx).Debugw("Uploaded artifact", "source", source, "destination", dest, "files", uploaded.Len())
	return nil
}

// SetProperty records a build property of the job.
func (r *LocalRepository) SetProperty(ctx context.Context, name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, _, err := r.properties.Set(name, value); err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := r.properties.Write(&buf, properties.UTF8); err != nil {
		return err
	}
	return writeMetadata(r.metadataPath("", PropertiesFile), buf.Bytes())
}

// Property returns a build property of the job.
func (r *LocalRepository) Property(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.properties.Get(name)
}

// Published lists the uploads of this repository in order.
func (r *LocalRepository) Published() []PublishedRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PublishedRecord(nil), r.published...)
}

// Manifest returns a copy of the job's checksum manifest.
func (r *LocalRepository) Manifest() *ChecksumManifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := NewChecksumManifest()
	// Merging into an empty manifest with expansion disabled cannot fail.
	_ = m.Merge(r.manifest)
	return m
}

// ChecksumsFor loads the manifest of a job, or returns nil when the job has
// none. An empty job means this repository's job.
func (r *LocalRepository) ChecksumsFor(ctx context.Context, job string) (*ChecksumManifest, error) {
	return r.loadManifest(job)
}

func (r *LocalRepository) loadManifest(job string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(r.metadataPath(job, ChecksumFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseChecksumManifest(data)
}

// OpenDir streams a published directory of job as a zip whose entries are
// rooted at the directory's own name.
func (r *LocalRepository) OpenDir(ctx context.Context, job, source string) (io.ReadCloser, error) {
	dir := filepath.Join(r.jobDir(job), filepath.FromSlash(source))
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact [%s] is not a directory", source)
	}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(WriteArchive(pw, dir, true))
	}()
	return pr, nil
}

// OpenFile opens a published file of job.
func (r *LocalRepository) OpenFile(ctx context.Context, job, source string) (io.ReadCloser, error) {
	p := filepath.Join(r.jobDir(job), filepath.FromSlash(source))
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("artifact [%s] is a directory", source)
	}
	return os.Open(p)
}

func writeMetadata(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}
