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
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// WriteArchive zips src into w. A directory is stored with its own name as
// the top-level entry when includeRoot is set; a file is always stored under
// its base name.
func WriteArchive(w io.Writer, src string, includeRoot bool) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	if !info.IsDir() {
		if err := addFile(zw, src, filepath.Base(src), info); err != nil {
			return err
		}
		return zw.Close()
	}

	prefix := ""
	if includeRoot {
		prefix = filepath.Base(src)
	}
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return addFile(zw, p, path.Join(prefix, filepath.ToSlash(rel)), fi)
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", src, err)
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, p, name string, info fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	out, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(out, f)
	return err
}

// archiveEntry is one regular file of an archive opened for extraction.
type archiveEntry struct {
	name string
	file *zip.File
}

// openArchive spools the stream to a temporary file so it can be read as a
// zip. The returned cleanup closes and removes it.
func openArchive(r io.Reader) ([]archiveEntry, func(), error) {
	tmp, err := os.CreateTemp("", "artifact-*.zip")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	size, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to receive archive: %w", err)
	}
	zr, err := zip.NewReader(tmp, size)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to read archive: %w", err)
	}
	var entries []archiveEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := safeEntryName(f.Name)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		entries = append(entries, archiveEntry{name: name, file: f})
	}
	return entries, cleanup, nil
}

func safeEntryName(name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	if clean == "/" {
		return "", fmt.Errorf("archive entry %q has no name", name)
	}
	return strings.TrimPrefix(clean, "/"), nil
}

// ExtractArchive unpacks every file of the stream below dest.
func ExtractArchive(r io.Reader, dest string) error {
	entries, cleanup, err := openArchive(r)
	if err != nil {
		return err
	}
	defer cleanup()
	for _, e := range entries {
		if _, err := extractEntry(e, dest, io.Discard); err != nil {
			return err
		}
	}
	return nil
}

// extractEntry writes one entry below dest and tees its content into sink.
func extractEntry(e archiveEntry, dest string, sink io.Writer) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(e.name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	in, err := e.file.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(io.MultiWriter(out, sink), in); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to extract %s: %w", e.name, err)
	}
	return target, out.Close()
}
