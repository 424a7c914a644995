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

package buildsession

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/artifacts"
	"github.com/fleetci/pipeline/pkg/buildcommand"
	"github.com/fleetci/pipeline/pkg/substitution"
	"github.com/hashicorp/go-multierror"
	"k8s.io/apimachinery/pkg/util/sets"
	"knative.dev/pkg/logging"
)

var errGuardCommandFailed = errors.New("guard command failed")

// execute runs one non-compose command. dir is the command's working
// directory relative to the work root.
func (w *walker) execute(ctx context.Context, cmd buildcommand.Command, con *console, dir string) error {
	switch a := cmd.Args().(type) {
	case buildcommand.EchoArgs:
		vars := w.s.buildVariables()
		for _, line := range a.Lines {
			con.Printf("%s", substitution.ApplyReplacements(line, vars))
		}
		return nil
	case buildcommand.ExecArgs:
		return w.exec(ctx, a, con, dir)
	case buildcommand.ExportArgs:
		w.export(a, con)
		return nil
	case buildcommand.SecretArgs:
		con.AddSecret(a.Value, a.Substitution)
		return nil
	case buildcommand.UploadArgs:
		return w.upload(ctx, a, con, dir)
	case buildcommand.DownloadArgs:
		if cmd.Kind() == buildcommand.KindDownloadFile {
			return w.downloadFile(ctx, a, con, dir)
		}
		return w.downloadDir(ctx, a, con, dir)
	case buildcommand.GenerateReportArgs:
		return w.generateReport(ctx, a, con, dir)
	case buildcommand.GeneratePropertyArgs:
		w.generateProperty(ctx, a, con, dir)
		return nil
	case buildcommand.PathArgs:
		return mkdirs(w.resolve(a.Path))
	case buildcommand.CleandirArgs:
		return w.cleandir(a, con)
	case buildcommand.TestArgs:
		return w.test(ctx, a, dir)
	case buildcommand.FailArgs:
		return errors.New(a.Message)
	case buildcommand.ReportArgs:
		return w.report(ctx, cmd.Kind(), a, con)
	case buildcommand.CheckoutArgs:
		return w.checkout(ctx, a.Material, con, dir)
	}
	if cmd.Kind() == buildcommand.KindNoOp {
		return nil
	}
	return fmt.Errorf("unsupported command %q", cmd.Kind())
}

func (w *walker) exec(ctx context.Context, a buildcommand.ExecArgs, con *console, dir string) error {
	wd, err := filepath.Abs(w.resolve(dir))
	if err != nil {
		return err
	}
	if info, err := os.Stat(wd); err != nil || !info.IsDir() {
		return fmt.Errorf("Working directory %q is not a directory!", wd)
	}
	return w.s.runner().Run(ctx, Process{
		Name:   a.Command,
		Args:   a.Args,
		Dir:    wd,
		Env:    w.env.environ(),
		Stdout: con,
		Stderr: con,
	})
}

func (w *walker) export(a buildcommand.ExportArgs, con *console) {
	display := a.Value
	if a.Secure {
		display = secureValueDisplay
	}
	if w.env.set(a.Name, a.Value) {
		con.Printf("overriding environment variable '%s' with value '%s'", a.Name, display)
		return
	}
	con.Printf("setting environment variable '%s' to value '%s'", a.Name, display)
}

func (w *walker) upload(ctx context.Context, a buildcommand.UploadArgs, con *console, dir string) error {
	if w.s.Artifacts == nil {
		return fmt.Errorf("no artifact repository to upload [%s] to", a.Source)
	}
	baseDir := w.resolve(dir)
	entries, err := artifacts.Resolve(v1.NewArtifactPlan(v1.ArtifactPlanTypeFile, a.Source, a.Destination), baseDir)
	var noMatch *artifacts.NoMatchError
	if errors.As(err, &noMatch) && a.IgnoreUnmatch {
		con.Warnf("%v", err)
		return nil
	}

	var result *multierror.Error
	if err != nil {
		result = multierror.Append(result, err)
	}
	for _, e := range entries {
		dest := e.Destination
		if dest == "" {
			dest = "[defaultRoot]"
		}
		con.Printf("Uploading artifacts from %s to %s", e.Source, dest)
		if err := w.s.Artifacts.Upload(ctx, e); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to upload %s: %w", e.Source, err))
		}
	}
	if result.ErrorOrNil() == nil {
		return nil
	}
	for _, err := range result.Errors {
		con.Printf("%v", err)
	}
	return fmt.Errorf("Failed to upload [%s]", a.Source)
}

// fetchJob is the job whose store a download reads from.
func fetchJob(a buildcommand.DownloadArgs) (job, checksumJob string) {
	checksumJob = a.ChecksumURL
	if checksumJob == "" {
		checksumJob = a.URL
	}
	return a.URL, checksumJob
}

// fetchSource is the store path of a download with separators and
// trailing slashes normalized, so it lines up with manifest keys.
func fetchSource(a buildcommand.DownloadArgs) string {
	return artifacts.ManifestKey(strings.TrimSpace(a.Source))
}

func (w *walker) downloadDir(ctx context.Context, a buildcommand.DownloadArgs, con *console, dir string) error {
	if w.s.Artifacts == nil {
		return fmt.Errorf("no artifact repository to fetch [%s] from", a.Source)
	}
	job, checksumJob := fetchJob(a)
	source := fetchSource(a)
	manifest, err := w.s.Artifacts.ChecksumsFor(ctx, checksumJob)
	if err != nil {
		return fmt.Errorf("failed to fetch checksums of [%s]: %w", checksumJob, err)
	}
	rc, err := w.s.Artifacts.OpenDir(ctx, job, source)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact [%s]: %w", a.Source, err)
	}
	defer rc.Close()

	prefix := path.Dir(source)
	if prefix == "." || prefix == "/" {
		prefix = ""
	}
	dest := filepath.Join(w.resolve(dir), filepath.FromSlash(a.Destination))
	v := &artifacts.Verifier{Out: con}
	return v.Fetch(ctx, rc, prefix, dest, manifest)
}

func (w *walker) downloadFile(ctx context.Context, a buildcommand.DownloadArgs, con *console, dir string) error {
	if w.s.Artifacts == nil {
		return fmt.Errorf("no artifact repository to fetch [%s] from", a.Source)
	}
	job, checksumJob := fetchJob(a)
	source := fetchSource(a)
	manifest, err := w.s.Artifacts.ChecksumsFor(ctx, checksumJob)
	if err != nil {
		return fmt.Errorf("failed to fetch checksums of [%s]: %w", checksumJob, err)
	}
	rc, err := w.s.Artifacts.OpenFile(ctx, job, source)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact [%s]: %w", a.Source, err)
	}
	defer rc.Close()

	dest := filepath.Join(w.resolve(dir), filepath.FromSlash(a.Destination), path.Base(source))
	v := &artifacts.Verifier{Out: con}
	return v.FetchFile(ctx, rc, source, dest, manifest)
}

func (w *walker) generateReport(ctx context.Context, a buildcommand.GenerateReportArgs, con *console, dir string) error {
	if w.s.Artifacts == nil {
		return fmt.Errorf("no artifact repository to upload the test report to")
	}
	baseDir := w.resolve(dir)
	sources := make([]string, 0, len(a.Sources))
	for _, s := range a.Sources {
		sources = append(sources, filepath.Join(baseDir, filepath.FromSlash(s)))
	}
	report, err := artifacts.MergeTestReports(sources)
	if err != nil {
		return err
	}
	if len(report.Suites) == 0 {
		con.Printf("No test reports found under %v", a.Sources)
		return nil
	}

	tmp, err := os.MkdirTemp("", "test-report")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	index := filepath.Join(tmp, artifacts.TestReportIndex)
	f, err := os.Create(index)
	if err != nil {
		return err
	}
	if _, err := report.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := w.s.Artifacts.Upload(ctx, artifacts.UploadEntry{Source: index, Destination: a.UploadPath}); err != nil {
		return fmt.Errorf("failed to upload test report: %w", err)
	}

	props := report.Properties()
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.s.Artifacts.SetProperty(ctx, name, props[name]); err != nil {
			return err
		}
	}
	con.Printf("Merged %d test suites: %d tests, %d failures, %d ignored", len(report.Suites), report.Tests, report.Failures, report.Skipped)
	return nil
}

// generateProperty never fails the build; a property that cannot be read
// is reported and skipped.
func (w *walker) generateProperty(ctx context.Context, a buildcommand.GeneratePropertyArgs, con *console, dir string) {
	src := filepath.Join(w.resolve(dir), filepath.FromSlash(a.Source))
	f, err := os.Open(src)
	if err != nil {
		con.Warnf("Failed to create property %s: %s does not exist", a.Name, src)
		return
	}
	defer f.Close()
	value, err := artifacts.ExtractProperty(f, a.XPath)
	if err != nil {
		con.Warnf("Failed to create property %s with XPath [%s] on file [%s]: %v", a.Name, a.XPath, src, err)
		return
	}
	if w.s.Artifacts == nil {
		con.Warnf("Failed to create property %s: no artifact repository", a.Name)
		return
	}
	if err := w.s.Artifacts.SetProperty(ctx, a.Name, value); err != nil {
		con.Warnf("Failed to create property %s: %v", a.Name, err)
		return
	}
	con.Printf("Property %s = %s created.", a.Name, value)
}

func mkdirs(p string) error {
	if _, err := os.Stat(p); err == nil {
		return fmt.Errorf("Failed to create directory %q: it already exists", p)
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("Failed to create directory %q: %w", p, err)
	}
	return nil
}

// cleandir empties a directory, keeping the allowed paths and the
// directories leading to them.
func (w *walker) cleandir(a buildcommand.CleandirArgs, con *console) error {
	root, err := filepath.Abs(w.resolve(a.Path))
	if err != nil {
		return err
	}
	keep := sets.NewString()
	for _, p := range a.Allowed {
		p = strings.Trim(path.Clean(filepath.ToSlash(p)), "/")
		if p != "" && p != "." {
			keep.Insert(p)
		}
	}
	if keep.Len() == 0 {
		con.Printf("Cleaning working directory %q since stage is configured to clean working directory", root)
	} else {
		con.Printf("Cleaning working directory %q since stage is configured to clean working directory, keeping %v", root, keep.List())
	}
	return cleanBelow(root, "", keep)
}

func cleanBelow(dir, rel string, keep sets.String) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to clean %s: %w", dir, err)
	}
	for _, e := range entries {
		name := path.Join(rel, e.Name())
		p := filepath.Join(dir, e.Name())
		switch {
		case keep.Has(name):
			continue
		case e.IsDir() && hasDescendant(keep, name):
			if err := cleanBelow(p, name, keep); err != nil {
				return err
			}
		default:
			if err := os.RemoveAll(p); err != nil {
				return fmt.Errorf("failed to clean %s: %w", p, err)
			}
		}
	}
	return nil
}

func hasDescendant(keep sets.String, dir string) bool {
	for p := range keep {
		if strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

// test evaluates a guard predicate; a nil error means the guard holds.
func (w *walker) test(ctx context.Context, a buildcommand.TestArgs, dir string) error {
	switch a.Flag {
	case buildcommand.TestDirExists, buildcommand.TestDirNotExists,
		buildcommand.TestFileExists, buildcommand.TestFileNotExists:
		info, err := os.Stat(w.resolve(a.Operand))
		isDir := err == nil && info.IsDir()
		isFile := err == nil && !info.IsDir()
		holds := map[buildcommand.TestFlag]bool{
			buildcommand.TestDirExists:     isDir,
			buildcommand.TestDirNotExists:  !isDir,
			buildcommand.TestFileExists:    isFile,
			buildcommand.TestFileNotExists: !isFile,
		}[a.Flag]
		if !holds {
			return fmt.Errorf("test %s %s does not hold", a.Flag, a.Operand)
		}
		return nil
	case buildcommand.TestOutputEquals, buildcommand.TestOutputNotEquals:
		if a.Command == nil {
			return fmt.Errorf("test %s needs a command", a.Flag)
		}
		out, err := w.capture(ctx, *a.Command, dir)
		if err != nil {
			return err
		}
		equal := strings.TrimSpace(out) == a.Operand
		if equal != (a.Flag == buildcommand.TestOutputEquals) {
			return fmt.Errorf("test %s %q does not hold", a.Flag, a.Operand)
		}
		return nil
	}
	return fmt.Errorf("unknown test flag %q", a.Flag)
}

func (w *walker) report(ctx context.Context, kind buildcommand.Kind, a buildcommand.ReportArgs, con *console) error {
	logger := logging.FromContext(ctx)
	r := w.s.Reporter
	switch kind {
	case buildcommand.KindReportStatus:
		logger.Infow("Job state changed", "state", a.State)
		if r == nil {
			return nil
		}
		return r.ReportCurrentStatus(ctx, a.State)
	case buildcommand.KindReportCompleting:
		if r == nil {
			return nil
		}
		return r.ReportCompleting(ctx, w.s.result(w.label))
	case buildcommand.KindReportCompleted:
		result, first := w.s.complete(w.label)
		if !first {
			return nil
		}
		if a.Message != "" {
			con.Printf("%s", substitution.ApplyReplacements(a.Message, w.s.buildVariables()))
		}
		logger.Infow("Job completed", "result", result)
		if r == nil {
			return nil
		}
		return r.ReportCompleted(ctx, result)
	}
	return fmt.Errorf("unsupported report %q", kind)
}

func (w *walker) checkout(ctx context.Context, m v1.MaterialRevision, con *console, dir string) error {
	if w.s.Materials == nil {
		return fmt.Errorf("no updater for %s material %s", m.Type, m.URL)
	}
	con.Printf("Start updating %s at revision %s from %s", m.Dest, m.Revision, m.URL)
	return w.s.Materials.Update(ctx, w.resolve(dir), m, con)
}
