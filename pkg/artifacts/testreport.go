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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Build property names written from a merged test report.
const (
	TotalTestCountProperty   = "tests_total_count"
	FailedTestCountProperty  = "tests_failed_count"
	IgnoredTestCountProperty = "tests_ignored_count"
	TestDurationProperty     = "tests_total_duration"
)

// TestReportIndex is the file name of a merged report.
const TestReportIndex = "index.xml"

// TestReport is the merge of every JUnit report found in a set of sources.
type TestReport struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []JUnitSuite `xml:"testsuite"`
}

// JUnitSuite is one <testsuite> element.
type JUnitSuite struct {
	Name     string      `xml:"name,attr,omitempty"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     string      `xml:"time,attr,omitempty"`
	Cases    []JUnitCase `xml:"testcase"`
}

// JUnitCase is one <testcase> element.
type JUnitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr,omitempty"`
	Time      string        `xml:"time,attr,omitempty"`
	Failure   *JUnitProblem `xml:"failure,omitempty"`
	Error     *JUnitProblem `xml:"error,omitempty"`
	Skipped   *JUnitProblem `xml:"skipped,omitempty"`
}

// JUnitProblem is a failure, error or skip marker.
type JUnitProblem struct {
	Message string `xml:"message,attr,omitempty"`
	Text    string `xml:",chardata"`
}

type junitSuites struct {
	Suites []JUnitSuite `xml:"testsuite"`
}

// MergeTestReports reads every *.xml file below sources and merges the JUnit
// suites they contain. Files that are not JUnit reports are ignored.
func MergeTestReports(sources []string) (*TestReport, error) {
	files, err := collectXML(sources)
	if err != nil {
		return nil, err
	}
	report := &TestReport{}
	duration, timed := 0.0, false
	for _, f := range files {
		suites, err := readSuites(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read test report %s: %w", f, err)
		}
		for _, s := range suites {
			s.normalize()
			report.Suites = append(report.Suites, s)
			report.Tests += s.Tests
			report.Failures += s.Failures + s.Errors
			report.Skipped += s.Skipped
			if d, err := strconv.ParseFloat(s.Time, 64); err == nil {
				duration += d
				timed = true
			}
		}
	}
	report.Time = "NaN"
	if timed {
		report.Time = strconv.FormatFloat(duration, 'f', 3, 64)
	}
	return report, nil
}

// Properties returns the build properties derived from the report.
func (r *TestReport) Properties() map[string]string {
	return map[string]string{
		TotalTestCountProperty:   strconv.Itoa(r.Tests),
		FailedTestCountProperty:  strconv.Itoa(r.Failures),
		IgnoredTestCountProperty: strconv.Itoa(r.Skipped),
		TestDurationProperty:     r.Time,
	}
}

// WriteTo renders the merged report as XML.
func (r *TestReport) WriteTo(w io.Writer) (int64, error) {
	data, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, xml.Header+string(data)+"\n")
	return int64(n), err
}

// normalize fills counters a report left out from its test cases.
func (s *JUnitSuite) normalize() {
	if s.Tests == 0 {
		s.Tests = len(s.Cases)
	}
	if s.Failures == 0 && s.Errors == 0 {
		for _, c := range s.Cases {
			switch {
			case c.Failure != nil:
				s.Failures++
			case c.Error != nil:
				s.Errors++
			}
		}
	}
	if s.Skipped == 0 {
		for _, c := range s.Cases {
			if c.Skipped != nil {
				s.Skipped++
			}
		}
	}
}

func readSuites(p string) ([]JUnitSuite, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := xml.NewDecoder(f)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "testsuites":
			var all junitSuites
			if err := d.DecodeElement(&all, &start); err != nil {
				return nil, err
			}
			return all.Suites, nil
		case "testsuite":
			var s JUnitSuite
			if err := d.DecodeElement(&s, &start); err != nil {
				return nil, err
			}
			return []JUnitSuite{s}, nil
		default:
			return nil, nil
		}
	}
}

func collectXML(sources []string) ([]string, error) {
	var files []string
	for _, src := range sources {
		err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".xml") {
				files = append(files, p)
			}
			return nil
		})
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
