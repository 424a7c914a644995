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

package buildcommand

import (
	"fmt"
	"strings"
)

// Dump renders the tree one node per line, children indented by two spaces.
// Secret values are never printed.
func (c Command) Dump() string {
	var b strings.Builder
	c.dump(&b, 0)
	return b.String()
}

func (c Command) String() string {
	return strings.TrimSpace(c.headline())
}

func (c Command) dump(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString(c.headline())
	b.WriteByte('\n')
	if c.test != nil {
		fmt.Fprintf(b, "%s  test:\n", indent)
		c.test.dump(b, depth+2)
	}
	for _, child := range c.children {
		child.dump(b, depth+1)
	}
	if c.onCancel != nil {
		fmt.Fprintf(b, "%s  onCancel:\n", indent)
		c.onCancel.dump(b, depth+2)
	}
}

func (c Command) headline() string {
	parts := []string{string(c.kind)}
	if a := describeArgs(c.args); a != "" {
		parts = append(parts, a)
	}
	if len(c.runIf) > 0 {
		parts = append(parts, "runIf="+c.runIf.String())
	}
	if c.workingDir != "" {
		parts = append(parts, fmt.Sprintf("in=%q", c.workingDir))
	}
	return strings.Join(parts, " ")
}

func describeArgs(a Args) string {
	switch a := a.(type) {
	case EchoArgs:
		return quoteAll(a.Lines)
	case ExecArgs:
		return quoteAll(append([]string{a.Command}, a.Args...))
	case ExportArgs:
		v := a.Value
		if a.Secure {
			v = "********"
		}
		return fmt.Sprintf("%s=%q", a.Name, v)
	case SecretArgs:
		return "******"
	case UploadArgs:
		s := fmt.Sprintf("%q -> %q", a.Source, a.Destination)
		if a.IgnoreUnmatch {
			s += " ignoreUnmatch"
		}
		return s
	case DownloadArgs:
		return fmt.Sprintf("%q -> %q", a.Source, a.Destination)
	case GenerateReportArgs:
		return fmt.Sprintf("%s -> %q", quoteAll(a.Sources), a.UploadPath)
	case GeneratePropertyArgs:
		return fmt.Sprintf("%s=%q xpath=%q", a.Name, a.Source, a.XPath)
	case PathArgs:
		return fmt.Sprintf("%q", a.Path)
	case CleandirArgs:
		if len(a.Allowed) == 0 {
			return fmt.Sprintf("%q", a.Path)
		}
		return fmt.Sprintf("%q allowed=%s", a.Path, quoteAll(a.Allowed))
	case TestArgs:
		if a.Command != nil {
			return fmt.Sprintf("%s %q (%s)", a.Flag, a.Operand, a.Command.String())
		}
		return fmt.Sprintf("%s %q", a.Flag, a.Operand)
	case FailArgs:
		return fmt.Sprintf("%q", a.Message)
	case ReportArgs:
		if a.Message != "" {
			return fmt.Sprintf("%s %q", a.State, a.Message)
		}
		return string(a.State)
	case CheckoutArgs:
		return fmt.Sprintf("%s@%s", a.Material.URL, a.Material.Revision)
	}
	return ""
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, " ")
}
