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
	"fmt"
	"io"
	"strings"
)

// xpathStep is one location step of the supported XPath subset.
type xpathStep struct {
	name       string
	descendant bool
}

// xpathQuery is a parsed path such as `//artifact/@src` or `/a/b/text()`.
type xpathQuery struct {
	steps []xpathStep
	attr  string
}

func parseXPath(expr string) (xpathQuery, error) {
	var q xpathQuery
	rest := strings.TrimSpace(expr)
	if !strings.HasPrefix(rest, "/") {
		return q, fmt.Errorf("unsupported xpath %q: must start with /", expr)
	}
	for rest != "" {
		descendant := strings.HasPrefix(rest, "//")
		rest = strings.TrimLeft(rest, "/")
		seg := rest
		if i := strings.Index(rest, "/"); i >= 0 {
			seg, rest = rest[:i], rest[i:]
		} else {
			rest = ""
		}
		switch {
		case seg == "":
			return q, fmt.Errorf("unsupported xpath %q: empty step", expr)
		case strings.HasPrefix(seg, "@"):
			if rest != "" {
				return q, fmt.Errorf("unsupported xpath %q: attribute must be the last step", expr)
			}
			q.attr = seg[1:]
		case seg == "text()":
			if rest != "" {
				return q, fmt.Errorf("unsupported xpath %q: text() must be the last step", expr)
			}
		case strings.ContainsAny(seg, "[]()"):
			return q, fmt.Errorf("unsupported xpath %q: predicates and functions are not supported", expr)
		default:
			q.steps = append(q.steps, xpathStep{name: seg, descendant: descendant})
		}
	}
	if len(q.steps) == 0 {
		return q, fmt.Errorf("unsupported xpath %q: no element step", expr)
	}
	return q, nil
}

// matches reports whether the open element path satisfies the steps.
func (q xpathQuery) matches(stack []string) bool {
	var match func(si, pi int) bool
	match = func(si, pi int) bool {
		if pi == len(q.steps) {
			return si == len(stack)
		}
		step := q.steps[pi]
		if !step.descendant {
			return si < len(stack) && (step.name == "*" || step.name == stack[si]) && match(si+1, pi+1)
		}
		for i := si; i < len(stack); i++ {
			if (step.name == "*" || step.name == stack[i]) && match(i+1, pi+1) {
				return true
			}
		}
		return false
	}
	return match(0, 0)
}

// ExtractProperty evaluates a simple XPath against an XML document and
// returns the first match: an attribute value when the path ends in `@name`,
// otherwise the trimmed text of the element.
func ExtractProperty(r io.Reader, expr string) (string, error) {
	q, err := parseXPath(expr)
	if err != nil {
		return "", err
	}
	d := xml.NewDecoder(r)
	var stack []string
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", fmt.Errorf("xpath %q matched nothing", expr)
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			if !q.matches(stack) {
				continue
			}
			if q.attr == "" {
				return elementText(d)
			}
			for _, a := range t.Attr {
				if a.Name.Local == q.attr {
					return a.Value, nil
				}
			}
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
}

func elementText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
