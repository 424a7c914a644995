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
	"path/filepath"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/buildcommand"
	"go.opentelemetry.io/otel/attribute"
	"knative.dev/pkg/logging"
)

// walker carries the traversal state of one build: the running label, the
// exported environment and where cancellation stands.
type walker struct {
	s       *Session
	console *console
	label   v1.RunIfStatus
	env     *environment

	// observed is set once a poll saw the cancel flag.
	observed bool
	// handled is set once a handler below the root ran.
	handled bool
	// polling is false while a cancel handler or a guard runs.
	polling bool
}

func newWalker(s *Session, c *console) *walker {
	return &walker{
		s:       s,
		console: c,
		label:   v1.RunIfPassed,
		env:     newEnvironment(s.baseEnv()),
		polling: true,
	}
}

// build walks root. Once cancellation was seen the root handler runs, after
// whichever inner handler took care of the interrupted node.
func (w *walker) build(ctx context.Context, root buildcommand.Command) v1.RunIfStatus {
	w.walk(ctx, root, 0, "")
	if w.observed {
		if h, ok := root.OnCancel(); ok {
			w.runHandler(ctx, h, root.WorkingDir())
		}
	}
	return w.label
}

// poll records a pending cancellation. It reports whether the walk must
// unwind.
func (w *walker) poll(ctx context.Context) bool {
	if w.observed {
		return true
	}
	if w.s.cancelRequested() {
		w.observed = true
		logging.FromContext(ctx).Info("Cancellation observed")
	}
	return w.observed
}

func (w *walker) walk(ctx context.Context, cmd buildcommand.Command, depth int, dir string) {
	if !cmd.RunIfConfig().Matches(w.label) {
		return
	}
	if cmd.WorkingDir() != "" {
		dir = cmd.WorkingDir()
	}
	if t, ok := cmd.Test(); ok && !w.guard(ctx, t, dir) {
		return
	}

	if cmd.Kind() == buildcommand.KindCompose {
		for _, child := range cmd.Children() {
			if w.polling && w.poll(ctx) {
				break
			}
			w.walk(ctx, child, depth+1, dir)
			if w.polling && w.observed {
				break
			}
		}
	} else {
		w.leaf(ctx, cmd, dir)
		if w.polling {
			w.poll(ctx)
		}
	}

	if w.polling && w.observed && !w.handled && depth > 0 {
		if h, ok := cmd.OnCancel(); ok {
			w.handled = true
			w.runHandler(ctx, h, dir)
		}
	}
}

// runHandler walks a cancel handler to completion. Handlers are not
// themselves interrupted.
func (w *walker) runHandler(ctx context.Context, h buildcommand.Command, dir string) {
	w.polling = false
	defer func() { w.polling = true }()
	w.walk(ctx, h, 0, dir)
}

// leaf executes one non-compose command and flips the label on failure.
func (w *walker) leaf(ctx context.Context, cmd buildcommand.Command, dir string) {
	ctx, span := w.s.tracer().Start(ctx, string(cmd.Kind()))
	defer span.End()

	if err := w.execute(ctx, cmd, w.console, dir); err != nil {
		w.console.Printf("%v", err)
		w.label = v1.RunIfFailed
		span.SetAttributes(attribute.Bool("failed", true))
		logging.FromContext(ctx).Debugw("Command failed", "kind", cmd.Kind(), "error", err)
	}
}

// guard evaluates a test command without touching the console or the
// running label.
func (w *walker) guard(ctx context.Context, t buildcommand.Command, dir string) bool {
	buf := &captureBuffer{}
	return w.execute(ctx, t, w.console.capture(buf), dir) == nil
}

// capture runs cmd with its output redirected and returns what it printed.
func (w *walker) capture(ctx context.Context, cmd buildcommand.Command, dir string) (string, error) {
	buf := &captureBuffer{}
	sub := &walker{
		s:       w.s,
		console: w.console.capture(buf),
		label:   v1.RunIfPassed,
		env:     w.env,
	}
	sub.walk(ctx, cmd, 0, dir)
	if err := sub.console.Flush(); err != nil {
		return "", err
	}
	if sub.label == v1.RunIfFailed {
		return buf.String(), errGuardCommandFailed
	}
	return buf.String(), nil
}

// resolve maps a path relative to the work root onto the filesystem.
func (w *walker) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(w.s.WorkRoot, filepath.FromSlash(p))
}
