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
	"io"
	"os/exec"
	"strings"
)

// Process describes one process a task starts.
type Process struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

func (p Process) String() string {
	return strings.TrimSpace(p.Name + " " + strings.Join(p.Args, " "))
}

// Runner starts processes for exec tasks.
type Runner interface {
	Run(ctx context.Context, p Process) error
}

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("Command [%s] exited with code %d", e.Command, e.Code)
}

// StartError reports a process that could not be started.
type StartError struct {
	Name    string
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("Error happened while attempting to execute '%s'. Please make sure [%s] can be executed on this agent.", e.Command, e.Name)
}

func (e *StartError) Unwrap() error { return e.Err }

// RealRunner actually runs commands.
type RealRunner struct{}

var _ Runner = (*RealRunner)(nil)

// Run starts the process in its own process group and waits for it.
func (r *RealRunner) Run(ctx context.Context, p Process) error {
	cmd := exec.CommandContext(ctx, p.Name, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = p.Env
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return &StartError{Name: p.Name, Command: p.String(), Err: err}
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: p.String(), Code: exitErr.ExitCode()}
		}
		return err
	}
	return nil
}
