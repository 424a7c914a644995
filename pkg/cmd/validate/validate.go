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

// Package validate implements the command that checks job assignments.
package validate

import (
	"fmt"
	"os"

	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/cli"
	"github.com/fleetci/pipeline/pkg/composer"
	"github.com/spf13/cobra"
)

type validateOptions struct {
	stream *cli.Stream
	tree   bool
}

// Command returns the validate command
func Command(p cli.Params) *cobra.Command {
	o := &validateOptions{}
	eg := `
# Check that a job assignment can be built
agent validate job.yaml

# Print the commands the agent would run
agent validate --tree job.yaml
`
	c := &cobra.Command{
		Use:          "validate ASSIGNMENT...",
		Short:        "Check job assignments without running them",
		Example:      eg,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		Annotations: map[string]string{
			"commandType": "main",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			o.stream = &cli.Stream{
				Out: cmd.OutOrStdout(),
				Err: cmd.OutOrStderr(),
			}
			return o.validate(cmd, args)
		},
	}
	c.Flags().BoolVarP(&o.tree, "tree", "t", false, "print the command tree of each assignment")
	return c
}

func (o *validateOptions) validate(cmd *cobra.Command, files []string) error {
	invalid := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		a, err := v1.ParseJobAssignment(data)
		if err != nil {
			fmt.Fprintf(o.stream.Err, "%s: %v\n", f, err)
			invalid++
			continue
		}
		root, err := composer.Compose(cmd.Context(), a)
		if err != nil {
			fmt.Fprintf(o.stream.Err, "%s: %v\n", f, err)
			invalid++
			continue
		}
		fmt.Fprintf(o.stream.Out, "%s: %s is valid\n", f, a.BuildLocatorForDisplay())
		if o.tree {
			fmt.Fprint(o.stream.Out, root.Dump())
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d assignments are invalid", invalid, len(files))
	}
	return nil
}
