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

// Package run implements the command that executes job assignments.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fleetci/pipeline/pkg/apis/config"
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/artifacts"
	"github.com/fleetci/pipeline/pkg/buildsession"
	"github.com/fleetci/pipeline/pkg/cli"
	"github.com/fleetci/pipeline/pkg/git"
	"github.com/fleetci/pipeline/pkg/logging"
	"github.com/fleetci/pipeline/pkg/reconciler/events/cache"
	"github.com/fleetci/pipeline/pkg/reconciler/events/cloudevent"
	"github.com/fleetci/pipeline/pkg/reconciler/stage"
	"github.com/fleetci/pipeline/pkg/termination"
	"github.com/fleetci/pipeline/pkg/tracing"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	knativelogging "knative.dev/pkg/logging"
)

// TracerName names the tracer of job runs.
const TracerName = "fleetci.dev/agent"

type runOptions struct {
	stream *cli.Stream
	params cli.Params
	// runner starts processes; nil runs them for real.
	runner  buildsession.Runner
	signals []os.Signal
	// outcomesPath receives the outcome of every job that ran.
	outcomesPath string
}

// Command returns the run command
func Command(p cli.Params) *cobra.Command {
	o := &runOptions{
		params:  p,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	eg := `
# Run a job assignment with the configuration in /etc/fleetci/agent.yaml
agent run -c /etc/fleetci/agent.yaml job.yaml

# Run the jobs of a stage one after another
agent run build-linux.yaml build-windows.yaml
`
	c := &cobra.Command{
		Use:          "run ASSIGNMENT...",
		Short:        "Run job assignments and report the stage verdict",
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
			return o.run(cmd.Context(), args)
		},
	}
	c.Flags().StringVar(&o.outcomesPath, "outcomes", "", "append the outcome of each job as JSON to this file")
	return c
}

func (o *runOptions) run(ctx context.Context, files []string) error {
	cfg, err := o.params.Config()
	if err != nil {
		return err
	}
	assignments, err := loadAssignments(files)
	if err != nil {
		return err
	}

	logger, _ := logging.NewLoggerFromConfig(cfg)
	defer func() { _ = logger.Sync() }()
	logger = logger.With("agent", cfg.Agent.ID)
	ctx = knativelogging.WithLogger(ctx, logger)

	tp := tracing.New(cfg.Tracing.Service, logger)
	tp.Configure(&cfg.Tracing)
	defer tp.Shutdown(context.Background())

	ctx = cache.WithCacheClient(ctx, cfg.Events.CacheSize)
	if cfg.Events.Sink != "" {
		ctx = cloudevent.WithCloudEventClient(ctx)
	}

	agg := stage.NewAggregator(ctx)
	defer agg.Close()

	sigCtx, stop := signal.NotifyContext(ctx, o.signals...)
	defer stop()

	var stages []string
	seen := map[string]bool{}
	for _, a := range assignments {
		if sigCtx.Err() != nil {
			fmt.Fprintf(o.stream.Err, "Not starting %s: the agent is stopping\n", a.BuildLocatorForDisplay())
			continue
		}
		outcome, err := o.runJob(ctx, sigCtx, stop, cfg, tp, a)
		if err != nil {
			return err
		}
		if _, err := agg.Report(ctx, a.StageLocator(), outcome); err != nil {
			return err
		}
		if o.outcomesPath != "" {
			if err := termination.WriteOutcomes(o.outcomesPath, []v1.JobOutcome{outcome}); err != nil {
				return fmt.Errorf("failed to record outcome of %s: %w", a.BuildLocatorForDisplay(), err)
			}
		}
		if !seen[a.StageLocator()] {
			seen[a.StageLocator()] = true
			stages = append(stages, a.StageLocator())
		}
	}

	var notPassed []string
	for _, s := range stages {
		verdict, err := agg.Verdict(ctx, s)
		if err != nil {
			return err
		}
		fmt.Fprintf(o.stream.Out, "Stage %s: %s\n", s, verdict)
		if verdict != stage.VerdictPassed {
			notPassed = append(notPassed, s)
		}
	}
	if len(notPassed) > 0 {
		return fmt.Errorf("stage %s did not pass", strings.Join(notPassed, ", "))
	}
	if sigCtx.Err() != nil {
		return fmt.Errorf("interrupted before all jobs ran")
	}
	return nil
}

// runJob builds one assignment. The build is cancelled when sigCtx is done;
// stop then restores the default signal handling so a second signal kills
// the agent.
func (o *runOptions) runJob(ctx, sigCtx context.Context, stop context.CancelFunc, cfg *config.Config, tp *tracing.TracerProvider, a *v1.JobAssignment) (v1.JobOutcome, error) {
	logger := knativelogging.FromContext(ctx).With("job", a.BuildLocator())
	ctx = knativelogging.WithLogger(ctx, logger)

	repo, err := artifacts.NewLocalRepository(cfg.Artifacts.Root, a.JobIdentifier)
	if err != nil {
		return v1.JobOutcome{}, fmt.Errorf("failed to open artifact store for %s: %w", a.BuildLocatorForDisplay(), err)
	}
	reporter := cloudevent.NewReporter(ctx, a.JobIdentifier, cfg.Agent.ID, cfg.Events.Sink, o.params.Time())
	session := &buildsession.Session{
		Console:   o.stream.Out,
		Reporter:  reporter,
		Artifacts: repo,
		Runner:    o.runner,
		Materials: &git.Updater{},
		WorkRoot:  cfg.Agent.WorkRoot,
		BuildVariables: map[string]string{
			"agent.hostname": cfg.Agent.Hostname,
			"agent.location": cfg.Agent.Location,
		},
		Clock:  o.params.Time(),
		Tracer: tp.Tracer(TracerName),
	}

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		result := session.Run(ctx, a)
		logger.Infow("Job finished", "result", result)
		return nil
	})
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
			stop()
			if session.Cancel() {
				fmt.Fprintf(o.stream.Err, "Cancelling %s\n", a.BuildLocatorForDisplay())
			}
		case <-done:
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return v1.JobOutcome{}, err
	}
	return reporter.Outcome(), nil
}

func loadAssignments(files []string) ([]*v1.JobAssignment, error) {
	out := make([]*v1.JobAssignment, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		a, err := v1.ParseJobAssignment(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		out = append(out, a)
	}
	return out, nil
}
