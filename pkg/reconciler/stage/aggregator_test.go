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

package stage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/fleetci/pipeline/internal/test/diff"
	v1 "github.com/fleetci/pipeline/pkg/apis/pipeline/v1"
	"github.com/fleetci/pipeline/pkg/reconciler/stage"
	"github.com/google/go-cmp/cmp"
	logtesting "knative.dev/pkg/logging/testing"
)

func TestAggregator(t *testing.T) {
	ctx := logtesting.TestContextWithLogger(t)
	a := stage.NewAggregator(ctx)
	defer a.Close()
	const key = "up42/1/build/1"

	mustReport := func(o v1.JobOutcome, want bool) {
		t.Helper()
		got, err := a.Report(ctx, key, o)
		if err != nil {
			t.Fatalf("Report(%s) = %v", o.Name, err)
		}
		if got != want {
			t.Errorf("Report(%s) accepted = %t, want %t", o.Name, got, want)
		}
	}
	verdict := func() stage.StageVerdict {
		t.Helper()
		v, err := a.Verdict(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	mustReport(building("linux"), true)
	mustReport(building("windows"), true)
	if v := verdict(); v != stage.VerdictBuilding {
		t.Errorf("Verdict() = %s, want Building", v)
	}

	mustReport(completed("linux", v1.JobResultFailed, now), true)
	if v := verdict(); v != stage.VerdictFailing {
		t.Errorf("Verdict() = %s, want Failing", v)
	}

	mustReport(completed("windows", v1.JobResultPassed, now), true)
	if v := verdict(); v != stage.VerdictFailed {
		t.Errorf("Verdict() = %s, want Failed", v)
	}

	// A completed job never changes again.
	mustReport(completed("linux", v1.JobResultPassed, now), false)
	if v := verdict(); v != stage.VerdictFailed {
		t.Errorf("Verdict() = %s, want Failed", v)
	}

	snap, err := a.Snapshot(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, o := range snap {
		got = append(got, fmt.Sprintf("%s=%s", o.Name, o.Result))
	}
	if d := cmp.Diff([]string{"linux=Failed", "windows=Passed"}, got); d != "" {
		t.Errorf("Snapshot() %s", diff.PrintWantGot(d))
	}

	other, err := a.Snapshot(ctx, "other/1/stage/1")
	if err != nil || len(other) != 0 {
		t.Errorf("Snapshot(other) = %v, %v; want empty", other, err)
	}
}

func TestAggregatorConcurrentReports(t *testing.T) {
	ctx := logtesting.TestContextWithLogger(t)
	a := stage.NewAggregator(ctx)
	defer a.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := a.Report(ctx, "s", completed(fmt.Sprintf("job-%d", i), v1.JobResultPassed, now)); err != nil {
				t.Errorf("Report() = %v", err)
			}
		}(i)
	}
	wg.Wait()

	snap, err := a.Snapshot(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 20 {
		t.Errorf("Snapshot() has %d outcomes, want 20", len(snap))
	}
	if v, _ := a.Verdict(ctx, "s"); v != stage.VerdictPassed {
		t.Errorf("Verdict() = %s, want Passed", v)
	}
}

func TestAggregatorClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(logtesting.TestContextWithLogger(t))
	a := stage.NewAggregator(ctx)
	cancel()
	a.Close()

	if _, err := a.Report(context.Background(), "s", building("a")); !errors.Is(err, stage.ErrClosed) {
		t.Errorf("Report() after Close = %v, want %v", err, stage.ErrClosed)
	}
	if _, err := a.Verdict(context.Background(), "s"); !errors.Is(err, stage.ErrClosed) {
		t.Errorf("Verdict() after Close = %v, want %v", err, stage.ErrClosed)
	}
}
