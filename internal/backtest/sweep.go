package backtest

import (
	"context"
	"sync"

	"github.com/jwtly10/smcplan/internal/types"
)

// Job is one independent backtest. Rules must not share mutable state with
// other jobs.
type Job struct {
	Name   string
	Engine *Engine
	Series types.Series
	Entry  EntryRule
	Exit   ExitRule
}

type SweepResult struct {
	Name   string
	Report *Report
	Err    error
}

// Sweep runs jobs concurrently and returns results in job order.
func Sweep(ctx context.Context, jobs []Job) []SweepResult {
	results := make([]SweepResult, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			report, err := job.Engine.Run(ctx, job.Series, job.Entry, job.Exit)
			results[i] = SweepResult{Name: job.Name, Report: report, Err: err}
		}(i, job)
	}
	wg.Wait()

	return results
}
