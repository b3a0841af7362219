package experiment

import (
	"context"
	"runtime"
	"sync"

	"github.com/san-kum/poresim/internal/sim"
)

// Job is one configuration file to run under a model.
type Job struct {
	Path  string
	Model string
}

// Outcome is the result of one Job.
type Outcome struct {
	Job    Job
	Status int
	Result *sim.Result
	Err    error
}

// Batch runs independent experiments concurrently. Each job owns its own
// fields and writer, so the only shared state is the ledger, which
// serializes writes itself.
type Batch struct {
	opts    Options
	workers int
}

// NewBatch runs at most workers jobs at once; workers <= 0 means
// GOMAXPROCS.
func NewBatch(opts Options, workers int) *Batch {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Batch{opts: opts, workers: workers}
}

// Run executes every job and returns outcomes in job order. A failing job
// does not stop the others.
func (b *Batch) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	sem := make(chan struct{}, b.workers)

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, job Job) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[idx] = Outcome{Job: job, Status: StatusFailed, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			// Observers are not safe to share between concurrent runs.
			opts := b.opts
			opts.Observers = nil
			if opts.Logger != nil {
				opts.Logger = opts.Logger.With("config", job.Path)
			}
			status, res, err := Execute(ctx, job.Path, job.Model, opts)
			outcomes[idx] = Outcome{Job: job, Status: status, Result: res, Err: err}
		}(i, job)
	}

	wg.Wait()
	return outcomes
}

// Failed counts outcomes that did not succeed.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status != StatusOK {
			n++
		}
	}
	return n
}
