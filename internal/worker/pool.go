// Package worker provides a generic worker pool for fanning out the pieces of
// one task (files of a batch, chunks of a document) with ordered results.
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work with an index for ordering.
type Job[T any] struct {
	Index int
	Data  T
}

// Result represents the outcome of processing a Job.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// ProcessFunc processes a job and returns a result.
type ProcessFunc[I, O any] func(ctx context.Context, job Job[I]) (O, error)

// ProgressFunc is called after each job completes.
type ProgressFunc func(completed, total int)

// Pool manages concurrent job processing with a fixed number of workers.
type Pool[I, O any] struct {
	workers    int
	process    ProcessFunc[I, O]
	onProgress ProgressFunc
	jobChan    chan Job[I]
	resultChan chan Result[O]
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// PoolOptions configures pool behavior.
type PoolOptions struct {
	Workers    int
	BufferSize int // If 0, defaults to Workers
}

// NewPool creates a worker pool bound to ctx. Cancelling ctx stops the
// workers; jobs not yet started report ctx.Err().
func NewPool[I, O any](ctx context.Context, opts PoolOptions, process ProcessFunc[I, O]) *Pool[I, O] {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = opts.Workers
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[I, O]{
		workers:    opts.Workers,
		process:    process,
		jobChan:    make(chan Job[I], opts.BufferSize),
		resultChan: make(chan Result[O], opts.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetProgressCallback sets a callback to be called after each job completes.
func (p *Pool[I, O]) SetProgressCallback(fn ProgressFunc) {
	p.onProgress = fn
}

// Start begins the worker pool processing.
func (p *Pool[I, O]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[I, O]) worker() {
	defer p.wg.Done()
	for job := range p.jobChan {
		if err := p.ctx.Err(); err != nil {
			p.resultChan <- Result[O]{Index: job.Index, Err: err}
			continue
		}
		result, err := p.process(p.ctx, job)
		p.resultChan <- Result[O]{
			Index: job.Index,
			Value: result,
			Err:   err,
		}
	}
}

// Submit adds a job to the pool.
func (p *Pool[I, O]) Submit(job Job[I]) {
	p.jobChan <- job
}

// SubmitAll submits multiple jobs.
func (p *Pool[I, O]) SubmitAll(jobs []Job[I]) {
	for _, job := range jobs {
		p.Submit(job)
	}
}

// Close stops accepting new jobs.
func (p *Pool[I, O]) Close() {
	close(p.jobChan)
}

// Wait waits for all workers to complete and closes the results channel.
func (p *Pool[I, O]) Wait() {
	p.wg.Wait()
	close(p.resultChan)
	p.cancel()
}

// Results returns the results channel for reading.
func (p *Pool[I, O]) Results() <-chan Result[O] {
	return p.resultChan
}

// Cancel stops all workers; queued jobs complete with the context error.
func (p *Pool[I, O]) Cancel() {
	p.cancel()
}

// Run submits all jobs, starts workers, and collects results in order.
func (p *Pool[I, O]) Run(jobs []Job[I]) []Result[O] {
	total := len(jobs)
	results := make([]Result[O], total)

	p.Start()

	go func() {
		p.SubmitAll(jobs)
		p.Close()
		p.Wait()
	}()

	completed := 0
	for result := range p.Results() {
		if result.Index >= 0 && result.Index < total {
			results[result.Index] = result
		}
		completed++
		if p.onProgress != nil {
			p.onProgress(completed, total)
		}
	}

	return results
}

func jobsFor[I any](items []I) []Job[I] {
	jobs := make([]Job[I], len(items))
	for i, item := range items {
		jobs[i] = Job[I]{Index: i, Data: item}
	}
	return jobs
}

// Process creates a pool, processes all items and returns ordered results.
// The first error to occur is returned and the remaining work is cancelled.
func Process[I, O any](ctx context.Context, items []I, workers int, process ProcessFunc[I, O], onProgress ProgressFunc) ([]O, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if workers > len(items) {
		workers = len(items)
	}

	var once sync.Once
	var firstErr error
	var pool *Pool[I, O]
	pool = NewPool[I, O](ctx, PoolOptions{Workers: workers, BufferSize: len(items)}, func(ctx context.Context, job Job[I]) (O, error) {
		out, err := process(ctx, job)
		if err != nil {
			once.Do(func() { firstErr = err })
			pool.Cancel()
		}
		return out, err
	})
	pool.SetProgressCallback(onProgress)
	results := pool.Run(jobsFor(items))

	if firstErr != nil {
		return nil, firstErr
	}
	output := make([]O, len(results))
	for i, result := range results {
		if result.Err != nil {
			return nil, result.Err
		}
		output[i] = result.Value
	}
	return output, nil
}

// ProcessWithErrors is like Process but runs every item regardless of
// failures. errors[i] is the error of items[i] (nil on success).
func ProcessWithErrors[I, O any](ctx context.Context, items []I, workers int, process ProcessFunc[I, O], onProgress ProgressFunc) ([]O, []error) {
	if len(items) == 0 {
		return nil, nil
	}
	if workers > len(items) {
		workers = len(items)
	}

	pool := NewPool[I, O](ctx, PoolOptions{Workers: workers, BufferSize: len(items)}, process)
	pool.SetProgressCallback(onProgress)
	results := pool.Run(jobsFor(items))

	output := make([]O, len(results))
	errors := make([]error, len(results))
	for i, result := range results {
		output[i] = result.Value
		errors[i] = result.Err
	}
	return output, errors
}
