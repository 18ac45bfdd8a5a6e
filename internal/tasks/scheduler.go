package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/models"
)

// Handler implements one operation kind. Validate runs synchronously in
// Submit; Process runs on the task's goroutine and returns result paths.
type Handler struct {
	Validate func(p models.Params) error
	Process  func(ctx context.Context, p models.Params, r Reporter) ([]string, error)
}

// Options configures a Scheduler.
type Options struct {
	// TaskTimeout bounds each task. Zero selects the default.
	TaskTimeout time.Duration
	// WorkRoot is where per-task working directories are created.
	// Empty means the system temp directory.
	WorkRoot string
	// Metrics is optional.
	Metrics *Metrics
}

var (
	errCanceled = errs.E(errs.KindCanceled, "cancel", "task canceled by request")
	errShutdown = errs.E(errs.KindCanceled, "shutdown", "server shutting down")
)

// Scheduler accepts submissions and runs each task on its own goroutine.
type Scheduler struct {
	registry *Registry
	opts     Options

	mu       sync.Mutex
	handlers map[models.OperationKind]Handler
	cancels  map[string]context.CancelCauseFunc
	closed   bool
	wg       sync.WaitGroup
}

func NewScheduler(registry *Registry, opts Options) *Scheduler {
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = config.DefaultTaskTimeout
	}
	return &Scheduler{
		registry: registry,
		opts:     opts,
		handlers: make(map[models.OperationKind]Handler),
		cancels:  make(map[string]context.CancelCauseFunc),
	}
}

// Register installs the handler for kind, replacing any previous one.
func (s *Scheduler) Register(kind models.OperationKind, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// Kinds lists the registered operation kinds.
func (s *Scheduler) Kinds() []models.OperationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]models.OperationKind, 0, len(s.handlers))
	for k := range s.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Submit validates params, creates a pending task and starts its worker.
// It never waits for the work itself.
func (s *Scheduler) Submit(kind models.OperationKind, params models.Params) (string, error) {
	s.mu.Lock()
	h, ok := s.handlers[kind]
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return "", errs.E(errs.KindInternal, "submit", "scheduler is shutting down")
	}
	if !ok {
		return "", errs.E(errs.KindInvalidParams, "submit", fmt.Sprintf("unknown operation %q", kind))
	}
	if h.Validate != nil {
		if err := h.Validate(params); err != nil {
			if errs.KindOf(err) != errs.KindInvalidParams {
				err = errs.Wrap(errs.KindInvalidParams, "submit", err)
			}
			return "", err
		}
	}

	ownDir := false
	if params.WorkDir == "" {
		dir, err := NewWorkDir(s.opts.WorkRoot)
		if err != nil {
			return "", errs.Wrap(errs.KindInternal, "submit", err)
		}
		params.WorkDir = dir
		ownDir = true
	}
	abort := func(err error) (string, error) {
		if ownDir {
			RemoveWorkDir(params.WorkDir)
		}
		return "", err
	}

	task := models.NewTask(kind, params)
	cancelCtx, cancel := context.WithCancelCause(context.Background())
	ctx, stop := context.WithTimeoutCause(cancelCtx, s.opts.TaskTimeout,
		errs.E(errs.KindTimeout, string(kind), fmt.Sprintf("task exceeded its %s timeout", s.opts.TaskTimeout)))

	// Shutdown may have started since the check above; registration and
	// wg.Add happen under the same lock Shutdown takes.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		cancel(nil)
		return abort(errs.E(errs.KindInternal, "submit", "scheduler is shutting down"))
	}
	if err := s.registry.Create(task); err != nil {
		s.mu.Unlock()
		stop()
		cancel(nil)
		return abort(err)
	}
	s.cancels[task.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.opts.Metrics.submitted(kind)
	logger.Info("Task %s submitted (%s)", task.ID, kind)

	go s.run(ctx, func() { stop(); cancel(nil) }, task.ID, kind, task.Params, h)
	return task.ID, nil
}

type outcome struct {
	files []string
	err   error
}

func (s *Scheduler) run(ctx context.Context, release func(), id string, kind models.OperationKind, params models.Params, h Handler) {
	defer s.wg.Done()
	defer s.forget(id)
	defer release()

	if ok, err := s.registry.Start(id); err != nil || !ok {
		logger.Warn("Task %s: could not start (%v)", id, err)
		return
	}
	s.opts.Metrics.started(kind)
	start := time.Now()

	rep := newChannelReporter(config.ProgressBufferSize, ctx.Done())
	drained := make(chan struct{})
	go s.drain(id, rep.ch, drained)

	var res outcome
	if ctx.Err() != nil {
		res = outcome{err: context.Cause(ctx)}
	} else {
		resultCh := make(chan outcome, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					logger.Error("Task %s panicked: %v\n%s", id, p, debug.Stack())
					resultCh <- outcome{err: errs.E(errs.KindInternal, string(kind), fmt.Sprintf("panic: %v", p))}
				}
			}()
			files, err := h.Process(ctx, params, rep)
			resultCh <- outcome{files: files, err: err}
		}()

		select {
		case res = <-resultCh:
		case <-ctx.Done():
			select {
			case res = <-resultCh:
			default:
				// The worker is abandoned; whatever it returns later is dropped.
				res = outcome{err: context.Cause(ctx)}
			}
		}
	}

	if res.err != nil && ctx.Err() != nil &&
		(errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded)) {
		res.err = context.Cause(ctx)
	}

	rep.close()
	<-drained
	s.finish(id, kind, res, time.Since(start))
}

// drain applies reporter updates to the registry in arrival order.
func (s *Scheduler) drain(id string, ch <-chan update, done chan<- struct{}) {
	defer close(done)
	for u := range ch {
		var err error
		if u.isText {
			err = s.registry.AppendMessage(id, u.text)
		} else {
			err = s.registry.SetProgress(id, u.progress)
		}
		if err != nil {
			logger.Debug("Task %s: dropping update: %v", id, err)
		}
	}
}

func (s *Scheduler) finish(id string, kind models.OperationKind, res outcome, elapsed time.Duration) {
	err := res.err
	if err == nil && len(res.files) == 0 {
		err = errs.E(errs.KindInternal, string(kind), "processing produced no result files")
	}

	status := models.StatusCompleted
	if err != nil {
		status = models.StatusFailed
		taskErr := ToTaskError(err)
		if _, ferr := s.registry.Fail(id, taskErr); ferr != nil {
			logger.Warn("Task %s: %v", id, ferr)
		}
		logger.Warn("Task %s failed after %s: %s", id, elapsed.Round(time.Millisecond), taskErr)
	} else {
		if _, cerr := s.registry.Complete(id, res.files); cerr != nil {
			logger.Warn("Task %s: %v", id, cerr)
		}
		logger.Info("Task %s completed in %s (%d files)", id, elapsed.Round(time.Millisecond), len(res.files))
	}
	s.opts.Metrics.finished(kind, status, elapsed)
}

// ToTaskError converts an error into the form stored on a failed task.
func ToTaskError(err error) *models.TaskError {
	kind := errs.KindOf(err)
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "task timed out"
	case errors.Is(err, context.Canceled):
		msg = "task canceled"
	}
	return &models.TaskError{Kind: string(kind), Message: msg}
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.cancels, id)
	s.mu.Unlock()
}

// Cancel asks a pending or running task to stop. The task ends FAILED with
// kind canceled once its worker observes the cancellation.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()

	if !ok {
		task, err := s.registry.Get(id)
		if err != nil {
			return err
		}
		return errs.E(errs.KindInvalidParams, "cancel", fmt.Sprintf("task %s already %s", id, task.Status))
	}
	logger.Info("Task %s: cancel requested", id)
	cancel(errCanceled)
	return nil
}

// Shutdown refuses new submissions, cancels running tasks and waits for
// their workers until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, cancel := range s.cancels {
		cancel(errShutdown)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks: %w", ctx.Err())
	}
}

// RunJanitor evicts finished tasks older than maxAge every interval and
// removes their working directories. It returns when ctx is done. A maxAge
// of zero keeps tasks until explicit cleanup, so it returns at once.
func (s *Scheduler) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	if interval <= 0 {
		interval = config.DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(maxAge)
		}
	}
}

// Sweep performs one eviction pass and returns the number of evicted tasks.
func (s *Scheduler) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	evicted := s.registry.EvictOlderThan(maxAge)
	for _, t := range evicted {
		if err := RemoveWorkDir(t.Params.WorkDir); err != nil {
			logger.Warn("Task %s: %v", t.ID, err)
		}
	}
	if len(evicted) > 0 {
		logger.Info("Evicted %d finished tasks older than %s", len(evicted), maxAge)
	}
	return len(evicted)
}

// NewWorkDir creates a task working directory under root.
func NewWorkDir(root string) (string, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0755); err != nil {
			return "", fmt.Errorf("create work root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, config.TempDirPrefix)
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}

// RemoveWorkDir deletes a directory created by NewWorkDir. Directories
// without the toolkit prefix are left alone.
func RemoveWorkDir(dir string) error {
	if dir == "" || !strings.HasPrefix(filepath.Base(dir), config.TempDirPrefix) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove work dir: %w", err)
	}
	return nil
}
