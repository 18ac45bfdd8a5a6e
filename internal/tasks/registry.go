// Package tasks tracks asynchronous operations: the registry that owns task
// state, the scheduler that runs one goroutine per task, and the query
// interface used by the REST layer.
package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/models"
)

// entry guards one task. Mutations lock the entry, never the whole map.
type entry struct {
	mu   sync.Mutex
	task *models.Task
}

// Registry is the in-memory task store. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*entry)}
}

func notFound(op, id string) error {
	return errs.E(errs.KindNotFound, op, fmt.Sprintf("task %s not found", id))
}

func (r *Registry) lookup(op, id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, notFound(op, id)
	}
	return e, nil
}

// Create stores a new task.
func (r *Registry) Create(task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tasks[task.ID]; dup {
		return errs.E(errs.KindInternal, "create", fmt.Sprintf("task %s already exists", task.ID))
	}
	r.tasks[task.ID] = &entry{task: task}
	return nil
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (*models.Task, error) {
	e, err := r.lookup("get", id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Clone(), nil
}

// update applies fn to the task under its lock.
func (r *Registry) update(op, id string, fn func(t *models.Task) bool) (bool, error) {
	e, err := r.lookup(op, id)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.task), nil
}

// Start moves a pending task to running. It reports false if the task was
// not pending.
func (r *Registry) Start(id string) (bool, error) {
	return r.update("start", id, func(t *models.Task) bool { return t.Start() })
}

// AppendMessage appends a timestamped message. Messages arriving after a
// terminal transition are dropped.
func (r *Registry) AppendMessage(id, text string) error {
	_, err := r.update("append", id, func(t *models.Task) bool { return t.AddMessage(text) })
	return err
}

// SetProgress records a percentage; progress never decreases.
func (r *Registry) SetProgress(id string, pct int) error {
	_, err := r.update("progress", id, func(t *models.Task) bool { return t.SetProgress(pct) })
	return err
}

// Complete marks the task completed with its result files. Only the first
// terminal transition applies; later calls are logged no-ops.
func (r *Registry) Complete(id string, files []string) (bool, error) {
	ok, err := r.update("complete", id, func(t *models.Task) bool { return t.Complete(files) })
	if err == nil && !ok {
		logger.Debug("Task %s: ignoring completion, task already finished or no files", id)
	}
	return ok, err
}

// Fail marks the task failed. Only the first terminal transition applies.
func (r *Registry) Fail(id string, taskErr *models.TaskError) (bool, error) {
	ok, err := r.update("fail", id, func(t *models.Task) bool { return t.Fail(taskErr) })
	if err == nil && !ok {
		logger.Debug("Task %s: ignoring failure %v, task already finished", id, taskErr)
	}
	return ok, err
}

// List returns summaries, newest first.
func (r *Registry) List() []models.Summary {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.tasks))
	for _, e := range r.tasks {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]models.Summary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.task.Summary())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of stored tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Delete removes a finished task and returns its final snapshot. Pending and
// running tasks are refused with TaskActive.
func (r *Registry) Delete(id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tasks[id]
	if !ok {
		return nil, notFound("delete", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.task.Status.IsTerminal() {
		return nil, errs.E(errs.KindTaskActive, "delete",
			fmt.Sprintf("task %s is %s; cancel it or wait for it to finish", id, e.task.Status))
	}
	delete(r.tasks, id)
	return e.task.Clone(), nil
}

// EvictOlderThan removes finished tasks whose last update is older than
// maxAge and returns their snapshots.
func (r *Registry) EvictOlderThan(maxAge time.Duration) []*models.Task {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*models.Task
	for id, e := range r.tasks {
		e.mu.Lock()
		if e.task.Status.IsTerminal() && e.task.UpdatedAt.Before(cutoff) {
			evicted = append(evicted, e.task.Clone())
			delete(r.tasks, id)
		}
		e.mu.Unlock()
	}
	return evicted
}
