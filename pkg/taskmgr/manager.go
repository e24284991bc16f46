// Package taskmgr is the authoritative task registry. Rather than
// polling a remote server's task endpoint on a fixed interval, this
// package IS that server: every state transition is an event, so Wait
// is a channel receive instead of a sleep loop.
package taskmgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
	"go.uber.org/zap"
)

// DefaultWaitTimeout bounds how long a caller's Wait blocks by default.
const DefaultWaitTimeout = 5 * time.Minute

// Manager owns the in-flight task set: creation, progress updates,
// completion, cancellation, and the subtask tree.
type Manager struct {
	store *db.Store
	log   *logger.Logger

	mu   sync.Mutex
	done map[model.Ref]chan struct{} // closed when a task leaves pending/cancelling
}

func New(store *db.Store, log *logger.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log,
		done:  make(map[model.Ref]chan struct{}),
	}
}

// Create registers a new root or child task and returns its ref.
func (m *Manager) Create(name string, parent model.Ref, cancellable bool) model.Ref {
	t := model.Task{
		Row:         model.NewRow(model.ClassTask),
		NameLabel:   name,
		Parent:      parent,
		Cancellable: cancellable,
		Status:      model.TaskPending,
		Created:     time.Now(),
	}
	db.Put(m.store, m.store.Tasks, t)

	m.mu.Lock()
	m.done[t.Ref] = make(chan struct{})
	m.mu.Unlock()

	if parent != "" {
		if p, ok := m.store.Tasks.Get(parent); ok {
			p.Subtasks = append(p.Subtasks, t.Ref)
			db.Put(m.store, m.store.Tasks, p)
		}
	}

	m.log.Debug("task created", zap.String("ref", string(t.Ref)), zap.String("name", name))
	return t.Ref
}

// SetProgress updates a pending task's fractional progress.
func (m *Manager) SetProgress(ref model.Ref, progress float64) {
	t, ok := m.store.Tasks.Get(ref)
	if !ok || t.Status != model.TaskPending {
		return
	}
	t.Progress = progress
	db.Put(m.store, m.store.Tasks, t)
}

// Complete marks a task successful, carrying the operation's result ref.
func (m *Manager) Complete(ref model.Ref, result string) {
	m.finish(ref, model.TaskCompleted, result, nil)
}

// Fail marks a task failed with the given error.
func (m *Manager) Fail(ref model.Ref, err *model.ApiError) {
	m.finish(ref, model.TaskFailed, "", err)
}

// RequestCancel flips a cancellable task to cancelling; the operation
// implementation is expected to observe this (via IsCancelling) and call
// Fail with ErrTaskCancelled once it has unwound.
func (m *Manager) RequestCancel(ref model.Ref) error {
	t, ok := m.store.Tasks.Get(ref)
	if !ok {
		return fmt.Errorf("no such task %s", ref)
	}
	if !t.Cancellable {
		return fmt.Errorf("task %s is not cancellable", ref)
	}
	if t.Status != model.TaskPending {
		return nil
	}
	t.Status = model.TaskCancelling
	db.Put(m.store, m.store.Tasks, t)
	return nil
}

// IsCancelling reports whether an in-flight operation should unwind.
func (m *Manager) IsCancelling(ref model.Ref) bool {
	t, ok := m.store.Tasks.Get(ref)
	return ok && t.Status == model.TaskCancelling
}

func (m *Manager) finish(ref model.Ref, status model.TaskStatus, result string, apiErr *model.ApiError) {
	t, ok := m.store.Tasks.Get(ref)
	if !ok {
		return
	}
	// Current-op semantics: once finished, a task's kind entries are
	// cleared from any row it was recorded against by the caller (§4.3
	// step 7) before finish() is invoked; taskmgr itself only owns the
	// task row's own lifecycle.
	if status == model.TaskCancelled && t.Status != model.TaskCancelling {
		status = model.TaskFailed
	}
	t.Status = status
	t.Result = result
	t.Error = apiErr
	t.Finished = time.Now()
	t.Progress = 1
	db.Put(m.store, m.store.Tasks, t)

	m.mu.Lock()
	if ch, ok := m.done[ref]; ok {
		close(ch)
		delete(m.done, ref)
	}
	m.mu.Unlock()
}

// Wait blocks until ref leaves pending/cancelling, or ctx is done, or
// DefaultWaitTimeout elapses.
func (m *Manager) Wait(ctx context.Context, ref model.Ref) (*model.Task, error) {
	return m.WaitWithTimeout(ctx, ref, DefaultWaitTimeout)
}

func (m *Manager) WaitWithTimeout(ctx context.Context, ref model.Ref, timeout time.Duration) (*model.Task, error) {
	m.mu.Lock()
	ch, inFlight := m.done[ref]
	m.mu.Unlock()

	if inFlight {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t, ok := m.store.Tasks.Get(ref)
	if !ok {
		return nil, fmt.Errorf("task %s not found", ref)
	}
	return &t, nil
}

// Abort is the client-facing entry point for cancelling a task.
func (m *Manager) Abort(ref model.Ref) error {
	return m.RequestCancel(ref)
}
