package taskmgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func newTestManager(t *testing.T) *Manager {
	log, err := logger.New(false)
	require.NoError(t, err)
	store := db.New(events.NewBus(), nil)
	return New(store, log)
}

func TestCreateAndComplete(t *testing.T) {
	m := newTestManager(t)
	ref := m.Create("vm.start", "", true)

	done := make(chan *model.Task, 1)
	go func() {
		task, err := m.Wait(context.Background(), ref)
		assert.NoError(t, err)
		done <- task
	}()

	time.Sleep(10 * time.Millisecond)
	m.Complete(ref, "some-result")

	select {
	case task := <-done:
		assert.Equal(t, model.TaskCompleted, task.Status)
		assert.Equal(t, "some-result", task.Result)
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Complete")
	}
}

func TestWaitTimesOut(t *testing.T) {
	m := newTestManager(t)
	ref := m.Create("vm.start", "", false)

	_, err := m.WaitWithTimeout(context.Background(), ref, 20*time.Millisecond)
	assert.Error(t, err)
}

func TestCancelFlow(t *testing.T) {
	m := newTestManager(t)
	ref := m.Create("vm.migrate", "", true)

	require.NoError(t, m.RequestCancel(ref))
	assert.True(t, m.IsCancelling(ref))

	m.Fail(ref, model.NewApiError(model.ErrTaskCancelled))

	task, err := m.Wait(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, model.TaskFailed, task.Status)
	assert.Equal(t, model.ErrTaskCancelled, task.Error.Code)
}

func TestSubtaskTree(t *testing.T) {
	m := newTestManager(t)
	parent := m.Create("vm.clone", "", false)
	child := m.Create("vdi.copy", parent, false)

	p, ok := m.store.Tasks.Get(parent)
	require.True(t, ok)
	assert.Contains(t, p.Subtasks, child)
}

func TestNonCancellableTaskRejectsCancel(t *testing.T) {
	m := newTestManager(t)
	ref := m.Create("vm.start", "", false)
	assert.Error(t, m.RequestCancel(ref))
}
