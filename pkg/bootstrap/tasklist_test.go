package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTaskListSkipsWrongRole(t *testing.T) {
	var ran []string
	tasks := []StartupTask{
		{Name: "master-only", OnlyMaster: true, Fn: func(ctx context.Context) error { ran = append(ran, "master-only"); return nil }},
		{Name: "slave-only", OnlySlave: true, Fn: func(ctx context.Context) error { ran = append(ran, "slave-only"); return nil }},
		{Name: "any", Fn: func(ctx context.Context) error { ran = append(ran, "any"); return nil }},
	}

	require.NoError(t, RunTaskList(context.Background(), newTestLogger(t), RoleMaster, tasks))
	assert.Equal(t, []string{"master-only", "any"}, ran)
}

func TestRunTaskListAbortsOnFailure(t *testing.T) {
	var ran []string
	tasks := []StartupTask{
		{Name: "first", Fn: func(ctx context.Context) error { ran = append(ran, "first"); return errors.New("boom") }},
		{Name: "second", Fn: func(ctx context.Context) error { ran = append(ran, "second"); return nil }},
	}

	err := RunTaskList(context.Background(), newTestLogger(t), RoleMaster, tasks)
	assert.Error(t, err)
	assert.Equal(t, []string{"first"}, ran)
}

func TestRunTaskListNoExnRaisingContinues(t *testing.T) {
	var ran []string
	tasks := []StartupTask{
		{Name: "first", NoExnRaising: true, Fn: func(ctx context.Context) error { ran = append(ran, "first"); return errors.New("boom") }},
		{Name: "second", Fn: func(ctx context.Context) error { ran = append(ran, "second"); return nil }},
	}

	err := RunTaskList(context.Background(), newTestLogger(t), RoleMaster, tasks)
	assert.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestRunTaskListBackgroundTaskDoesNotBlock(t *testing.T) {
	started := make(chan struct{})
	tasks := []StartupTask{
		{Name: "bg", OnThread: true, Fn: func(ctx context.Context) error {
			<-started
			return nil
		}},
	}

	done := make(chan error, 1)
	go func() { done <- RunTaskList(context.Background(), newTestLogger(t), RoleMaster, tasks) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunTaskList should not block on an OnThread task")
	}
	close(started)
}
