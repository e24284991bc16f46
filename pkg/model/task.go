package model

import "time"

// TaskStatus is the closed set of states a Task moves through.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelling TaskStatus = "cancelling"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is the authoritative record for one in-flight or finished operation:
// the row the task manager itself owns, not a snapshot observed from afar.
type Task struct {
	Row

	NameLabel string

	// Subtask tree: Parent is empty for a root task.
	Parent   Ref
	Subtasks []Ref

	Cancellable bool
	Status      TaskStatus
	Progress    float64 // in [0,1]

	Created time.Time
	Finished time.Time

	// Result carries the operation-specific outcome ref (e.g. the ref of
	// a newly created VM) once Status is TaskCompleted.
	Result string

	// Error is set once Status is TaskFailed.
	Error *ApiError
}
