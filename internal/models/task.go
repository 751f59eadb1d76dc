package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusCart       TaskStatus = "CART"
	TaskStatusOffered    TaskStatus = "OFFERED"
)

// Valid reports whether s is one of the five defined statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCart, TaskStatusOffered:
		return true
	}
	return false
}

// Task is the client-side view of a task. A task has exactly one
// status at a time; moving a task into CART or OFFERED overwrites the
// workflow status rather than setting a separate flag.
type Task struct {
	ID          uint64
	Title       string
	Description string
	Status      TaskStatus
	DueDate     *time.Time
	Priority    string
	UserID      uint64
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
