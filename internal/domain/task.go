package domain

import "time"

// TableTasks is the backend table holding personal tasks.
const TableTasks = "tasks"

// Task is a personal to-do item owned by one user.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTask is the insert payload for a task.
type NewTask struct {
	Title       string `json:"title" validate:"notblank,max=500"`
	Description string `json:"description" validate:"max=10000"`
	UserID      string `json:"user_id" validate:"required"`
}

// TaskPatch is the update payload for a task. The owner is re-asserted on
// every update.
type TaskPatch struct {
	Title       string `json:"title" validate:"notblank,max=500"`
	Description string `json:"description" validate:"max=10000"`
	UserID      string `json:"user_id" validate:"required"`
}
