package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librarydesk/librarian/internal/domain"
)

func (s *Server) registerTaskRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTasks",
		Method:      http.MethodGet,
		Path:        "/api/v1/tasks",
		Summary:     "List tasks",
		Description: "Returns the caller's tasks, newest first",
		Tags:        []string{"Tasks"},
		Security:    bearer,
	}, s.handleListTasks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTask",
		Method:        http.MethodPost,
		Path:          "/api/v1/tasks",
		Summary:       "Create task",
		Description:   "Creates a task owned by the caller",
		Tags:          []string{"Tasks"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTask",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Update task",
		Description: "Replaces the title and description of one of the caller's tasks",
		Tags:        []string{"Tasks"},
		Security:    bearer,
	}, s.handleUpdateTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTask",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Delete task",
		Description: "Deletes one of the caller's tasks. Unknown or foreign ids are ignored.",
		Tags:        []string{"Tasks"},
		Security:    bearer,
	}, s.handleDeleteTask)
}

// TaskRequest is the request body for creating or updating a task.
type TaskRequest struct {
	Title       string `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
	Description string `json:"description,omitempty" maxLength:"10000" doc:"Task description"`
}

// CreateTaskInput wraps the create task request for Huma.
type CreateTaskInput struct {
	Body TaskRequest
}

// UpdateTaskInput wraps the update task request for Huma.
type UpdateTaskInput struct {
	ID   string `path:"id" doc:"Task ID"`
	Body TaskRequest
}

// DeleteTaskInput contains parameters for deleting a task.
type DeleteTaskInput struct {
	ID string `path:"id" doc:"Task ID"`
}

// TaskListResponse contains the caller's tasks.
type TaskListResponse struct {
	Tasks []domain.Task `json:"tasks" doc:"Tasks, newest first"`
}

// ListTasksOutput wraps the task list for Huma.
type ListTasksOutput struct {
	Body TaskListResponse
}

// TaskOutput wraps a single task for Huma.
type TaskOutput struct {
	Body domain.Task
}

func (s *Server) handleListTasks(ctx context.Context, _ *struct{}) (*ListTasksOutput, error) {
	c, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	tasks, err := s.services.Tasks.List(ctx, c.user.ID)
	if err != nil {
		return nil, s.fail("listTasks", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return &ListTasksOutput{Body: TaskListResponse{Tasks: tasks}}, nil
}

func (s *Server) handleCreateTask(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
	c, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	task, err := s.services.Tasks.Create(ctx, domain.NewTask{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		UserID:      c.user.ID,
	})
	if err != nil {
		return nil, s.fail("createTask", err)
	}
	return &TaskOutput{Body: *task}, nil
}

func (s *Server) handleUpdateTask(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
	c, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	task, err := s.services.Tasks.Update(ctx, c.user.ID, input.ID, input.Body.Title, input.Body.Description)
	if err != nil {
		return nil, s.fail("updateTask", err)
	}
	return &TaskOutput{Body: *task}, nil
}

func (s *Server) handleDeleteTask(ctx context.Context, input *DeleteTaskInput) (*struct{}, error) {
	c, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Tasks.Delete(ctx, c.user.ID, input.ID); err != nil {
		return nil, s.fail("deleteTask", err)
	}
	return nil, nil
}
