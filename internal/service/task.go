package service

import (
	"context"
	"fmt"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/validation"
)

// TaskService manages the signed-in user's personal tasks.
type TaskService struct {
	client    *backend.Client
	validator *validation.Validator
	logger    *logger.Logger
}

// NewTaskService creates a new task service.
func NewTaskService(client *backend.Client, v *validation.Validator, log *logger.Logger) *TaskService {
	return &TaskService{client: client, validator: v, logger: log}
}

// List returns the tasks owned by ownerID, newest first.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	if ownerID == "" {
		return nil, domainerrors.Unauthorized("task owner required")
	}

	var tasks []domain.Task
	err := s.client.From(domain.TableTasks).
		Select("*").
		Eq("user_id", ownerID).
		Order("created_at", false).
		Scan(ctx, &tasks)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts one task owned by nt.UserID.
func (s *TaskService) Create(ctx context.Context, nt domain.NewTask) (*domain.Task, error) {
	if err := s.validator.Validate(nt); err != nil {
		return nil, err
	}

	var task domain.Task
	err := s.client.From(domain.TableTasks).
		Insert(nt).
		Select("*").
		One(ctx, &task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Debug("task created", "task_id", task.ID, "user_id", task.UserID)
	return &task, nil
}

// Update writes title and description to task taskID, re-asserting
// ownerID as its owner. It fails with NOT_FOUND when no row the caller may
// change matched.
func (s *TaskService) Update(ctx context.Context, ownerID, taskID, title, description string) (*domain.Task, error) {
	patch := domain.TaskPatch{Title: title, Description: description, UserID: ownerID}
	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}

	var task domain.Task
	err := s.client.From(domain.TableTasks).
		Update(patch).
		Eq("id", taskID).
		Select("*").
		One(ctx, &task)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &task, nil
}

// Delete removes task taskID if ownerID owns it. Deleting someone else's
// task matches nothing and is not an error.
func (s *TaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	if ownerID == "" {
		return domainerrors.Unauthorized("task owner required")
	}

	_, err := s.client.From(domain.TableTasks).
		Delete().
		Eq("id", taskID).
		Eq("user_id", ownerID).
		Execute(ctx)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
