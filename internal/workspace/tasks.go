package workspace

import (
	"context"
	"maps"
	"net/url"
	"slices"
	"time"

	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/forms"
)

type taskBoard struct {
	owner  string
	loaded bool
	tasks  []domain.Task
	form   forms.Values
	errors forms.Errors
	// drafts holds edits in progress keyed by task id. The fetched list is
	// never modified by editing.
	drafts      map[string]forms.Values
	draftErrors map[string]forms.Errors
}

func (b *taskBoard) reset() {
	*b = taskBoard{
		form:        forms.Task.Defaults(time.Time{}),
		drafts:      make(map[string]forms.Values),
		draftErrors: make(map[string]forms.Errors),
	}
}

// TaskRow is one rendered task: the stored row, plus its draft when the
// task is being edited.
type TaskRow struct {
	Task        domain.Task
	Editing     bool
	Draft       forms.Values
	DraftErrors forms.Errors
}

// TaskBoardView is a render-ready copy of the task board.
type TaskBoardView struct {
	Owner      string
	Rows       []TaskRow
	Form       forms.Values
	FormErrors forms.Errors
}

// Tasks returns a snapshot of the task board.
func (ws *Workspace) Tasks() TaskBoardView {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	b := &ws.board

	rows := make([]TaskRow, len(b.tasks))
	for i, t := range b.tasks {
		draft, editing := b.drafts[t.ID]
		rows[i] = TaskRow{Task: t, Editing: editing, Draft: maps.Clone(draft), DraftErrors: b.draftErrors[t.ID]}
	}
	return TaskBoardView{
		Owner:      b.owner,
		Rows:       rows,
		Form:       maps.Clone(b.form),
		FormErrors: b.errors,
	}
}

// LoadTasks fetches ownerID's tasks on first use and whenever the owner
// changes. A change of owner also discards drafts.
func (ws *Workspace) LoadTasks(ctx context.Context, ownerID string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.board.loaded && ws.board.owner == ownerID {
		return
	}
	if ws.board.owner != ownerID {
		ws.board.reset()
		ws.board.owner = ownerID
	}
	ws.board.loaded = true
	ws.refetchTasks(ctx)
}

// refetchTasks must be called with ws.mu held. On failure the list is left
// as it was.
func (ws *Workspace) refetchTasks(ctx context.Context) {
	tasks, err := ws.svc.Tasks.List(ctx, ws.board.owner)
	if err != nil {
		ws.logger.WithError(err).Error("failed to fetch tasks")
		ws.notify(LevelError, "Could not load tasks: "+domainerrors.MessageOf(err))
		return
	}
	ws.board.tasks = tasks
}

// CreateTask submits the new task form for the current owner. On success
// the form clears and the task is prepended.
func (ws *Workspace) CreateTask(ctx context.Context, form url.Values) (*domain.Task, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	values, errs := forms.Task.Parse(form)
	ws.board.form = values
	ws.board.errors = errs
	if errs != nil {
		return nil, domainerrors.ValidationWithDetails("invalid task", map[string]string(errs))
	}

	task, err := ws.svc.Tasks.Create(ctx, domain.NewTask{
		Title:       values.Text("title"),
		Description: values.Text("description"),
		UserID:      ws.board.owner,
	})
	if err != nil {
		ws.logger.WithError(err).Error("failed to create task")
		ws.notify(LevelError, "Error creating task: "+domainerrors.MessageOf(err))
		return nil, err
	}

	ws.board.tasks = slices.Insert(ws.board.tasks, 0, *task)
	ws.board.form = forms.Task.Defaults(time.Time{})
	ws.board.errors = nil
	return task, nil
}

// EditTask opens a draft of taskID pre-populated from the fetched row.
func (ws *Workspace) EditTask(taskID string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	i := slices.IndexFunc(ws.board.tasks, func(t domain.Task) bool { return t.ID == taskID })
	if i < 0 {
		return domainerrors.NotFoundf("task %s not found", taskID)
	}
	ws.board.drafts[taskID] = forms.TaskValues(ws.board.tasks[i])
	delete(ws.board.draftErrors, taskID)
	return nil
}

// SaveTask writes the submitted draft of taskID. On success the draft is
// dropped and the list refetched; on failure the draft stays and the list
// is unchanged.
func (ws *Workspace) SaveTask(ctx context.Context, taskID string, form url.Values) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if _, ok := ws.board.drafts[taskID]; !ok {
		return domainerrors.NotFoundf("task %s is not being edited", taskID)
	}

	values, errs := forms.Task.Parse(form)
	ws.board.drafts[taskID] = values
	if errs != nil {
		ws.board.draftErrors[taskID] = errs
		return domainerrors.ValidationWithDetails("invalid task", map[string]string(errs))
	}

	_, err := ws.svc.Tasks.Update(ctx, ws.board.owner, taskID, values.Text("title"), values.Text("description"))
	if err != nil {
		ws.logger.WithError(err).Error("failed to update task", "task_id", taskID)
		ws.notify(LevelError, "Error updating task: "+domainerrors.MessageOf(err))
		return err
	}

	delete(ws.board.drafts, taskID)
	delete(ws.board.draftErrors, taskID)
	ws.refetchTasks(ctx)
	return nil
}

// CancelEdit discards the draft of taskID.
func (ws *Workspace) CancelEdit(taskID string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.board.drafts, taskID)
	delete(ws.board.draftErrors, taskID)
}

// DeleteTask deletes taskID for the current owner and refetches.
func (ws *Workspace) DeleteTask(ctx context.Context, taskID string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if err := ws.svc.Tasks.Delete(ctx, ws.board.owner, taskID); err != nil {
		ws.logger.WithError(err).Error("failed to delete task", "task_id", taskID)
		ws.notify(LevelError, "Error deleting task: "+domainerrors.MessageOf(err))
		return err
	}

	delete(ws.board.drafts, taskID)
	delete(ws.board.draftErrors, taskID)
	ws.refetchTasks(ctx)
	return nil
}
