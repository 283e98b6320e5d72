package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/forms"
	"github.com/librarydesk/librarian/internal/gate"
	"github.com/librarydesk/librarian/internal/http/response"
	"github.com/librarydesk/librarian/internal/sse"
	"github.com/librarydesk/librarian/internal/workspace"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	Visitors   int    `json:"visitors"`
	Workspaces int    `json:"workspaces"`
	Streams    int    `json:"streams"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Visitors:   s.deps.Gate.Len(),
		Workspaces: s.deps.Workspaces.Len(),
		Streams:    s.deps.SSE.ClientCount(),
	}, s.logger)
}

// visitor loads the gate state of the request's visitor. On failure it
// writes the error page and returns nil.
func (s *Server) visitor(w http.ResponseWriter, r *http.Request) *gate.Visitor {
	v, err := s.deps.Gate.Visitor(r.Context(), visitorKey(r.Context()))
	if err != nil {
		s.logger.WithError(err).Error("Failed to load visitor")
		if errors.Is(err, gate.ErrClosed) {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return nil
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	return v
}

// session resolves the signed-in visitor and its token-carrying context.
// Visitors that are signed out, or lack librarian rights when librarian is
// set, are sent back to the index and ok is false.
func (s *Server) session(w http.ResponseWriter, r *http.Request, librarian bool) (ctx context.Context, userID string, ws *workspace.Workspace, ok bool) {
	v := s.visitor(w, r)
	if v == nil {
		return nil, "", nil, false
	}
	state := v.State()
	if !state.Authenticated || (librarian && !state.Librarian) {
		redirect(w, r, "/")
		return nil, "", nil, false
	}
	ctx, userID, err := v.Context(r.Context())
	if err != nil {
		s.logger.WithVisitor(v.Key()).WithError(err).Info("Session no longer valid")
		redirect(w, r, "/")
		return nil, "", nil, false
	}
	ws = s.deps.Workspaces.Get(v.Key())
	ws.Bind(userID)
	return ctx, userID, ws, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(w, r)
	if v == nil {
		return
	}
	state := v.State()
	ws := s.deps.Workspaces.Get(v.Key())

	switch state.View() {
	case sse.ViewLogin:
		s.views.render(w, http.StatusOK, pageLogin, s.loginPage(state, ws.Notices()))
	case sse.ViewDenied:
		s.views.render(w, http.StatusForbidden, pageDenied, pageData{
			Title:   "Access Denied",
			View:    sse.ViewDenied,
			Email:   state.Email,
			Notices: ws.Notices(),
		})
	default:
		ctx, userID, ok := s.tokenContext(w, r, v)
		if !ok {
			return
		}
		ws.Bind(userID)
		if tab := r.URL.Query().Get("tab"); tab != "" {
			if err := ws.SetTab(tab); err != nil {
				http.Error(w, domainerrors.MessageOf(err), http.StatusBadRequest)
				return
			}
		}
		ws.Mount(ctx, false)
		s.renderDashboard(w, state, ws)
	}
}

func (s *Server) tokenContext(w http.ResponseWriter, r *http.Request, v *gate.Visitor) (context.Context, string, bool) {
	ctx, userID, err := v.Context(r.Context())
	if err != nil {
		s.logger.WithVisitor(v.Key()).WithError(err).Info("Session no longer valid")
		s.views.render(w, http.StatusOK, pageLogin, s.loginPage(gate.State{}, nil))
		return nil, "", false
	}
	return ctx, userID, true
}

func (s *Server) renderDashboard(w http.ResponseWriter, state gate.State, ws *workspace.Workspace) {
	dash := ws.Dashboard()
	s.views.render(w, http.StatusOK, pageDashboard, dashboardPage{
		pageData: pageData{
			Title:   "Librarian Dashboard",
			View:    sse.ViewDashboard,
			Email:   state.Email,
			Notices: ws.Notices(),
		},
		Dashboard:    dash,
		BookForm:     formView{Schema: forms.Book, Values: dash.BookForm, Errors: dash.BookErrors},
		CategoryForm: formView{Schema: forms.Category, Values: dash.CategoryForm, Errors: dash.CategoryErrors},
	})
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	ctx, _, ws, ok := s.session(w, r, true)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if _, err := ws.AddBook(ctx, r.PostForm); errors.Is(err, domainerrors.ErrBusy) {
		s.deps.SSE.EmitNotice(visitorKey(r.Context()), workspace.LevelInfo, "A book is already being added.")
	}
	redirect(w, r, "/")
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	ctx, _, ws, ok := s.session(w, r, true)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	_, _ = ws.AddCategory(ctx, r.PostForm)
	redirect(w, r, "/")
}

func (s *Server) handleReloadDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, _, ws, ok := s.session(w, r, true)
	if !ok {
		return
	}
	ws.Mount(ctx, true)
	redirect(w, r, "/")
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(w, r)
	if v == nil {
		return
	}
	state := v.State()
	if !state.Authenticated {
		redirect(w, r, "/")
		return
	}
	ctx, userID, ok := s.tokenContext(w, r, v)
	if !ok {
		return
	}

	ws := s.deps.Workspaces.Get(v.Key())
	ws.Bind(userID)
	ws.LoadTasks(ctx, userID)
	board := ws.Tasks()

	rows := make([]taskRowView, len(board.Rows))
	for i, row := range board.Rows {
		rows[i] = taskRowView{
			TaskRow: row,
			Form:    formView{Prefix: "task-" + row.Task.ID, Schema: forms.Task, Values: row.Draft, Errors: row.DraftErrors},
		}
	}
	s.views.render(w, http.StatusOK, pageTasks, tasksPage{
		pageData: pageData{
			Title:   "My Tasks",
			View:    state.View(),
			Email:   state.Email,
			Notices: ws.Notices(),
		},
		TaskForm: formView{Prefix: "new-task", Schema: forms.Task, Values: board.Form, Errors: board.FormErrors},
		Rows:     rows,
	})
}

// taskAction runs fn against the visitor's loaded task board and returns
// to the board.
func (s *Server) taskAction(fn func(ctx context.Context, ws *workspace.Workspace, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, userID, ws, ok := s.session(w, r, false)
		if !ok {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		ws.LoadTasks(ctx, userID)
		if err := fn(ctx, ws, r); err != nil {
			s.logger.WithVisitor(visitorKey(r.Context())).Debug("Task action failed", "path", r.URL.Path, "code", string(domainerrors.CodeOf(err)))
		}
		redirect(w, r, "/tasks")
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	s.taskAction(func(ctx context.Context, ws *workspace.Workspace, r *http.Request) error {
		_, err := ws.CreateTask(ctx, r.PostForm)
		return err
	})(w, r)
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request) {
	s.taskAction(func(_ context.Context, ws *workspace.Workspace, r *http.Request) error {
		return ws.EditTask(chi.URLParam(r, "id"))
	})(w, r)
}

func (s *Server) handleSaveTask(w http.ResponseWriter, r *http.Request) {
	s.taskAction(func(ctx context.Context, ws *workspace.Workspace, r *http.Request) error {
		return ws.SaveTask(ctx, chi.URLParam(r, "id"), r.PostForm)
	})(w, r)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s.taskAction(func(_ context.Context, ws *workspace.Workspace, r *http.Request) error {
		ws.CancelEdit(chi.URLParam(r, "id"))
		return nil
	})(w, r)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.taskAction(func(ctx context.Context, ws *workspace.Workspace, r *http.Request) error {
		return ws.DeleteTask(ctx, chi.URLParam(r, "id"))
	})(w, r)
}
