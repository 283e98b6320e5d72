package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/librarydesk/librarian/internal/forms"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/watcher"
	"github.com/librarydesk/librarian/internal/workspace"
)

//go:embed templates/*.html
var embedded embed.FS

// Page names.
const (
	pageLogin     = "login"
	pageDenied    = "denied"
	pageDashboard = "dashboard"
	pageTasks     = "tasks"
)

var pages = []string{pageLogin, pageDenied, pageDashboard, pageTasks}

// renderer executes page templates. When built over a directory it can
// reload them on change.
type renderer struct {
	fsys   fs.FS
	dir    string
	logger *logger.Logger

	mu    sync.RWMutex
	pages map[string]*template.Template

	watcher *watcher.Watcher
	wg      sync.WaitGroup
}

// newRenderer parses templates from dir, or from the embedded set when dir
// is empty.
func newRenderer(dir string, log *logger.Logger) (*renderer, error) {
	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	} else {
		fsys = os.DirFS(dir)
	}

	r := &renderer{fsys: fsys, dir: dir, logger: log}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		t, err := template.New(name).ParseFS(fsys, "layout.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// reload re-parses every page. On error the previous set stays in use.
func (r *renderer) reload() error {
	parsed, err := parsePages(r.fsys)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.pages = parsed
	r.mu.Unlock()
	return nil
}

// watch reloads templates whenever a file under the template directory
// settles. It is a no-op for embedded templates.
func (r *renderer) watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	w, err := watcher.New(r.logger, watcher.Options{})
	if err != nil {
		return err
	}
	if err := w.Watch(r.dir); err != nil {
		_ = w.Stop()
		return err
	}
	w.Start(ctx)
	r.watcher = w

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for event := range w.Events() {
			if err := r.reload(); err != nil {
				r.logger.WithError(err).Warn("Template reload failed", "path", event.Path)
				continue
			}
			r.logger.Info("Templates reloaded", "path", event.Path, "change", string(event.Type))
		}
	}()

	r.logger.Info("Watching templates", "dir", r.dir)
	return nil
}

func (r *renderer) close() error {
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Stop()
	r.wg.Wait()
	return err
}

// render executes page into a buffer first so a template error never
// produces a half-written page.
func (r *renderer) render(w http.ResponseWriter, status int, page string, data any) {
	r.mu.RLock()
	t, ok := r.pages[page]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("Unknown page", "page", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.WithError(err).Error("Failed to render page", "page", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// pageData is shared by every page.
type pageData struct {
	Title   string
	View    string
	Email   string
	Notices []workspace.Notice
}

type loginPage struct {
	pageData
	Message string
	Login   formView
	SignUp  formView
}

type dashboardPage struct {
	pageData
	Dashboard    workspace.DashboardView
	BookForm     formView
	CategoryForm formView
}

type tasksPage struct {
	pageData
	TaskForm formView
	Rows     []taskRowView
}

type taskRowView struct {
	workspace.TaskRow
	Form formView
}

// formView renders one schema with its values and errors.
type formView struct {
	Prefix string
	Schema forms.Schema
	Values forms.Values
	Errors forms.Errors
}

// fieldView is the data of the "field" template.
type fieldView struct {
	ID       string
	Field    forms.Field
	Type     string
	Textarea bool
	Value    string
	Error    string
	Min      string
	Max      string
}

// Input returns the template data for one field of the form.
func (f formView) Input(field forms.Field) fieldView {
	prefix := f.Prefix
	if prefix == "" {
		prefix = f.Schema.Name
	}
	v := fieldView{
		ID:       prefix + "-" + field.Name,
		Field:    field,
		Type:     string(field.Kind),
		Textarea: field.Kind == forms.KindTextarea,
		Value:    f.Values[field.Name],
		Error:    f.Errors[field.Name],
		Max:      f.Values.Max(field),
	}
	if field.Min != nil {
		v.Min = strconv.Itoa(*field.Min)
	}
	return v
}
