package web

import (
	"net/http"

	"github.com/librarydesk/librarian/internal/backend"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/forms"
	"github.com/librarydesk/librarian/internal/gate"
	"github.com/librarydesk/librarian/internal/sse"
	"github.com/librarydesk/librarian/internal/workspace"
)

// Message shown after a sign-up that needs email confirmation.
const confirmEmailMessage = "Check your email for the confirmation link."

func (s *Server) loginPage(state gate.State, notices []workspace.Notice) loginPage {
	return loginPage{
		pageData: pageData{Title: "Sign In", View: sse.ViewLogin, Email: state.Email, Notices: notices},
		Login:    formView{Prefix: "login", Schema: forms.Login},
		SignUp:   formView{Prefix: "signup", Schema: forms.Login},
	}
}

// credentials parses the login form. The password is never echoed back.
func credentials(r *http.Request) (backend.Credentials, forms.Values, forms.Errors) {
	values, errs := forms.Login.Parse(r.PostForm)
	creds := backend.Credentials{Email: values.Text("email"), Password: values["password"]}
	delete(values, "password")
	return creds, values, errs
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := visitorKey(ctx)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	creds, values, errs := credentials(r)
	page := s.loginPage(gate.State{}, nil)
	page.Login.Values, page.Login.Errors = values, errs
	if errs != nil {
		s.views.render(w, http.StatusUnprocessableEntity, pageLogin, page)
		return
	}

	if _, err := s.deps.Gate.SignIn(ctx, key, creds); err != nil {
		s.logger.WithVisitor(key).WithError(err).Info("Sign-in failed")
		page.Message = domainerrors.MessageOf(err)
		s.views.render(w, domainerrors.CodeOf(err).HTTPStatus(), pageLogin, page)
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := visitorKey(ctx)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	creds, values, errs := credentials(r)
	page := s.loginPage(gate.State{}, nil)
	page.SignUp.Values, page.SignUp.Errors = values, errs
	if errs != nil {
		s.views.render(w, http.StatusUnprocessableEntity, pageLogin, page)
		return
	}

	state, err := s.deps.Gate.SignUp(ctx, key, creds)
	if err != nil {
		s.logger.WithVisitor(key).WithError(err).Info("Sign-up failed")
		page.Message = domainerrors.MessageOf(err)
		s.views.render(w, domainerrors.CodeOf(err).HTTPStatus(), pageLogin, page)
		return
	}
	if !state.Authenticated {
		page.SignUp.Values = nil
		page.Notices = []workspace.Notice{{Level: workspace.LevelInfo, Message: confirmEmailMessage}}
		s.views.render(w, http.StatusOK, pageLogin, page)
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	key := visitorKey(r.Context())
	s.deps.Gate.SignOut(r.Context(), key)
	s.deps.Workspaces.Forget(key)
	redirect(w, r, "/")
}
