package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createToken",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/token",
		Summary:     "Sign in",
		Description: "Exchanges email and password for backend access and refresh tokens",
		Tags:        []string{"Authentication"},
	}, s.handleCreateToken)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/session",
		Summary:     "Current session",
		Description: "Returns the caller's identity and whether they may manage the catalog",
		Tags:        []string{"Authentication"},
		Security:    bearer,
	}, s.handleGetSession)
}

// TokenRequest is the request body for signing in.
type TokenRequest struct {
	Email    string `json:"email" minLength:"1" maxLength:"254" doc:"User email"`
	Password string `json:"password" minLength:"1" maxLength:"1024" doc:"User password"`
}

// TokenInput wraps the sign-in request for Huma.
type TokenInput struct {
	Body TokenRequest
}

// SessionUser describes the signed-in user.
type SessionUser struct {
	ID        string `json:"id" doc:"User ID"`
	Email     string `json:"email" doc:"User email"`
	Role      string `json:"role,omitempty" doc:"Application role"`
	Librarian bool   `json:"librarian" doc:"Whether the user may manage the catalog"`
}

// TokenResponse carries a freshly issued backend session.
type TokenResponse struct {
	AccessToken  string      `json:"access_token" doc:"Backend access token, sent as Bearer"`
	RefreshToken string      `json:"refresh_token" doc:"Backend refresh token"`
	ExpiresAt    time.Time   `json:"expires_at" doc:"Access token expiry"`
	User         SessionUser `json:"user" doc:"Signed-in user"`
}

// TokenOutput wraps the token response for Huma.
type TokenOutput struct {
	Body TokenResponse
}

// SessionOutput wraps the session user for Huma.
type SessionOutput struct {
	Body SessionUser
}

func sessionUser(u *backend.User) SessionUser {
	role := u.AppRole()
	return SessionUser{
		ID:        u.ID,
		Email:     u.Email,
		Role:      role,
		Librarian: domain.IsLibrarian(role),
	}
}

func (s *Server) handleCreateToken(ctx context.Context, input *TokenInput) (*TokenOutput, error) {
	if s.signInLimiter != nil && !s.signInLimiter.Allow(clientIP(ctx)) {
		s.logger.Warn("Sign-in rate limit exceeded", "ip", clientIP(ctx))
		return nil, s.fail("createToken", domainerrors.ErrRateLimited)
	}

	session, err := s.client.SignInWithPassword(ctx, backend.Credentials{
		Email:    input.Body.Email,
		Password: input.Body.Password,
	})
	if err != nil {
		return nil, s.fail("createToken", err)
	}

	return &TokenOutput{Body: TokenResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.Expiry().UTC(),
		User:         sessionUser(&session.User),
	}}, nil
}

func (s *Server) handleGetSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	c, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{Body: sessionUser(c.user)}, nil
}
