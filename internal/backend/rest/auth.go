package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/librarydesk/librarian/internal/backend"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
)

// SignInWithPassword implements backend.Transport.
func (t *Transport) SignInWithPassword(ctx context.Context, creds backend.Credentials) (*backend.Session, error) {
	return t.token(ctx, "password", creds)
}

// RefreshSession implements backend.Transport.
func (t *Transport) RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error) {
	return t.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (t *Transport) token(ctx context.Context, grant string, payload any) (*backend.Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s grant: %w", grant, err)
	}
	data, err := t.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {grant}}, body, "", nil)
	if err != nil {
		return nil, err
	}
	return decodeSession(data)
}

// SignUp implements backend.Transport. When the project requires email
// confirmation GoTrue answers with the user only and SignUp returns nil.
func (t *Transport) SignUp(ctx context.Context, creds backend.Credentials) (*backend.Session, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("marshal signup: %w", err)
	}
	data, err := t.do(ctx, http.MethodPost, "/auth/v1/signup", nil, body, "", nil)
	if err != nil {
		return nil, err
	}

	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBackend, "decode signup response")
	}
	if probe.AccessToken == "" {
		return nil, nil
	}
	return decodeSession(data)
}

// GetUser implements backend.Transport.
func (t *Transport) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	if accessToken == "" {
		return nil, domainerrors.Unauthorized("no access token")
	}
	data, err := t.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, accessToken, nil)
	if err != nil {
		return nil, err
	}
	var user backend.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBackend, "decode user")
	}
	return &user, nil
}

// SignOut implements backend.Transport.
func (t *Transport) SignOut(ctx context.Context, accessToken string) error {
	_, err := t.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, accessToken, nil)
	return err
}

func decodeSession(data []byte) (*backend.Session, error) {
	var session backend.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBackend, "decode session")
	}
	if session.AccessToken == "" {
		return nil, domainerrors.Backend("session response without access token")
	}
	return &session, nil
}
