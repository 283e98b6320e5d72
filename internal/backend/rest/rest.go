// Package rest implements the backend transport for a hosted
// PostgREST + GoTrue service (the wire format Supabase speaks).
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/ratelimit"
)

const (
	defaultTimeout = 15 * time.Second

	// Outbound budget shared by every visitor of this process.
	defaultRPS   = 20.0
	defaultBurst = 40

	maxErrorBody = 4 << 10
)

// Transport talks to {baseURL}/rest/v1 and {baseURL}/auth/v1.
type Transport struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *logger.Logger
}

// New creates a transport for the service at baseURL authenticated with
// the project's anonymous key.
func New(baseURL, anonKey string, log *logger.Logger) (*Transport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Transport{
		baseURL: u,
		anonKey: anonKey,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: ratelimit.New(defaultRPS, defaultBurst, 10*time.Minute),
		logger:  log,
	}, nil
}

// Close releases resources held by the transport.
func (t *Transport) Close() {
	t.limiter.Stop()
}

// apiError is the error body shape shared by PostgREST and GoTrue.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             any    `json:"code"`
	Hint             string `json:"hint"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (t *Transport) do(ctx context.Context, method, path string, query url.Values, body []byte, token string, headers map[string]string) ([]byte, error) {
	if err := t.limiter.Wait(ctx, t.baseURL.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := *t.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("apikey", t.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token == "" {
		token = t.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	t.logger.Debug("backend request", "method", method, "path", path)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeBackend, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeBackend, "read response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, statusError(resp.StatusCode, data)
}

func statusError(status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.text()
	if msg == "" {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	code := domainerrors.CodeForStatus(status)
	// GoTrue answers a bad password with 400 invalid_grant.
	if status == http.StatusBadRequest && (apiErr.Error == "invalid_grant" || apiErr.Code == "invalid_credentials") {
		code = domainerrors.CodeInvalidCredentials
	}
	// PostgREST reports row-level security rejections with SQLSTATE 42501.
	if apiErr.Code == "42501" {
		code = domainerrors.CodeForbidden
	}

	return &domainerrors.Error{Code: code, Message: msg, Details: map[string]any{"status": status}}
}
