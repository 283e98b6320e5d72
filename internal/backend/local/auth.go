package local

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/id"
)

const minPasswordLength = 6

type userRow struct {
	id           string
	email        string
	passwordHash string
	role         string
	createdAt    string
}

func (u userRow) toUser() (*backend.User, error) {
	created, err := parseTime(u.createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	user := &backend.User{
		ID:          u.id,
		Email:       u.email,
		Role:        "authenticated",
		AppMetadata: map[string]any{"provider": "email"},
		CreatedAt:   created,
	}
	if u.role != "" {
		user.AppMetadata["role"] = u.role
	}
	return user, nil
}

func (b *Backend) userBy(ctx context.Context, column, value string) (*userRow, error) {
	var u userRow
	err := b.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, created_at FROM users WHERE `+column+` = ?`, value,
	).Scan(&u.id, &u.email, &u.passwordHash, &u.role, &u.createdAt)
	if err == sql.ErrNoRows {
		return nil, domainerrors.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(creds backend.Credentials) error {
	if _, err := mail.ParseAddress(creds.Email); err != nil {
		return domainerrors.Validation("Unable to validate email address: invalid format")
	}
	if len(creds.Password) < minPasswordLength {
		return domainerrors.Validationf("Password should be at least %d characters", minPasswordLength)
	}
	return nil
}

// CreateUser registers a user with role. Used by SignUp and the CLI.
func (b *Backend) CreateUser(ctx context.Context, creds backend.Credentials, role string) (*backend.User, error) {
	creds.Email = normalizeEmail(creds.Email)
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := b.timestamp()
	u := userRow{id: id.Row(), email: creds.Email, passwordHash: hash, role: role, createdAt: now}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.id, u.email, u.passwordHash, u.role, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, domainerrors.Conflict("User already registered")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u.toUser()
}

// SetRole assigns role to the user registered under email.
func (b *Backend) SetRole(ctx context.Context, email, role string) error {
	res, err := b.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE email = ?`,
		role, b.timestamp(), normalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domainerrors.NotFoundf("no user registered as %s", email)
	}
	return nil
}

// SignUp implements backend.Transport. New users are confirmed immediately
// and receive no role.
func (b *Backend) SignUp(ctx context.Context, creds backend.Credentials) (*backend.Session, error) {
	if _, err := b.CreateUser(ctx, creds, ""); err != nil {
		return nil, err
	}
	return b.SignInWithPassword(ctx, creds)
}

// SignInWithPassword implements backend.Transport.
func (b *Backend) SignInWithPassword(ctx context.Context, creds backend.Credentials) (*backend.Session, error) {
	u, err := b.userBy(ctx, "email", normalizeEmail(creds.Email))
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.InvalidCredentials("Invalid login credentials")
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(u.passwordHash, creds.Password) {
		return nil, domainerrors.InvalidCredentials("Invalid login credentials")
	}
	return b.issueSession(ctx, u)
}

// RefreshSession implements backend.Transport. Refresh tokens are single
// use: the presented token is revoked and a new one issued.
func (b *Backend) RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error) {
	hash := auth.HashRefreshToken(refreshToken)

	var (
		userID    string
		expiresAt string
		revoked   bool
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at, revoked FROM refresh_tokens WHERE token_hash = ?`, hash,
	).Scan(&userID, &expiresAt, &revoked)
	if err == sql.ErrNoRows {
		return nil, domainerrors.Unauthorized("Invalid Refresh Token: Refresh Token Not Found")
	}
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if revoked {
		return nil, domainerrors.Unauthorized("Invalid Refresh Token: Already Used")
	}
	expires, err := parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse refresh expiry: %w", err)
	}
	if !b.now().Before(expires) {
		return nil, &domainerrors.Error{Code: domainerrors.CodeSessionExpired, Message: "Invalid Refresh Token: Expired"}
	}

	if _, err := b.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?`, hash); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	u, err := b.userBy(ctx, "id", userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "refresh token owner not found")
	}
	return b.issueSession(ctx, u)
}

// GetUser implements backend.Transport.
func (b *Backend) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	claims, err := b.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "invalid JWT")
	}
	u, err := b.userBy(ctx, "id", claims.Subject)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.Unauthorized("user from token does not exist")
	}
	if err != nil {
		return nil, err
	}
	return u.toUser()
}

// SignOut implements backend.Transport by revoking every refresh token the
// user holds.
func (b *Backend) SignOut(ctx context.Context, accessToken string) error {
	claims, err := b.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "invalid JWT")
	}
	if _, err := b.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ? AND revoked = 0`, claims.Subject,
	); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

func (b *Backend) issueSession(ctx context.Context, u *userRow) (*backend.Session, error) {
	access, expires, err := b.tokens.GenerateAccessToken(auth.Identity{UserID: u.id, Email: u.email, Role: u.role})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := b.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := b.now()
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		auth.HashRefreshToken(refresh), u.id, formatTime(now.Add(b.tokens.RefreshTokenDuration())), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	user, err := u.toUser()
	if err != nil {
		return nil, err
	}
	return &backend.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(expires.Sub(now).Seconds()),
		ExpiresAt:    expires.Unix(),
		User:         *user,
	}, nil
}
