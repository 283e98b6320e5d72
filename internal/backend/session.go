package backend

import (
	"time"
)

// Session is an authenticated backend session.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	// ExpiresAt is a unix timestamp in seconds.
	ExpiresAt int64 `json:"expires_at"`
	User      User  `json:"user"`
}

// Expiry returns the access token expiry.
func (s *Session) Expiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// ExpiresWithin reports whether the access token expires before now+d.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return !now.Add(d).Before(s.Expiry())
}

// User is the identity attached to a session.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AppRole returns the application role: app_metadata.role when present,
// otherwise the top-level role claim.
func (u *User) AppRole() string {
	if u == nil {
		return ""
	}
	if role, ok := u.AppMetadata["role"].(string); ok && role != "" {
		return role
	}
	return u.Role
}
