package auth

import (
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

const (
	visitorAudience = "librarian-visitor"
	visitorClaim    = "vk"
)

// visitorImplicit binds cookie tokens to their purpose so an access token
// encrypted with the same key never decrypts as a cookie.
var visitorImplicit = []byte("librarian visitor cookie")

// CookieSealer encrypts visitor keys into opaque cookie values.
type CookieSealer struct {
	key paseto.V4SymmetricKey
	ttl time.Duration
	now func() time.Time
}

// NewCookieSealer creates a sealer whose cookies expire after ttl.
func NewCookieSealer(key paseto.V4SymmetricKey, ttl time.Duration) *CookieSealer {
	return &CookieSealer{key: key, ttl: ttl, now: time.Now}
}

// Seal returns the cookie value carrying visitorKey.
func (c *CookieSealer) Seal(visitorKey string) string {
	now := c.now()

	token := paseto.NewToken()
	token.SetAudience(visitorAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(c.ttl))
	token.SetString(visitorClaim, visitorKey)

	return token.V4Encrypt(c.key, visitorImplicit)
}

// Open returns the visitor key carried by a cookie value.
func (c *CookieSealer) Open(value string) (string, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(visitorAudience))
	parser.AddRule(paseto.ValidAt(c.now()))

	token, err := parser.ParseV4Local(c.key, value, visitorImplicit)
	if err != nil {
		return "", fmt.Errorf("open visitor cookie: %w", err)
	}

	key, err := token.GetString(visitorClaim)
	if err != nil {
		return "", fmt.Errorf("visitor cookie missing key: %w", err)
	}
	return key, nil
}

// TTL returns the cookie lifetime.
func (c *CookieSealer) TTL() time.Duration {
	return c.ttl
}
