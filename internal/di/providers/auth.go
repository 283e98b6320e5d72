package providers

import (
	"os"

	"aidanwoods.dev/go-paseto"
	"github.com/samber/do/v2"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/config"
	"github.com/librarydesk/librarian/internal/logger"
)

// AuthKey wraps the symmetric key shared by local access tokens and
// visitor cookies.
type AuthKey struct {
	paseto.V4SymmetricKey
}

// ProvideAuthKey loads or generates the authentication key.
func ProvideAuthKey(i do.Injector) (*AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Data.Path, 0o750); err != nil {
		return nil, err
	}
	key, err := auth.LoadOrGenerateKey(cfg.Data.KeyPath())
	if err != nil {
		return nil, err
	}

	log.Info("Authentication key loaded",
		"path", cfg.Data.KeyPath(),
		"access_token_duration", cfg.Data.AccessTokenDuration,
		"refresh_token_duration", cfg.Data.RefreshTokenDuration,
	)

	return &AuthKey{V4SymmetricKey: key}, nil
}

// ProvideTokenService provides the PASETO token service of the local backend.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[*AuthKey](i)

	return auth.NewTokenService(key.V4SymmetricKey, cfg.Data.AccessTokenDuration, cfg.Data.RefreshTokenDuration), nil
}

// ProvideCookieSealer provides the visitor cookie sealer.
func ProvideCookieSealer(i do.Injector) (*auth.CookieSealer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[*AuthKey](i)

	return auth.NewCookieSealer(key.V4SymmetricKey, cfg.Session.TTL), nil
}
