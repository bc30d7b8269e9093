package auth

import (
	"context"
	"fmt"

	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/config"
)

// ErrInvalidToken is returned by every provider for a token it does not accept.
var ErrInvalidToken = &internal.Error{Kind: internal.ErrUnauthenticated, Msg: "invalid token"}

// Provider turns a bearer token into the user it was issued to.
type Provider interface {
	Authenticate(ctx context.Context, token string) (*internal.User, error)
}

// NewProvider builds the provider selected by cfg.AuthMode.
func NewProvider(cfg *config.Config, logger internal.Logger) (Provider, error) {
	switch cfg.AuthMode {
	case config.AuthLocal:
		return NewLocalAuthProvider(cfg.AuthToken, cfg.AuthUserID, logger), nil
	case config.AuthJWT:
		return NewJWTAuthProvider([]byte(cfg.JWTSecret), logger), nil
	case config.AuthRemote:
		return NewRemoteAuthProvider(cfg.AuthServiceURL, logger), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.AuthMode)
	}
}
