package auth

import (
	"context"
	"crypto/subtle"

	"github.com/yourname/focustracker/internal"
)

// LocalAuthProvider accepts a single static token for development.
type LocalAuthProvider struct {
	Token  string
	UserID string
	logger internal.Logger
}

func (a *LocalAuthProvider) Authenticate(ctx context.Context, token string) (*internal.User, error) {
	if a.Token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) == 1 {
		return &internal.User{ID: a.UserID, Name: "Demo User", IsActive: true}, nil
	}
	a.logger.Warnf("invalid token")
	return nil, ErrInvalidToken
}

func NewLocalAuthProvider(token, userID string, logger internal.Logger) *LocalAuthProvider {
	return &LocalAuthProvider{Token: token, UserID: userID, logger: logger}
}
