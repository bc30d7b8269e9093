package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yourname/focustracker/internal"
)

// claims accepts the subject or, for tokens minted by the older service, an
// "id" claim as the user id.
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// JWTAuthProvider verifies HS256 tokens signed with a shared secret.
type JWTAuthProvider struct {
	secret []byte
	logger internal.Logger
}

func NewJWTAuthProvider(secret []byte, logger internal.Logger) *JWTAuthProvider {
	return &JWTAuthProvider{secret: secret, logger: logger}
}

func (a *JWTAuthProvider) Authenticate(ctx context.Context, token string) (*internal.User, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		a.logger.Warnf("jwt rejected: %v", err)
		return nil, ErrInvalidToken
	}

	userID := parsed.Subject
	if userID == "" {
		userID = parsed.UserID
	}
	if userID == "" {
		a.logger.Warnf("jwt has no subject")
		return nil, ErrInvalidToken
	}
	return &internal.User{ID: userID, Email: parsed.Email, Name: parsed.Name, IsActive: true}, nil
}
