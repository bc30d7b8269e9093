package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/config"
)

func signed(t *testing.T, secret string, c jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestLocalAuthProvider(t *testing.T) {
	p := NewLocalAuthProvider("MOCK-TOKEN", "u1", internal.NopLogger())

	user, err := p.Authenticate(context.Background(), "MOCK-TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = p.Authenticate(context.Background(), "nope")
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))
}

func TestJWTAuthProvider(t *testing.T) {
	p := NewJWTAuthProvider([]byte("s3cret"), internal.NopLogger())
	ctx := context.Background()

	token := signed(t, "s3cret", claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"}, Email: "a@b.c"})
	user, err := p.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", user.ID)
	assert.Equal(t, "a@b.c", user.Email)

	legacy := signed(t, "s3cret", jwt.MapClaims{"id": "legacy-7"})
	user, err = p.Authenticate(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, "legacy-7", user.ID)

	rejected := map[string]string{
		"wrong secret": signed(t, "other", jwt.MapClaims{"sub": "u"}),
		"expired": signed(t, "s3cret", jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}),
		"no subject": signed(t, "s3cret", jwt.MapClaims{"name": "x"}),
		"garbage":    "not.a.jwt",
	}
	for name, token := range rejected {
		_, err := p.Authenticate(ctx, token)
		assert.True(t, errors.Is(err, internal.ErrUnauthenticated), name)
	}
}

func TestRemoteAuthProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body.Token {
		case "good":
			json.NewEncoder(w).Encode(internal.User{ID: "remote-1", Name: "Remote"})
		case "down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	p := NewRemoteAuthProvider(srv.URL, internal.NopLogger())
	ctx := context.Background()

	user, err := p.Authenticate(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", user.ID)

	_, err = p.Authenticate(ctx, "bad")
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))

	_, err = p.Authenticate(ctx, "down")
	require.Error(t, err)
	assert.False(t, errors.Is(err, internal.ErrUnauthenticated))
}

func TestNewProvider(t *testing.T) {
	cases := map[string]Provider{
		config.AuthLocal:  &LocalAuthProvider{},
		config.AuthJWT:    &JWTAuthProvider{},
		config.AuthRemote: &RemoteAuthProvider{},
	}
	for mode, want := range cases {
		p, err := NewProvider(&config.Config{AuthMode: mode}, internal.NopLogger())
		require.NoError(t, err)
		assert.IsType(t, want, p)
	}
	_, err := NewProvider(&config.Config{AuthMode: "basic"}, internal.NopLogger())
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(NewLocalAuthProvider("MOCK-TOKEN", "u1", internal.NopLogger()), internal.NopLogger()))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"owner": OwnerFrom(c).ID()})
	})

	cases := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer ", http.StatusUnauthorized},
		{"Basic MOCK-TOKEN", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer MOCK-TOKEN", http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.header)
		if tc.status == http.StatusOK {
			assert.JSONEq(t, `{"owner":"u1"}`, w.Body.String())
		} else {
			assert.Contains(t, w.Body.String(), `"code":401`)
		}
	}
}
