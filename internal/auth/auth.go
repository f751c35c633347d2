package auth

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mediaforge/media-pipeline/internal/config"
)

type tokenKeyType struct{}

var (
	tokenKey tokenKeyType
)

func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(tokenKey)
	if val == nil {
		return User{}, false
	}
	return val.(User), true
}

func MustHaveUser(ctx context.Context) User {
	user, found := UserFromContext(ctx)
	if !found {
		zap.S().Named("auth").Panic("failed to find user in context")
	}
	return user
}

func NewTokenContext(ctx context.Context, t any) context.Context {
	return context.WithValue(ctx, tokenKey, t)
}

type User struct {
	Username     string
	Organization string
	Token        *jwt.Token
}

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	LocalAuthentication string = "local"
	NoneAuthentication  string = "none"
)

func NewAuthenticator(authConfig config.Auth) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case LocalAuthentication:
		return NewLocalAuthenticator(authConfig.SigningSecret)
	default:
		return NewNoneAuthenticator()
	}
}
