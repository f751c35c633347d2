package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type localClaims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// LocalAuthenticator validates HS256 user tokens signed with the service
// secret. Suitable for single-tenant deployments without an external IdP.
type LocalAuthenticator struct {
	secret []byte
}

func NewLocalAuthenticator(secret string) (*LocalAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}
	return &LocalAuthenticator{secret: []byte(secret)}, nil
}

func (a *LocalAuthenticator) Authenticate(token string) (User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())

	claims := &localClaims{}
	t, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return User{}, err
	}

	if claims.Subject == "" || claims.OrgID == "" {
		return User{}, errors.New("token is missing subject or org claim")
	}

	return User{
		Username:     claims.Subject,
		Organization: claims.OrgID,
		Token:        t,
	}, nil
}

func (a *LocalAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken := r.Header.Get("Authorization")
		if accessToken == "" || !strings.HasPrefix(accessToken, "Bearer ") {
			http.Error(w, "No token provided", http.StatusUnauthorized)
			return
		}

		user, err := a.Authenticate(strings.TrimPrefix(accessToken, "Bearer "))
		if err != nil {
			zap.S().Named("auth").Warnw("failed to authenticate user token", "error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := NewTokenContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
