package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	capabilityIssuer   = "media-pipeline"
	capabilityAudience = "webhook"

	// compute backends may hold a job for a long time before reporting
	defaultCapabilityTTL = 7 * 24 * time.Hour
)

var ErrTokenJobMismatch = errors.New("token is not scoped to this job")

// CapabilityIssuer mints and verifies per-job webhook tokens. A token is
// scoped to exactly one job; presenting it against another job's handle is an
// authorization failure.
type CapabilityIssuer struct {
	secret []byte
}

func NewCapabilityIssuer(secret string) *CapabilityIssuer {
	return &CapabilityIssuer{secret: []byte(secret)}
}

type capabilityClaims struct {
	jwt.RegisteredClaims
}

// IssueJobToken returns a signed token the compute backend must present when
// posting events for the given job.
func (c *CapabilityIssuer) IssueJobToken(jobID uuid.UUID) (string, error) {
	now := time.Now()
	claims := capabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    capabilityIssuer,
			Subject:   jobID.String(),
			Audience:  []string{capabilityAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(defaultCapabilityTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign job token: %w", err)
	}
	return signed, nil
}

// VerifyJobToken checks the token signature and that it is scoped to jobID.
func (c *CapabilityIssuer) VerifyJobToken(token string, jobID uuid.UUID) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(capabilityIssuer),
		jwt.WithAudience(capabilityAudience),
		jwt.WithExpirationRequired(),
	)

	claims := &capabilityClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}); err != nil {
		return fmt.Errorf("failed to verify job token: %w", err)
	}

	if claims.Subject != jobID.String() {
		return ErrTokenJobMismatch
	}
	return nil
}
