package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	subscriptionAudience = "realtime"
	subscriptionTTL      = 1 * time.Hour
)

// OwnerChannel is the realtime channel carrying events for a single user.
func OwnerChannel(username string) string {
	return "owner/" + username
}

// OrgChannel is the realtime channel carrying events for a whole organization.
func OrgChannel(orgID string) string {
	return "org/" + orgID
}

type subscriptionClaims struct {
	Channels []string `json:"channels"`
	jwt.RegisteredClaims
}

// IssueSubscriptionToken returns a short-lived token scoping which realtime
// channels the user may subscribe to, plus the channel list and expiry.
func (c *CapabilityIssuer) IssueSubscriptionToken(user User) (string, []string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(subscriptionTTL)
	channels := []string{OwnerChannel(user.Username), OrgChannel(user.Organization)}

	claims := subscriptionClaims{
		Channels: channels,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    capabilityIssuer,
			Subject:   user.Username,
			Audience:  []string{subscriptionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", nil, time.Time{}, fmt.Errorf("failed to sign subscription token: %w", err)
	}
	return signed, channels, expiresAt, nil
}

// VerifySubscriptionToken returns the channels the token grants access to.
func (c *CapabilityIssuer) VerifySubscriptionToken(token string) ([]string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(capabilityIssuer),
		jwt.WithAudience(subscriptionAudience),
		jwt.WithExpirationRequired(),
	)

	claims := &subscriptionClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to verify subscription token: %w", err)
	}

	return claims.Channels, nil
}
