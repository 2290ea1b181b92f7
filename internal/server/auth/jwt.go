// Package auth issues and checks the HS256 JWTs that guard the
// administrative and service-to-service RPCs.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docdelivery/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the role claim.
const (
	RoleService = "service"
	RoleAdmin   = "admin"
)

// Claims are the standard registered claims plus the caller's role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IsAdmin reports whether the claims grant administrative access.
func (c *Claims) IsAdmin() bool { return c.Role == RoleAdmin }

func GenerateToken(subject, role string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Role: role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns its claims. Every failure
// wraps common.ErrUnauthorized.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}

	if !token.Valid {
		return nil, common.ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrUnauthorized)
	}

	return claims, nil
}
