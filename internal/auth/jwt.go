package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("auth: missing credentials")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims are the console's JWT claims.
type Claims struct {
	Subject        string
	Role           string
	OrganizationID string
}

// ParseJWT validates the token signature and extracts claims.
func ParseJWT(token string, secret []byte) (Claims, error) {
	if token == "" {
		return Claims{}, ErrUnauthorized
	}
	if len(secret) == 0 {
		return Claims{}, ErrInvalidToken
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	claims := Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = role
	}
	if org, ok := mapClaims["org"].(string); ok {
		claims.OrganizationID = org
	}
	return claims, nil
}
