package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

// Identity is the local user summary carried by the access token claims.
type Identity struct {
	UserId    string
	FirstName string
	LastName  string
	Role      types.UserRole
	ExpiresAt time.Time
}

func (i Identity) User() types.User {
	return types.User{
		Id:        i.UserId,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Role:      i.Role,
	}
}

// Expired reports whether the token carrying this identity has expired. A
// token without an exp claim never expires from the client's point of view.
func (i Identity) Expired() bool {
	return !i.ExpiresAt.IsZero() && time.Now().After(i.ExpiresAt)
}

// IdentityFromToken decodes the access token claims without verifying the
// signature. The token was issued to this client; the server re-verifies it
// on every request, so the client only reads it.
func IdentityFromToken(tokenString string) (Identity, error) {
	parser := &jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return Identity{}, fmt.Errorf("parse access token: %w", err)
	}

	userId, _ := claims["sub"].(string)
	if userId == "" {
		return Identity{}, fmt.Errorf("access token missing sub claim")
	}

	ident := Identity{UserId: userId}
	if role, ok := claims["role"].(string); ok {
		ident.Role = types.UserRole(role)
	}
	if firstName, ok := claims["firstName"].(string); ok {
		ident.FirstName = firstName
	}
	if lastName, ok := claims["lastName"].(string); ok {
		ident.LastName = lastName
	}
	if exp, ok := claims["exp"].(float64); ok {
		ident.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return ident, nil
}
