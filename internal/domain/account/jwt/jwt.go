package jwt

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"time"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

// Identity is what an access token carries besides the subject.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Email    string
}

type JWTUtil interface {
	GenerateAccessToken(id Identity) (token string, exp time.Time, jti string, err error)
	GenerateRefreshToken(userID uuid.UUID) (token string, exp time.Time, jti string, err error)
	ValidateAccessToken(token string) (claims AccessClaims, err error)
	ValidateRefreshToken(token string) (claims RefreshClaims, err error)
}
