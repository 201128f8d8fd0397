package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
)

// GenerateAccessToken creates a signed admin token valid for ttl.
func GenerateAccessToken(secret []byte, adminID uint, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": adminID,
		"exp":      time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// ExtractAdminIDFromToken validates a "Bearer <jwt>" header and returns the admin id.
func ExtractAdminIDFromToken(secret []byte, authHeader string) (uint, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, ErrInvalidAuthHeader
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}

	// JWT numeric values are float64
	adminID, ok := claims["admin_id"].(float64)
	if !ok || adminID <= 0 {
		return 0, errors.New("invalid admin ID in token")
	}

	return uint(adminID), nil
}
