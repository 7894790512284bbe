package websocket

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no authentication token is provided
	ErrMissingToken = errors.New("missing authentication token")
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid authentication token")
	// ErrExpiredToken is returned when the token has expired
	ErrExpiredToken = errors.New("token has expired")
)

// Authenticator defines the interface for authenticating WebSocket connections
type Authenticator interface {
	// Authenticate extracts and validates user identity from the request.
	// Returns userID on success, or error if authentication fails.
	Authenticate(r *http.Request) (userID string, err error)
}

// AllowAll accepts every connection. Used when no JWT secret is configured
// (local single-user setups).
type AllowAll struct{}

// Authenticate implements Authenticator.
func (AllowAll) Authenticate(r *http.Request) (string, error) {
	return "anonymous", nil
}

// JWTAuth implements Authenticator using JWT tokens
type JWTAuth struct {
	secretKey string
}

// NewJWTAuth creates a new JWTAuth instance
func NewJWTAuth(secretKey string) *JWTAuth {
	return &JWTAuth{secretKey: secretKey}
}

// Authenticate extracts and validates JWT from the request.
// It tries multiple sources in order:
// 1. Authorization header (Bearer token)
// 2. Query parameter "token"
// 3. Sec-WebSocket-Protocol header (for browsers that can't set custom headers)
func (a *JWTAuth) Authenticate(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return a.validateToken(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return a.validateToken(token)
	}

	// Format: "auth-<token>" as one of the protocols
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	if protocols != "" {
		for _, p := range strings.Split(protocols, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "auth-") {
				return a.validateToken(strings.TrimPrefix(p, "auth-"))
			}
		}
	}

	return "", ErrMissingToken
}

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// validateToken validates a JWT token and extracts the user ID.
func (a *JWTAuth) validateToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// GenerateToken creates a new JWT token for the given user ID.
// This is a helper function for testing and token generation.
func (a *JWTAuth) GenerateToken(userID string, expiresAt *jwt.NumericDate) (string, error) {
	claims := JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secretKey))
}
