// Package middleware provides the gin middleware shared by the API routes:
// JWT authentication, admin key checks and request observability.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the authentication middleware.
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextEmail    = "user_email"
)

var errMissingBearer = errors.New("invalid authorization header format")

// JWTClaims represents the JWT token claims.
type JWTClaims struct {
	// UserID is the user identifier.
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	// Email is the user email.
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware issues and verifies HS256 access tokens.
type AuthMiddleware struct {
	secretKey []byte
	expiry    time.Duration
	now       func() time.Time
}

// NewAuthMiddleware creates a new authentication middleware.
//
// Parameters:
//
//	secretKey: Secret key for signing tokens.
//	expiry: Lifetime of issued tokens.
//
// Returns:
//
//	*AuthMiddleware: Initialized middleware.
func NewAuthMiddleware(secretKey string, expiry time.Duration) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey: []byte(secretKey),
		expiry:    expiry,
		now:       time.Now,
	}
}

// RequireAuth rejects requests without a valid Bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			msg := "Invalid authorization header format"
			if c.GetHeader("Authorization") == "" {
				msg = "Authorization header required"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		claims, err := am.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		setUser(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the user context when a valid token is present and
// lets every request through.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, err := bearerToken(c.GetHeader("Authorization")); err == nil {
			if claims, err := am.ValidateToken(tokenString); err == nil {
				setUser(c, claims)
			}
		}
		c.Next()
	}
}

// GenerateToken signs an access token for a user.
//
// Returns:
//
//	string: Signed token string.
//	time.Time: Expiry of the token.
//	error: Error if signing fails.
func (am *AuthMiddleware) GenerateToken(userID, username, email string) (string, time.Time, error) {
	now := am.now()
	expiresAt := now.Add(am.expiry)
	claims := &JWTClaims{
		UserID:   userID,
		Username: username,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(am.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns claims.
func (am *AuthMiddleware) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.secretKey, nil
	}, jwt.WithTimeFunc(am.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// CurrentUserID returns the authenticated user id, or "" for anonymous
// requests.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive (RFC 6750).
func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errMissingBearer
	}
	return parts[1], nil
}

func setUser(c *gin.Context, claims *JWTClaims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextEmail, claims.Email)
}
