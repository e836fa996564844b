package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/ebookstore/internal/apperr"
)

// Context keys for caller data
const (
	ContextKeyEmail    = "auth_email"
	ContextKeyAuthType = "auth_type" // "bearer" or "none"
)

// AuthType indicates how the caller was authenticated
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBearer AuthType = "bearer"
)

// Middleware authenticates requests carrying a bearer token.
type Middleware struct {
	tokens *TokenService
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(tokens *TokenService) *Middleware {
	return &Middleware{tokens: tokens}
}

// RequireBearer rejects requests without a valid bearer token.
func (m *Middleware) RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}

		email, err := m.tokens.DecodeToken(token)
		if err != nil {
			abortUnauthorized(c, apperr.Detail(err))
			return
		}

		setCaller(c, email)
		c.Next()
	}
}

// OptionalBearer lets anonymous requests through but still rejects a token
// that is present and invalid.
func (m *Middleware) OptionalBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Set(ContextKeyAuthType, AuthTypeNone)
			c.Next()
			return
		}

		email, err := m.tokens.DecodeToken(token)
		if err != nil {
			abortUnauthorized(c, apperr.Detail(err))
			return
		}

		setCaller(c, email)
		c.Next()
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func setCaller(c *gin.Context, email string) {
	c.Set(ContextKeyEmail, email)
	c.Set(ContextKeyAuthType, AuthTypeBearer)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
		"code":  apperr.KindUnauthorized,
	})
}

// GetEmail retrieves the authenticated caller's email from the context.
// Returns "" for anonymous requests.
func GetEmail(c *gin.Context) string {
	if v, exists := c.Get(ContextKeyEmail); exists {
		if email, ok := v.(string); ok {
			return email
		}
	}
	return ""
}

// GetAuthType retrieves the authentication method used.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// IsAuthenticated returns true if the request carried a valid token.
func IsAuthenticated(c *gin.Context) bool {
	return GetEmail(c) != ""
}
