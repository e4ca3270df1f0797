package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kelasvisa/payments/internal/auth"
	"github.com/kelasvisa/payments/pkg/response"
)

const (
	// ContextUserID is the key for the buyer's uuid.UUID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextUserName is the key for the display name in gin context.
	ContextUserName = "user_name"
)

// JWT validates the bearer token and stores the buyer identity in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserName, claims.Name)
		c.Next()
	}
}

// Buyer returns the identity JWT stored in context. ok is false when the
// request was not authenticated.
func Buyer(c *gin.Context) (id uuid.UUID, email, name string, ok bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, "", "", false
	}
	id, ok = v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, "", "", false
	}
	return id, c.GetString(ContextUserEmail), c.GetString(ContextUserName), true
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
