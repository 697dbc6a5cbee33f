package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/pkg/jwt"
	"walletcore.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for user ID
	UserIDKey = "userId"
	// UserRoleKey is the context key for user role
	UserRoleKey = "userRole"
)

// TokenValidator checks access tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware requires a valid bearer access token.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			response.Error(c, domainerrors.Unauthorized("Authorization header is required"))
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Error(c, domainerrors.Unauthorized("Invalid authorization format. Use: Bearer <token>"))
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			logger.Debug(c.Request.Context(), "Rejected access token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, jwt.ErrExpiredToken) {
				response.Error(c, domainerrors.Unauthorized("Token has expired"))
				return
			}
			response.Error(c, domainerrors.Unauthorized("Invalid token"))
			return
		}

		SetIdentity(c, claims.UserID, claims.Role)
		c.Next()
	}
}

// SetIdentity stores the caller on the gin context and on the request context
// so log lines carry the user id.
func SetIdentity(c *gin.Context, userID uuid.UUID, role string) {
	c.Set(UserIDKey, userID)
	c.Set(UserRoleKey, role)
	ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, userID.String())
	c.Request = c.Request.WithContext(ctx)
}

// GetUserID gets the user ID from context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

// GetUserRole gets the user role from context
func GetUserRole(c *gin.Context) (entities.UserRole, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	s, ok := role.(string)
	return entities.UserRole(s), ok
}

// IsStaff reports whether the caller holds a back-office role.
func IsStaff(c *gin.Context) bool {
	role, ok := GetUserRole(c)
	return ok && role.IsBackOffice()
}

// RequireRole creates a middleware that requires a specific role
func RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := GetUserRole(c)
		if !exists {
			response.Error(c, domainerrors.Unauthorized("User role not found"))
			return
		}
		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}
		response.Error(c, domainerrors.Forbidden("Insufficient permissions"))
	}
}

// RequireStaff admits every back-office role.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetUserRole(c); !ok {
			response.Error(c, domainerrors.Unauthorized("User role not found"))
			return
		}
		if !IsStaff(c) {
			response.Error(c, domainerrors.Forbidden("Insufficient permissions"))
			return
		}
		c.Next()
	}
}
