package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/pkg/jwt"
)

// TokenQueryParam carries the access token on websocket upgrades, where
// browsers cannot set an Authorization header.
const TokenQueryParam = "token"

// DualAuthMiddleware accepts the access token either as a bearer header or as
// the ?token= query parameter. The header wins when both are present.
func DualAuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	header := AuthMiddleware(tokens)
	return func(c *gin.Context) {
		if strings.HasPrefix(c.GetHeader(AuthorizationHeader), BearerPrefix) {
			header(c)
			return
		}
		token := c.Query(TokenQueryParam)
		if token == "" {
			response.Error(c, domainerrors.Unauthorized("Authentication required"))
			return
		}
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "Token has expired"
			}
			response.Error(c, domainerrors.Unauthorized(msg))
			return
		}
		SetIdentity(c, claims.UserID, claims.Role)
		c.Next()
	}
}
