package response

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/pkg/logger"
	"walletcore.backend/pkg/utils"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Paginated wraps a page of items with its pagination block.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"pagination": utils.CalculateMeta(total, page, limit),
	})
}

// Error sends an error response. Unknown errors become server_error and are
// logged; their text never reaches the client.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.From(err)
	if appErr.Status >= http.StatusInternalServerError && appErr.Code == domainerrors.CodeServerError {
		ctx := context.Background()
		if c.Request != nil {
			ctx = c.Request.Context()
		}
		logger.Error(ctx, "Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	if appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.AbortWithStatusJSON(appErr.Status, body)
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}
