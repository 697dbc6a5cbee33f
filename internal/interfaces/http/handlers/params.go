package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/interfaces/http/middleware"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/pkg/utils"
)

// currentUser returns the authenticated caller or writes 401.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Unauthorized"))
		return uuid.Nil, false
	}
	return userID, true
}

// uuidParam parses a path parameter or writes 400.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return false
	}
	return true
}

// pageParams reads ?page= and ?limit= with the shared defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	p := utils.GetPaginationParams(page, limit)
	return p.Page, p.Limit
}
