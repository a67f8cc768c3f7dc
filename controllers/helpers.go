package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodboard/middleware"
	"github.com/cppla/moodboard/utils"
)

// currentUserID reads the authenticated user id, answering 401 when it is absent.
func currentUserID(ctx *gin.Context) (uint, bool) {
	userID := ctx.GetUint(middleware.ContextUserIDKey)
	if userID == 0 {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return 0, false
	}
	return userID, true
}

// parseID parses a positive numeric path parameter.
func parseID(raw string) (uint, bool) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
