package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodboard/services"
	"github.com/cppla/moodboard/utils"
)

const dashboardCacheTTL = time.Hour

// MoodController exposes the daily record service over HTTP.
type MoodController struct {
	svc *services.MoodService
}

// NewMoodController creates a MoodController over svc.
func NewMoodController(svc *services.MoodService) *MoodController {
	return &MoodController{svc: svc}
}

// Dashboard keys embed a per-user generation that every write bumps, so a read
// that started before a write cannot repopulate the cache with what it saw.
func dashboardVersionKey(userID uint) string {
	return fmt.Sprintf("cache:records:ver:%d", userID)
}

func dashboardCachePrefix(userID uint) string {
	return fmt.Sprintf("cache:records:%d:", userID)
}

func dashboardCacheKey(userID uint, version int64, day string) string {
	return fmt.Sprintf("%sv%d:%s", dashboardCachePrefix(userID), version, day)
}

// invalidateDashboard runs after a successful write.
func invalidateDashboard(userID uint) {
	utils.BumpCacheVersion(dashboardVersionKey(userID))
	utils.InvalidateByPrefix(dashboardCachePrefix(userID))
}

// Dashboard returns today's entry (or null) and the recent history.
func (m *MoodController) Dashboard(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	// the generation is read before the store so a concurrent write always supersedes it
	version, cacheable := utils.CacheVersion(dashboardVersionKey(userID))
	key := dashboardCacheKey(userID, version, m.svc.DayKey())
	if cacheable {
		if b, ok := utils.CacheGetBytes(key); ok {
			utils.Success(ctx, json.RawMessage(b))
			return
		}
	}

	dash, err := m.svc.GetTodayAndHistory(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	if cacheable {
		utils.CacheSetJSON(key, dash, dashboardCacheTTL)
	}
	utils.Success(ctx, dash)
}

// Create stores today's entry.
func (m *MoodController) Create(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var in services.EntryInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	entry, err := m.svc.CreateToday(ctx.Request.Context(), userID, in)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	invalidateDashboard(userID)
	utils.Created(ctx, entry)
}

// Get returns one of the caller's entries by id.
func (m *MoodController) Get(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		respondServiceError(ctx, services.ErrNotFound)
		return
	}

	entry, err := m.svc.Get(ctx.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, entry)
}

// Update changes today's entry.
func (m *MoodController) Update(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		respondServiceError(ctx, services.ErrNotFound)
		return
	}

	var patch services.EntryPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	entry, err := m.svc.UpdateToday(ctx.Request.Context(), userID, id, patch)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	invalidateDashboard(userID)
	utils.Success(ctx, entry)
}

// Delete removes today's entry.
func (m *MoodController) Delete(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		respondServiceError(ctx, services.ErrNotFound)
		return
	}

	if err := m.svc.DeleteToday(ctx.Request.Context(), userID, id); err != nil {
		respondServiceError(ctx, err)
		return
	}
	invalidateDashboard(userID)
	utils.Success(ctx, gin.H{"message": "moodboard deleted successfully"})
}

// respondServiceError maps record service errors onto status and business codes.
// Unclassified errors were already logged by the service and get a generic message.
func respondServiceError(ctx *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40010, verr.Message)
	case errors.Is(err, services.ErrDuplicateEntry):
		utils.Error(ctx, http.StatusBadRequest, 40011, services.ErrDuplicateEntry.Error())
	case errors.Is(err, services.ErrOutOfWindow):
		utils.Error(ctx, http.StatusBadRequest, 40012, services.ErrOutOfWindow.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, services.ErrNotFound.Error())
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50010, "server error")
	}
}
