package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/negotiator-backend/internal/http/response"
	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/services"
)

type AchievementHandler struct {
	achievements services.AchievementService
}

func NewAchievementHandler(achievements services.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievements: achievements}
}

// GET /api/achievements
func (h *AchievementHandler) Catalog(c *gin.Context) {
	defs, err := h.achievements.Catalog(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err, "catalog_load_failed")
		return
	}
	response.RespondOK(c, gin.H{"achievements": defs})
}

// GET /api/users/me/achievements
func (h *AchievementHandler) ListMine(c *gin.Context) {
	rows, err := h.achievements.ListUnlocked(c.Request.Context(), ctxutil.UserID(c.Request.Context()))
	if err != nil {
		response.RespondServiceError(c, err, "achievements_load_failed")
		return
	}
	response.RespondOK(c, gin.H{"unlocked": rows})
}
