package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/http/response"
	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/services"
)

type ProgressHandler struct {
	progress services.ProgressService
}

func NewProgressHandler(progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// GET /api/users/me/progress
func (h *ProgressHandler) GetMine(c *gin.Context) {
	p, err := h.progress.Get(c.Request.Context(), ctxutil.UserID(c.Request.Context()))
	if err != nil {
		response.RespondServiceError(c, err, "progress_load_failed")
		return
	}
	response.RespondOK(c, gin.H{"progress": p})
}

// GET /api/users/me/history?dimension&limit&offset
func (h *ProgressHandler) History(c *gin.Context) {
	dim := assessment.Overall
	if raw := c.Query("dimension"); raw != "" {
		d, ok := assessment.ParseDimension(raw)
		if !ok {
			response.RespondError(c, http.StatusBadRequest, "invalid_dimension", nil)
			return
		}
		dim = d
	}
	limit, offset, err := paging(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_paging", err)
		return
	}
	rows, total, err := h.progress.History(c.Request.Context(), ctxutil.UserID(c.Request.Context()), dim, limit, offset)
	if err != nil {
		response.RespondServiceError(c, err, "history_load_failed")
		return
	}
	response.RespondOK(c, gin.H{"dimension": dim, "history": rows, "total": total})
}
