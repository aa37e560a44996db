package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/http/response"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/services"
)

type AssessmentHandler struct {
	assessments services.AssessmentService
}

func NewAssessmentHandler(assessments services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

type scenarioRequest struct {
	Title              string   `json:"title"`
	Industry           string   `json:"industry"`
	Type               string   `json:"type"`
	KeyIssues          []string `json:"keyIssues"`
	CounterpartProfile string   `json:"counterpartProfile"`
}

type submitRequest struct {
	ConversationID     string            `json:"conversationId" binding:"required"`
	ScenarioID         string            `json:"scenarioId"`
	Transcript         string            `json:"transcript"`
	Turns              []assessment.Turn `json:"turns"`
	Scenario           scenarioRequest   `json:"scenario"`
	SkillLevel         string            `json:"skillLevel"`
	DealReached        bool              `json:"dealReached"`
	DurationSeconds    int               `json:"durationSeconds"`
	ConversationStatus string            `json:"conversationStatus"`
	VoiceMetrics       map[string]any    `json:"voiceMetrics"`
	Metadata           map[string]any    `json:"metadata"`
}

// POST /api/assessments
func (h *AssessmentHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	convID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	res, err := h.assessments.Submit(c.Request.Context(), services.SubmitInput{
		ConversationID: convID,
		UserID:         ctxutil.UserID(c.Request.Context()),
		ScenarioID:     req.ScenarioID,
		Submission: assessment.Submission{
			Transcript: req.Transcript,
			Turns:      req.Turns,
			Scenario: assessment.Scenario{
				Title:              req.Scenario.Title,
				Industry:           req.Scenario.Industry,
				Type:               req.Scenario.Type,
				KeyIssues:          req.Scenario.KeyIssues,
				CounterpartProfile: req.Scenario.CounterpartProfile,
			},
			SkillLevel:         req.SkillLevel,
			DealReached:        req.DealReached,
			DurationSeconds:    req.DurationSeconds,
			ConversationStatus: req.ConversationStatus,
			VoiceMetrics:       req.VoiceMetrics,
			Metadata:           req.Metadata,
		},
	})
	if err != nil {
		response.RespondServiceError(c, err, "submit_failed")
		return
	}
	response.RespondAccepted(c, submitPayload(res))
}

// GET /api/assessments/:conversationId
func (h *AssessmentHandler) Get(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	a, err := h.assessments.Get(c.Request.Context(), ctxutil.UserID(c.Request.Context()), convID)
	if err != nil {
		response.RespondServiceError(c, err, "assessment_load_failed")
		return
	}
	response.RespondOK(c, gin.H{"assessment": a})
}

// POST /api/assessments/:conversationId/retry
func (h *AssessmentHandler) Retry(c *gin.Context) {
	convID, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	res, err := h.assessments.Retry(c.Request.Context(), ctxutil.UserID(c.Request.Context()), convID)
	if err != nil {
		response.RespondServiceError(c, err, "retry_failed")
		return
	}
	response.RespondAccepted(c, submitPayload(res))
}

// GET /api/users/me/assessments?limit&offset
func (h *AssessmentHandler) ListMine(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_paging", err)
		return
	}
	rows, total, err := h.assessments.ListCompleted(c.Request.Context(), ctxutil.UserID(c.Request.Context()), limit, offset)
	if err != nil {
		response.RespondServiceError(c, err, "assessment_list_failed")
		return
	}
	response.RespondOK(c, gin.H{"assessments": rows, "total": total})
}

// GET /api/admin/queue
func (h *AssessmentHandler) QueueStats(c *gin.Context) {
	st, err := h.assessments.QueueStats(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err, "queue_stats_failed")
		return
	}
	response.RespondOK(c, gin.H{"queue": st})
}

func submitPayload(res *services.SubmitResult) gin.H {
	return gin.H{
		"assessmentId": res.Assessment.ID,
		"jobId":        res.Receipt.JobID,
		"driver":       res.Receipt.Driver,
		"status":       res.Assessment.Status,
		"attempt":      res.Assessment.Attempt,
		"duplicate":    res.Duplicate,
	}
}

func paging(c *gin.Context) (int, int, error) {
	limit, offset := 0, 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("%w: limit", apperr.ErrInvalidArgument)
		}
		limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("%w: offset", apperr.ErrInvalidArgument)
		}
		offset = n
	}
	return limit, offset, nil
}
