package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	httpH "github.com/yungbote/negotiator-backend/internal/http/handlers"
	httpMW "github.com/yungbote/negotiator-backend/internal/http/middleware"
	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	"github.com/yungbote/negotiator-backend/internal/observability"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/services"
)

type fakeAssessments struct {
	submitted []services.SubmitInput
	byConv    map[uuid.UUID]*types.Assessment
	retryErr  error
}

func (f *fakeAssessments) Submit(_ context.Context, in services.SubmitInput) (*services.SubmitResult, error) {
	if !in.Submission.HasContent() {
		return nil, fmt.Errorf("%w: transcript or turns required", apperr.ErrInvalidArgument)
	}
	f.submitted = append(f.submitted, in)
	a := &types.Assessment{ID: uuid.New(), ConversationID: in.ConversationID, UserID: in.UserID, Status: assessment.StatusPending, Attempt: 1}
	return &services.SubmitResult{Assessment: a, Receipt: queue.Receipt{JobID: "job-1", Driver: "db"}}, nil
}

func (f *fakeAssessments) Get(_ context.Context, userID, conversationID uuid.UUID) (*types.Assessment, error) {
	a := f.byConv[conversationID]
	if a == nil || a.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssessments) Retry(_ context.Context, userID, conversationID uuid.UUID) (*services.SubmitResult, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	a, err := f.Get(context.Background(), userID, conversationID)
	if err != nil {
		return nil, err
	}
	a.Attempt++
	return &services.SubmitResult{Assessment: a, Receipt: queue.Receipt{JobID: "job-2", Driver: "db"}}, nil
}

func (f *fakeAssessments) ListCompleted(context.Context, uuid.UUID, int, int) ([]*types.Assessment, int64, error) {
	return nil, 0, nil
}

func (f *fakeAssessments) QueueStats(context.Context) (domjobs.QueueStats, error) {
	return domjobs.QueueStats{Queued: 3, Dead: 1}, nil
}

func newTestRouter(t *testing.T, fa *fakeAssessments) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	return NewRouter(RouterConfig{
		Log:               log,
		Metrics:           observability.NewMetrics(),
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, "", true),
		AssessmentHandler: httpH.NewAssessmentHandler(fa),
		HealthHandler: httpH.NewHealthHandler(map[string]httpH.Pinger{
			"database": func(context.Context) error { return nil },
		}),
	})
}

func do(r *gin.Engine, method, path string, user uuid.UUID, body any) *httptest.ResponseRecorder {
	return doAs(r, method, path, user, "", body)
}

func doAs(r *gin.Engine, method, path string, user uuid.UUID, role string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-User-ID", user.String())
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitAccepted(t *testing.T) {
	fa := &fakeAssessments{}
	r := newTestRouter(t, fa)
	user, conv := uuid.New(), uuid.New()

	w := do(r, http.MethodPost, "/api/assessments", user, map[string]any{
		"conversationId": conv.String(),
		"scenarioId":     "salary-1",
		"turns":          []map[string]string{{"role": "user", "content": "I was hoping for 95k"}},
		"scenario":       map[string]any{"title": "Salary", "keyIssues": []string{"base", "equity"}},
		"dealReached":    true,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["jobId"] != "job-1" {
		t.Fatalf("jobId = %v", got["jobId"])
	}
	if len(fa.submitted) != 1 {
		t.Fatalf("submitted = %d", len(fa.submitted))
	}
	in := fa.submitted[0]
	if in.UserID != user || in.ConversationID != conv {
		t.Fatalf("ids not propagated: %+v", in)
	}
	if len(in.Submission.Scenario.KeyIssues) != 2 || !in.Submission.DealReached {
		t.Fatalf("submission not mapped: %+v", in.Submission)
	}
}

func TestSubmitRequiresUser(t *testing.T) {
	r := newTestRouter(t, &fakeAssessments{})
	w := do(r, http.MethodPost, "/api/assessments", uuid.Nil, map[string]any{"conversationId": uuid.NewString()})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSubmitValidation(t *testing.T) {
	r := newTestRouter(t, &fakeAssessments{})
	user := uuid.New()

	if w := do(r, http.MethodPost, "/api/assessments", user, map[string]any{"conversationId": "nope"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}
	w := do(r, http.MethodPost, "/api/assessments", user, map[string]any{"conversationId": uuid.NewString()})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty content status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("invalid_argument")) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestGetHidesOtherUsersAssessment(t *testing.T) {
	owner, other, conv := uuid.New(), uuid.New(), uuid.New()
	fa := &fakeAssessments{byConv: map[uuid.UUID]*types.Assessment{
		conv: {ID: uuid.New(), ConversationID: conv, UserID: owner, Status: assessment.StatusCompleted, OverallScore: 72},
	}}
	r := newTestRouter(t, fa)

	if w := do(r, http.MethodGet, "/api/assessments/"+conv.String(), owner, nil); w.Code != http.StatusOK {
		t.Fatalf("owner status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/assessments/"+conv.String(), other, nil); w.Code != http.StatusNotFound {
		t.Fatalf("other status = %d", w.Code)
	}
}

func TestRetryConflict(t *testing.T) {
	owner, conv := uuid.New(), uuid.New()
	fa := &fakeAssessments{retryErr: fmt.Errorf("%w: status is completed", apperr.ErrRetryNotAllowed)}
	r := newTestRouter(t, fa)

	w := do(r, http.MethodPost, "/api/assessments/"+conv.String()+"/retry", owner, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestQueueStatsAndHealth(t *testing.T) {
	r := newTestRouter(t, &fakeAssessments{})

	if w := do(r, http.MethodGet, "/api/admin/queue", uuid.New(), nil); w.Code != http.StatusForbidden {
		t.Fatalf("queue as learner = %d", w.Code)
	}
	w := doAs(r, http.MethodGet, "/api/admin/queue", uuid.New(), "admin", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"waiting":3`)) {
		t.Fatalf("queue: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/healthz", uuid.Nil, nil); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	w = do(r, http.MethodGet, "/metrics", uuid.Nil, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("negotiator_api_requests_total")) {
		t.Fatalf("metrics: %d %s", w.Code, w.Body.String())
	}
}
