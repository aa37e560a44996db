package assessments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/data/repos/testutil"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
)

func TestAssessmentRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewAssessmentRepo(db, testutil.Logger(t))

	user := uuid.New()
	conv := uuid.New()
	a := &types.Assessment{ConversationID: conv, UserID: user, ScenarioID: "car", Status: assessment.StatusPending, Attempt: 1}
	if err := repo.Create(dbc, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Fatalf("Create: id not assigned")
	}

	dup := &types.Assessment{ConversationID: conv, UserID: user, Status: assessment.StatusPending}
	if err := repo.Create(dbc, dup); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate conversation: expected ErrConflict, got %v", err)
	}

	got, err := repo.GetByConversation(dbc, conv)
	if err != nil || got == nil || got.ID != a.ID {
		t.Fatalf("GetByConversation: %v %v", got, err)
	}
	if missing, err := repo.GetByConversation(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByConversation(missing): %v %v", missing, err)
	}

	ok, err := repo.Transition(dbc, a.ID, []assessment.Status{assessment.StatusPending}, map[string]interface{}{"status": assessment.StatusProcessing})
	if err != nil || !ok {
		t.Fatalf("Transition pending->processing: %v %v", ok, err)
	}
	now := time.Now()
	ok, err = repo.Transition(dbc, a.ID, []assessment.Status{assessment.StatusPending, assessment.StatusProcessing}, map[string]interface{}{
		"status":       assessment.StatusCompleted,
		"completed_at": now,
	})
	if err != nil || !ok {
		t.Fatalf("Transition processing->completed: %v %v", ok, err)
	}
	// A redelivered completion must not overwrite the terminal record.
	ok, err = repo.Transition(dbc, a.ID, []assessment.Status{assessment.StatusPending, assessment.StatusProcessing}, map[string]interface{}{"status": assessment.StatusFailed})
	if err != nil || ok {
		t.Fatalf("Transition from completed should be a no-op: %v %v", ok, err)
	}

	other := testutil.SeedAssessment(t, ctx, db, user, assessment.StatusCompleted)
	other.ScenarioID = "salary"
	if err := db.Save(other).Error; err != nil {
		t.Fatalf("save: %v", err)
	}

	list, total, err := repo.ListCompletedByUser(dbc, user, 10, 0)
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("ListCompletedByUser: total=%d len=%d err=%v", total, len(list), err)
	}
	n, err := repo.CountDistinctScenarios(dbc, user)
	if err != nil || n != 2 {
		t.Fatalf("CountDistinctScenarios: %d %v", n, err)
	}
	times, err := repo.CompletionTimesSince(dbc, user, now.Add(-24*time.Hour))
	if err != nil || len(times) != 2 {
		t.Fatalf("CompletionTimesSince: %v %v", times, err)
	}
	c, err := repo.CountCompletedSince(dbc, user, now.Add(-time.Hour))
	if err != nil || c != 2 {
		t.Fatalf("CountCompletedSince: %d %v", c, err)
	}
}

func TestSkillHistoryRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewSkillHistoryRepo(db, testutil.Logger(t))

	user := uuid.New()
	scores := make([]int, 12)
	for i := range scores {
		scores[i] = 40 + i
	}
	testutil.SeedHistory(t, ctx, db, user, assessment.Overall, scores)

	recent, err := repo.RecentScores(dbc, user, assessment.Overall, 9)
	if err != nil {
		t.Fatalf("RecentScores: %v", err)
	}
	if len(recent) != 9 || recent[0] != 51 || recent[8] != 43 {
		t.Fatalf("RecentScores: %v", recent)
	}

	aid := uuid.New()
	rows := []*types.SkillHistoryEntry{
		{UserID: user, Dimension: assessment.ClaimingValue, AssessmentID: aid, SessionNumber: 13, Score: 70, CreatedAt: time.Now()},
		{UserID: user, Dimension: assessment.Overall, AssessmentID: aid, SessionNumber: 13, Score: 65, CreatedAt: time.Now()},
	}
	n, err := repo.Append(dbc, rows)
	if err != nil || n != 2 {
		t.Fatalf("Append: %d %v", n, err)
	}
	replay := []*types.SkillHistoryEntry{
		{UserID: user, Dimension: assessment.ClaimingValue, AssessmentID: aid, SessionNumber: 14, Score: 70, CreatedAt: time.Now()},
	}
	n, err = repo.Append(dbc, replay)
	if err != nil || n != 0 {
		t.Fatalf("Append replay should insert nothing: %d %v", n, err)
	}
	exists, err := repo.ExistsForAssessment(dbc, aid)
	if err != nil || !exists {
		t.Fatalf("ExistsForAssessment: %v %v", exists, err)
	}

	page, total, err := repo.List(dbc, user, assessment.Overall, 5, 0)
	if err != nil || total != 13 || len(page) != 5 || page[0].SessionNumber != 13 {
		t.Fatalf("List: total=%d len=%d err=%v", total, len(page), err)
	}

	if err := repo.DeleteByUser(dbc, user); err != nil {
		t.Fatalf("DeleteByUser: %v", err)
	}
	if _, total, _ := repo.List(dbc, user, "", 5, 0); total != 0 {
		t.Fatalf("DeleteByUser left %d rows", total)
	}
}
