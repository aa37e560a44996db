package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/negotiator-backend/internal/data/repos/testutil"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
)

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func ptrTime(t time.Time) *time.Time { return &t }

func newRun(jobType string, status string, priority int, created time.Time) *types.JobRun {
	return &types.JobRun{
		OwnerUserID: uuid.New(),
		JobType:     jobType,
		EntityType:  "assessment",
		EntityID:    ptrUUID(uuid.New()),
		Status:      status,
		Stage:       status,
		Priority:    priority,
		MaxAttempts: 3,
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now()
	low := newRun("assess", domjobs.StatusQueued, 0, now.Add(-3*time.Hour))
	high := newRun("assess", domjobs.StatusQueued, 2, now.Add(-1*time.Hour))
	delayed := newRun("assess", domjobs.StatusQueued, 5, now.Add(-4*time.Hour))
	delayed.RunAfter = ptrTime(now.Add(time.Hour))
	stale := newRun("assess", domjobs.StatusRunning, 0, now.Add(-5*time.Hour))
	stale.Attempts = 1
	stale.HeartbeatAt = ptrTime(now.Add(-10 * time.Hour))
	exhausted := newRun("assess", domjobs.StatusRunning, 0, now.Add(-6*time.Hour))
	exhausted.Attempts = 3
	exhausted.HeartbeatAt = ptrTime(now.Add(-10 * time.Hour))
	other := newRun("other", domjobs.StatusQueued, 9, now.Add(-2*time.Hour))

	created, err := repo.Create(dbc, []*types.JobRun{low, high, delayed, stale, exhausted, other})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 6 {
		t.Fatalf("Create: expected 6, got %d", len(created))
	}

	// Priority first, queued before stale reclaims, then age. Delayed and exhausted rows
	// are never claimed. stale is older than low but still comes after it.
	want := []uuid.UUID{high.ID, low.ID, stale.ID}
	for i, id := range want {
		claim, err := repo.ClaimNextRunnable(dbc, []string{"assess"}, time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i+1, err)
		}
		if claim == nil || claim.ID != id {
			t.Fatalf("ClaimNextRunnable #%d: expected %v got %v", i+1, id, claim)
		}
		if claim.Status != domjobs.StatusRunning {
			t.Fatalf("ClaimNextRunnable #%d: status %s", i+1, claim.Status)
		}
	}
	if claim, err := repo.ClaimNextRunnable(dbc, []string{"assess"}, time.Hour); err != nil || claim != nil {
		t.Fatalf("ClaimNextRunnable: expected nothing, got %v err=%v", claim, err)
	}

	got, err := repo.GetByID(dbc, stale.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.Attempts != 2 {
		t.Fatalf("stale reclaim should bump attempts to 2, got %d", got.Attempts)
	}

	// Failure below max attempts requeues with backoff.
	claimedHigh, _ := repo.GetByID(dbc, high.ID)
	dead, err := repo.MarkFailed(dbc, claimedHigh, errors.New("boom"), time.Hour)
	if err != nil || dead {
		t.Fatalf("MarkFailed: dead=%v err=%v", dead, err)
	}
	requeued, _ := repo.GetByID(dbc, high.ID)
	if requeued.Status != domjobs.StatusQueued || requeued.RunAfter == nil || requeued.Error != "boom" {
		t.Fatalf("requeued: %+v", requeued)
	}
	if claim, _ := repo.ClaimNextRunnable(dbc, []string{"assess"}, time.Hour); claim != nil {
		t.Fatalf("backoff not honored, claimed %v", claim.ID)
	}

	// Failure at max attempts dead-letters.
	got.Attempts = 3
	dead, err = repo.MarkFailed(dbc, got, errors.New("still broken"), time.Hour)
	if err != nil || !dead {
		t.Fatalf("MarkFailed at max: dead=%v err=%v", dead, err)
	}

	swept, err := repo.SweepStale(dbc, time.Hour)
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if len(swept) != 1 || swept[0].ID != exhausted.ID {
		t.Fatalf("SweepStale: %v", swept)
	}

	if err := repo.MarkSucceeded(dbc, low.ID, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	has, err := repo.HasRunnableForEntity(dbc, "assessment", *other.EntityID, "other")
	if err != nil || !has {
		t.Fatalf("HasRunnableForEntity: %v %v", has, err)
	}

	latest, err := repo.GetLatestByEntity(dbc, "assessment", *high.EntityID, "assess")
	if err != nil || latest == nil || latest.ID != high.ID {
		t.Fatalf("GetLatestByEntity: %v %v", latest, err)
	}

	stats, err := repo.Stats(dbc)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// queued: high, delayed, other. dead: stale, exhausted. succeeded: low.
	if stats.Queued != 3 || stats.Dead != 2 || stats.Succeeded != 1 || stats.Running != 0 {
		t.Fatalf("Stats: %+v", stats)
	}
}
