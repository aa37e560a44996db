package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

func SeedAssessment(tb testing.TB, ctx context.Context, db *gorm.DB, userID uuid.UUID, status assessment.Status) *types.Assessment {
	tb.Helper()
	a := &types.Assessment{
		ConversationID: uuid.New(),
		UserID:         userID,
		ScenarioID:     "car-dealer",
		Status:         status,
		Attempt:        1,
	}
	if status == assessment.StatusCompleted {
		now := time.Now()
		a.CompletedAt = &now
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assessment: %v", err)
	}
	return a
}

// SeedHistory appends one row per score for a dimension, oldest first, with increasing
// session numbers starting at 1.
func SeedHistory(tb testing.TB, ctx context.Context, db *gorm.DB, userID uuid.UUID, dim assessment.Dimension, scores []int) {
	tb.Helper()
	base := time.Now().Add(-time.Duration(len(scores)) * time.Hour)
	for i, s := range scores {
		row := &types.SkillHistoryEntry{
			UserID:        userID,
			Dimension:     dim,
			AssessmentID:  uuid.New(),
			SessionNumber: i + 1,
			Score:         s,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.WithContext(ctx).Create(row).Error; err != nil {
			tb.Fatalf("seed history: %v", err)
		}
	}
}
