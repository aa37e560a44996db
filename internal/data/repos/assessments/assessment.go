package assessments

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/data/repos/dberr"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type AssessmentRepo interface {
	Create(dbc dbctx.Context, a *types.Assessment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error)
	GetByConversation(dbc dbctx.Context, conversationID uuid.UUID) (*types.Assessment, error)
	// Transition applies updates only while the row is in one of from. It reports
	// whether a row changed.
	Transition(dbc dbctx.Context, id uuid.UUID, from []assessment.Status, updates map[string]interface{}) (bool, error)
	ListCompletedByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Assessment, int64, error)
	ListAllCompletedByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Assessment, error)
	CompletionTimesSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) ([]time.Time, error)
	CountCompletedSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) (int64, error)
	CountDistinctScenarios(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return &assessmentRepo{
		db:  db,
		log: baseLog.With("repo", "AssessmentRepo"),
	}
}

func (r *assessmentRepo) Create(dbc dbctx.Context, a *types.Assessment) error {
	if a == nil {
		return nil
	}
	if err := dbc.DB(r.db).Create(a).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return fmt.Errorf("%w: assessment for conversation %s exists", apperr.ErrConflict, a.ConversationID)
		}
		return err
	}
	return nil
}

func (r *assessmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assessment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Assessment
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *assessmentRepo) GetByConversation(dbc dbctx.Context, conversationID uuid.UUID) (*types.Assessment, error) {
	if conversationID == uuid.Nil {
		return nil, nil
	}
	var out types.Assessment
	err := dbc.DB(r.db).Where("conversation_id = ?", conversationID).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *assessmentRepo) Transition(dbc dbctx.Context, id uuid.UUID, from []assessment.Status, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := dbc.DB(r.db).Model(&types.Assessment{}).Where("id = ?", id)
	if len(from) == 1 {
		q = q.Where("status = ?", from[0])
	} else if len(from) > 1 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *assessmentRepo) ListCompletedByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int) ([]*types.Assessment, int64, error) {
	var out []*types.Assessment
	if userID == uuid.Nil {
		return out, 0, nil
	}
	base := dbc.DB(r.db).Model(&types.Assessment{}).
		Where("user_id = ? AND status = ?", userID, assessment.StatusCompleted)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := dbc.DB(r.db).
		Where("user_id = ? AND status = ?", userID, assessment.StatusCompleted).
		Order("completed_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *assessmentRepo) ListAllCompletedByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Assessment, error) {
	var out []*types.Assessment
	if userID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("user_id = ? AND status = ?", userID, assessment.StatusCompleted).
		Order("completed_at ASC").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *assessmentRepo) CompletionTimesSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) ([]time.Time, error) {
	var rows []*types.Assessment
	err := dbc.DB(r.db).
		Select("completed_at").
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, assessment.StatusCompleted, since).
		Order("completed_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(rows))
	for _, a := range rows {
		if a.CompletedAt != nil {
			out = append(out, *a.CompletedAt)
		}
	}
	return out, nil
}

func (r *assessmentRepo) CountCompletedSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Assessment{}).
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, assessment.StatusCompleted, since).
		Count(&n).Error
	return n, err
}

func (r *assessmentRepo) CountDistinctScenarios(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Assessment{}).
		Where("user_id = ? AND status = ? AND scenario_id <> ''", userID, assessment.StatusCompleted).
		Distinct("scenario_id").
		Count(&n).Error
	return n, err
}
