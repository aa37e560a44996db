package assessments

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type SkillHistoryRepo interface {
	// Append inserts rows, skipping any (assessment, dimension) pair that already exists.
	Append(dbc dbctx.Context, rows []*types.SkillHistoryEntry) (int64, error)
	ExistsForAssessment(dbc dbctx.Context, assessmentID uuid.UUID) (bool, error)
	RecentScores(dbc dbctx.Context, userID uuid.UUID, dim assessment.Dimension, limit int) ([]int, error)
	List(dbc dbctx.Context, userID uuid.UUID, dim assessment.Dimension, limit, offset int) ([]*types.SkillHistoryEntry, int64, error)
	DeleteByUser(dbc dbctx.Context, userID uuid.UUID) error
}

type skillHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillHistoryRepo(db *gorm.DB, baseLog *logger.Logger) SkillHistoryRepo {
	return &skillHistoryRepo{
		db:  db,
		log: baseLog.With("repo", "SkillHistoryRepo"),
	}
}

func (r *skillHistoryRepo) Append(dbc dbctx.Context, rows []*types.SkillHistoryEntry) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assessment_id"}, {Name: "dimension"}},
			DoNothing: true,
		}).
		Create(&rows)
	return res.RowsAffected, res.Error
}

func (r *skillHistoryRepo) ExistsForAssessment(dbc dbctx.Context, assessmentID uuid.UUID) (bool, error) {
	if assessmentID == uuid.Nil {
		return false, nil
	}
	var n int64
	err := dbc.DB(r.db).Model(&types.SkillHistoryEntry{}).
		Where("assessment_id = ?", assessmentID).
		Count(&n).Error
	return n > 0, err
}

func (r *skillHistoryRepo) RecentScores(dbc dbctx.Context, userID uuid.UUID, dim assessment.Dimension, limit int) ([]int, error) {
	var out []int
	if userID == uuid.Nil || limit <= 0 {
		return out, nil
	}
	err := dbc.DB(r.db).Model(&types.SkillHistoryEntry{}).
		Where("user_id = ? AND dimension = ?", userID, dim).
		Order("session_number DESC").
		Limit(limit).
		Pluck("score", &out).Error
	return out, err
}

func (r *skillHistoryRepo) List(dbc dbctx.Context, userID uuid.UUID, dim assessment.Dimension, limit, offset int) ([]*types.SkillHistoryEntry, int64, error) {
	var out []*types.SkillHistoryEntry
	if userID == uuid.Nil {
		return out, 0, nil
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if dim != "" {
			db = db.Where("dimension = ?", dim)
		}
		return db
	}
	var total int64
	if err := dbc.DB(r.db).Model(&types.SkillHistoryEntry{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := dbc.DB(r.db).Scopes(scope).
		Order("session_number DESC").
		Order("dimension ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *skillHistoryRepo) DeleteByUser(dbc dbctx.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("user_id = ?", userID).Delete(&types.SkillHistoryEntry{}).Error
}
