package achievements

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/negotiator-backend/internal/data/repos/dberr"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type AchievementDefinitionRepo interface {
	Upsert(dbc dbctx.Context, defs []*types.AchievementDefinition) error
	List(dbc dbctx.Context, activeOnly bool) ([]*types.AchievementDefinition, error)
}

type achievementDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) AchievementDefinitionRepo {
	return &achievementDefinitionRepo{
		db:  db,
		log: baseLog.With("repo", "AchievementDefinitionRepo"),
	}
}

func (r *achievementDefinitionRepo) Upsert(dbc dbctx.Context, defs []*types.AchievementDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "category", "points", "rarity", "criteria", "updated_at"}),
		}).
		Create(&defs).Error
}

func (r *achievementDefinitionRepo) List(dbc dbctx.Context, activeOnly bool) ([]*types.AchievementDefinition, error) {
	var out []*types.AchievementDefinition
	q := dbc.DB(r.db)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Order("category ASC").Order("points ASC").Order("code ASC").Find(&out).Error
	return out, err
}

type UnlockedAchievementRepo interface {
	// Create inserts u unless the user already holds the achievement. It reports whether
	// a row was written.
	Create(dbc dbctx.Context, u *types.UnlockedAchievement) (bool, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UnlockedAchievement, error)
	CodesByUser(dbc dbctx.Context, userID uuid.UUID) (map[string]bool, error)
}

type unlockedAchievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnlockedAchievementRepo(db *gorm.DB, baseLog *logger.Logger) UnlockedAchievementRepo {
	return &unlockedAchievementRepo{
		db:  db,
		log: baseLog.With("repo", "UnlockedAchievementRepo"),
	}
}

func (r *unlockedAchievementRepo) Create(dbc dbctx.Context, u *types.UnlockedAchievement) (bool, error) {
	if u == nil || u.UserID == uuid.Nil || u.AchievementCode == "" {
		return false, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_code"}},
			DoNothing: true,
		}).
		Create(u)
	if res.Error != nil {
		if dberr.IsUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *unlockedAchievementRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UnlockedAchievement, error) {
	var out []*types.UnlockedAchievement
	if userID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&out).Error
	return out, err
}

func (r *unlockedAchievementRepo) CodesByUser(dbc dbctx.Context, userID uuid.UUID) (map[string]bool, error) {
	out := map[string]bool{}
	if userID == uuid.Nil {
		return out, nil
	}
	var codes []string
	if err := dbc.DB(r.db).Model(&types.UnlockedAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_code", &codes).Error; err != nil {
		return nil, err
	}
	for _, c := range codes {
		out[c] = true
	}
	return out, nil
}
