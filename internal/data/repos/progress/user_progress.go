package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/negotiator-backend/internal/domain"
	domprogress "github.com/yungbote/negotiator-backend/internal/domain/progress"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// ErrVersionConflict means another writer committed between our read and write.
var ErrVersionConflict = errors.New("user progress version conflict")

const maxUpdateAttempts = 3

type UserProgressRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.UserProgress, error)
	// Update runs fn against the locked current row (created with neutral defaults when
	// missing) and writes the result back with an optimistic version check.
	Update(dbc dbctx.Context, userID uuid.UUID, fn func(tx *gorm.DB, p *types.UserProgress) error) (*types.UserProgress, error)
	Delete(dbc dbctx.Context, userID uuid.UUID) error
}

type userProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProgressRepo(db *gorm.DB, baseLog *logger.Logger) UserProgressRepo {
	return &userProgressRepo{
		db:  db,
		log: baseLog.With("repo", "UserProgressRepo"),
	}
}

func (r *userProgressRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.UserProgress, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var out types.UserProgress
	err := dbc.DB(r.db).Where("user_id = ?", userID).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.UserID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *userProgressRepo) Update(dbc dbctx.Context, userID uuid.UUID, fn func(tx *gorm.DB, p *types.UserProgress) error) (*types.UserProgress, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	var out *types.UserProgress
	var err error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		out, err = r.updateOnce(dbc, userID, fn)
		if !errors.Is(err, ErrVersionConflict) {
			return out, err
		}
		r.log.Warn("User progress write conflict, retrying", "user_id", userID, "attempt", attempt)
	}
	return nil, err
}

func (r *userProgressRepo) updateOnce(dbc dbctx.Context, userID uuid.UUID, fn func(tx *gorm.DB, p *types.UserProgress) error) (*types.UserProgress, error) {
	var out *types.UserProgress
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		seed := domprogress.NewUserProgress(userID)
		if err := txx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
			return err
		}

		var cur types.UserProgress
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&cur).Error; err != nil {
			return err
		}
		version := cur.Version
		if err := fn(txx, &cur); err != nil {
			return err
		}
		cur.UserID = userID
		cur.Version = version + 1
		cur.UpdatedAt = time.Now()

		res := txx.Model(&types.UserProgress{}).
			Where("user_id = ? AND version = ?", userID, version).
			Select("*").
			Omit("user_id", "created_at").
			Updates(&cur)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		out = &cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userProgressRepo) Delete(dbc dbctx.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("user_id = ?", userID).Delete(&types.UserProgress{}).Error
}
