package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/types"
)

type UserEventRepo interface {
	Append(ctx context.Context, tx *gorm.DB, row *types.UserEvent) error
	GetByCourse(ctx context.Context, tx *gorm.DB, courseKey string, eventType string, limit int) ([]*types.UserEvent, error)
}

type userEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserEventRepo(db *gorm.DB, baseLog *logger.Logger) UserEventRepo {
	return &userEventRepo{db: db, log: baseLog.With("repo", "UserEventRepo")}
}

func (r *userEventRepo) Append(ctx context.Context, tx *gorm.DB, row *types.UserEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil || row.EventType == "" {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	return transaction.WithContext(ctx).Create(row).Error
}

func (r *userEventRepo) GetByCourse(ctx context.Context, tx *gorm.DB, courseKey string, eventType string, limit int) ([]*types.UserEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserEvent
	if courseKey == "" {
		return results, nil
	}
	if limit <= 0 {
		limit = 100
	}

	q := transaction.WithContext(ctx).Where("course_key = ?", courseKey)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	if err := q.Order("created_at DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
