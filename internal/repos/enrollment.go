package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/types"
)

type EnrollmentRepo interface {
	GetActive(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) (*types.Enrollment, error)
	GetByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.Enrollment, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error
	Deactivate(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) GetActive(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if learnerID == uuid.Nil || courseKey == "" {
		return nil, nil
	}

	var row types.Enrollment
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND course_key = ? AND active = ?", learnerID, courseKey, true).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *enrollmentRepo) GetByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Enrollment
	if learnerID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Upsert keeps at most one enrollment row per (learner, course); re-enrolling
// reactivates the row and may change the mode.
func (r *enrollmentRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}, {Name: "course_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"mode":       row.Mode,
				"active":     row.Active,
				"updated_at": time.Now(),
				"deleted_at": nil,
			}),
		}).
		Create(row).Error
}

func (r *enrollmentRepo) Deactivate(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if learnerID == uuid.Nil || courseKey == "" {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("learner_id = ? AND course_key = ?", learnerID, courseKey).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now()}).Error
}
