package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/types"
)

type CourseGradeRepo interface {
	Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) (*types.CourseGrade, error)
	Upsert(ctx context.Context, tx *gorm.DB, row *types.CourseGrade) error
}

type courseGradeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseGradeRepo(db *gorm.DB, baseLog *logger.Logger) CourseGradeRepo {
	return &courseGradeRepo{db: db, log: baseLog.With("repo", "CourseGradeRepo")}
}

func (r *courseGradeRepo) Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) (*types.CourseGrade, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if learnerID == uuid.Nil || courseKey == "" {
		return nil, nil
	}

	var row types.CourseGrade
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND course_key = ?", learnerID, courseKey).
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

func (r *courseGradeRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.CourseGrade) error {
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
	row.ComputedAt = time.Now()

	return transaction.WithContext(ctx).
		Where("learner_id = ? AND course_key = ?", row.LearnerID, row.CourseKey).
		Assign(map[string]interface{}{
			"percent":     row.Percent,
			"passed":      row.Passed,
			"breakdown":   row.Breakdown,
			"computed_at": row.ComputedAt,
			"updated_at":  time.Now(),
		}).
		FirstOrCreate(row).Error
}
