package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/types"
)

type CourseContentRepo interface {
	GetLatest(ctx context.Context, tx *gorm.DB, courseKey string) (*types.CourseContent, error)
	ListCourseKeys(ctx context.Context, tx *gorm.DB) ([]string, error)
	// InsertNextVersion persists the tree as max(version)+1 for the course.
	InsertNextVersion(ctx context.Context, tx *gorm.DB, row *types.CourseContent) error
}

type courseContentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseContentRepo(db *gorm.DB, baseLog *logger.Logger) CourseContentRepo {
	return &courseContentRepo{db: db, log: baseLog.With("repo", "CourseContentRepo")}
}

func (r *courseContentRepo) GetLatest(ctx context.Context, tx *gorm.DB, courseKey string) (*types.CourseContent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if courseKey == "" {
		return nil, nil
	}

	var row types.CourseContent
	err := transaction.WithContext(ctx).
		Where("course_key = ?", courseKey).
		Order("version DESC").
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

func (r *courseContentRepo) ListCourseKeys(ctx context.Context, tx *gorm.DB) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var keys []string
	if err := transaction.WithContext(ctx).
		Model(&types.CourseContent{}).
		Distinct("course_key").
		Pluck("course_key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *courseContentRepo) InsertNextVersion(ctx context.Context, tx *gorm.DB, row *types.CourseContent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil || row.CourseKey == "" {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var maxVersion int64
		if err := txx.Model(&types.CourseContent{}).
			Where("course_key = ?", row.CourseKey).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		row.Version = maxVersion + 1
		return txx.Create(row).Error
	})
}
