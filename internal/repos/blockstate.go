package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/types"
)

type BlockStateRepo interface {
	Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, usageKey string) (*types.LearnerBlockState, error)
	GetMany(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, usageKeys []string) ([]*types.LearnerBlockState, error)
	GetGradedForCourse(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) ([]*types.LearnerBlockState, error)
	Insert(ctx context.Context, tx *gorm.DB, row *types.LearnerBlockState) error
	// UpdateVersioned applies the row only when the stored version still
	// matches fromVersion; the bool reports whether the write landed.
	UpdateVersioned(ctx context.Context, tx *gorm.DB, row *types.LearnerBlockState, fromVersion int64) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, usageKey string) error
	// ListLearnersForCourse returns every learner holding state in the
	// course, for full-course regrades.
	ListLearnersForCourse(ctx context.Context, tx *gorm.DB, courseKey string) ([]uuid.UUID, error)
}

type blockStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlockStateRepo(db *gorm.DB, baseLog *logger.Logger) BlockStateRepo {
	return &blockStateRepo{db: db, log: baseLog.With("repo", "BlockStateRepo")}
}

func (r *blockStateRepo) Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, usageKey string) (*types.LearnerBlockState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if learnerID == uuid.Nil || usageKey == "" {
		return nil, nil
	}

	var row types.LearnerBlockState
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND usage_key = ?", learnerID, usageKey).
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

func (r *blockStateRepo) GetMany(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, usageKeys []string) ([]*types.LearnerBlockState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LearnerBlockState
	if learnerID == uuid.Nil || len(usageKeys) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND usage_key IN ?", learnerID, usageKeys).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *blockStateRepo) GetGradedForCourse(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string) ([]*types.LearnerBlockState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LearnerBlockState
	if learnerID == uuid.Nil || courseKey == "" {
		return results, nil
	}

	// Usage keys embed the course triple, so a prefix match scopes the scan
	// to one course run.
	prefix := "block-v1:" + courseKeyBody(courseKey) + "+%"
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND usage_key LIKE ? AND earned IS NOT NULL AND possible IS NOT NULL", learnerID, prefix).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *blockStateRepo) ListLearnersForCourse(ctx context.Context, tx *gorm.DB, courseKey string) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var learners []uuid.UUID
	if courseKey == "" {
		return learners, nil
	}

	prefix := "block-v1:" + courseKeyBody(courseKey) + "+%"
	if err := transaction.WithContext(ctx).
		Model(&types.LearnerBlockState{}).
		Where("usage_key LIKE ?", prefix).
		Distinct("learner_id").
		Pluck("learner_id", &learners).Error; err != nil {
		return nil, err
	}
	return learners, nil
}

// courseKeyBody strips the "course-v1:" prefix from a canonical course key.
func courseKeyBody(courseKey string) string {
	const p = "course-v1:"
	if len(courseKey) > len(p) && courseKey[:len(p)] == p {
		return courseKey[len(p):]
	}
	return courseKey
}

func (r *blockStateRepo) Insert(ctx context.Context, tx *gorm.DB, row *types.LearnerBlockState) error {
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

	return transaction.WithContext(ctx).Create(row).Error
}

func (r *blockStateRepo) UpdateVersioned(ctx context.Context, tx *gorm.DB, row *types.LearnerBlockState, fromVersion int64) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil || row.ID == uuid.Nil {
		return false, nil
	}

	res := transaction.WithContext(ctx).
		Model(&types.LearnerBlockState{}).
		Where("id = ? AND version = ?", row.ID, fromVersion).
		Updates(map[string]interface{}{
			"state":      row.State,
			"earned":     row.Earned,
			"possible":   row.Possible,
			"attempts":   row.Attempts,
			"done":       row.Done,
			"version":    fromVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *blockStateRepo) Delete(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, usageKey string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if learnerID == uuid.Nil || usageKey == "" {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("learner_id = ? AND usage_key = ?", learnerID, usageKey).
		Delete(&types.LearnerBlockState{}).Error
}
