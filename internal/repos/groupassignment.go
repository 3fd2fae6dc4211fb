package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/types"
)

type GroupAssignmentRepo interface {
	Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string, partitionID int) (*types.GroupAssignment, error)
	// Insert creates the row; a unique violation means another request won
	// the race and the caller should re-read.
	Insert(ctx context.Context, tx *gorm.DB, row *types.GroupAssignment) error
	UpdateGroup(ctx context.Context, tx *gorm.DB, id uuid.UUID, groupID int) error
}

type groupAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) GroupAssignmentRepo {
	return &groupAssignmentRepo{db: db, log: baseLog.With("repo", "GroupAssignmentRepo")}
}

func (r *groupAssignmentRepo) Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, courseKey string, partitionID int) (*types.GroupAssignment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if learnerID == uuid.Nil || courseKey == "" {
		return nil, nil
	}

	var row types.GroupAssignment
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND course_key = ? AND partition_id = ?", learnerID, courseKey, partitionID).
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

func (r *groupAssignmentRepo) Insert(ctx context.Context, tx *gorm.DB, row *types.GroupAssignment) error {
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

func (r *groupAssignmentRepo) UpdateGroup(ctx context.Context, tx *gorm.DB, id uuid.UUID, groupID int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.GroupAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"group_id": groupID, "updated_at": time.Now()}).Error
}
