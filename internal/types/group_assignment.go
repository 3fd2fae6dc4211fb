package types

import (
	"time"

	"github.com/google/uuid"
)

// GroupAssignment pins a learner to one group of one user partition of one
// course. The triple is unique; concurrent first assignments race on the
// index and the loser adopts the stored row.
type GroupAssignment struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID   uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_course_partition,unique" json:"learner_id"`
	CourseKey   string    `gorm:"column:course_key;not null;index:idx_learner_course_partition,unique" json:"course_key"`
	PartitionID int       `gorm:"column:partition_id;not null;index:idx_learner_course_partition,unique" json:"partition_id"`
	GroupID     int       `gorm:"column:group_id;not null" json:"group_id"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (GroupAssignment) TableName() string { return "group_assignment" }
