package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CourseGrade is the persisted rollup for one learner in one course, kept
// consistent with learner_block_state by the aggregator after every graded
// write.
type CourseGrade struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_learner_course_grade,unique" json:"learner_id"`
	CourseKey  string         `gorm:"column:course_key;not null;index:idx_learner_course_grade,unique" json:"course_key"`
	Percent    float64        `gorm:"column:percent;not null;default:0" json:"percent"`
	Passed     bool           `gorm:"column:passed;not null;default:false" json:"passed"`
	Breakdown  datatypes.JSON `gorm:"type:jsonb;column:breakdown" json:"breakdown"`
	ComputedAt time.Time      `gorm:"column:computed_at;not null;default:now()" json:"computed_at"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (CourseGrade) TableName() string { return "course_grade" }
