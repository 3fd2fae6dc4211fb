package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CourseContent is one published version of a course tree. Only the newest
// version per course_key is served; older rows stay for audit.
type CourseContent struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseKey   string         `gorm:"column:course_key;not null;index:idx_course_version,unique" json:"course_key"`
	Version     int64          `gorm:"column:version;not null;index:idx_course_version,unique" json:"version"`
	Tree        datatypes.JSON `gorm:"type:jsonb;column:tree;not null" json:"tree"`
	PublishedAt time.Time      `gorm:"column:published_at;not null;default:now()" json:"published_at"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (CourseContent) TableName() string { return "course_content" }
