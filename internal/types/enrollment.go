package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ModeAudit    = "audit"
	ModeVerified = "verified"
	ModeHonor    = "honor"
)

type Enrollment struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID uuid.UUID      `gorm:"type:uuid;not null;index:idx_learner_course,unique" json:"learner_id"`
	CourseKey string         `gorm:"column:course_key;not null;index:idx_learner_course,unique" json:"course_key"`
	Mode      string         `gorm:"column:mode;not null;default:'audit'" json:"mode"`
	Active    bool           `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Enrollment) TableName() string { return "enrollment" }
