package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventPartitionAssigned     = "partition.assigned"
	EventPartitionReassigned   = "partition.reassigned"
	EventProblemGraded         = "problem.graded"
	EventProblemReset          = "problem.reset"
	EventCoursePublished       = "course.published"
	EventEnrollmentActivated   = "enrollment.activated"
	EventEnrollmentDeactivated = "enrollment.deactivated"
	EventEnrollmentModeChanged = "enrollment.mode_changed"
)

// UserEvent is the internal tracking log: partition assignments, grading
// outcomes, publishes. Append-only.
type UserEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID *uuid.UUID     `gorm:"type:uuid;index" json:"learner_id,omitempty"`
	CourseKey string         `gorm:"column:course_key;index" json:"course_key"`
	EventType string         `gorm:"column:event_type;not null;index" json:"event_type"`
	Payload   datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (UserEvent) TableName() string { return "user_event" }
