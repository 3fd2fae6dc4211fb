package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LearnerBlockState is the durable per-(learner, block) record: opaque block
// state, the latest score, and the attempt counter. Version guards the
// read-modify-write cycle; every update must carry the version it read.
type LearnerBlockState struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID uuid.UUID      `gorm:"type:uuid;not null;index:idx_learner_usage,unique" json:"learner_id"`
	UsageKey  string         `gorm:"column:usage_key;not null;index:idx_learner_usage,unique" json:"usage_key"`
	State     datatypes.JSON `gorm:"type:jsonb;column:state" json:"state"`
	Earned    *float64       `gorm:"column:earned" json:"earned,omitempty"`
	Possible  *float64       `gorm:"column:possible" json:"possible,omitempty"`
	Attempts  int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Done      bool           `gorm:"column:done;not null;default:false" json:"done"`
	Version   int64          `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (LearnerBlockState) TableName() string { return "learner_block_state" }
