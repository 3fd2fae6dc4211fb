package db

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/courseware-backend/internal/types"
)

var testDBSeq atomic.Int64

// NewTestDB opens an in-memory sqlite database with the full schema, for
// repo and store tests. Each call gets its own database; rows must set their
// own IDs since sqlite has no uuid_generate_v4().
func NewTestDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_busy_timeout=5000", testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := gdb.AutoMigrate(
		&types.Enrollment{},
		&types.GroupAssignment{},
		&types.LearnerBlockState{},
		&types.CourseContent{},
		&types.CourseGrade{},
		&types.UserEvent{},
		&types.JobRun{},
	); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return gdb, nil
}
