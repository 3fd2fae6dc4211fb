package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
)

type Repos struct {
	CourseContent   repos.CourseContentRepo
	BlockState      repos.BlockStateRepo
	GroupAssignment repos.GroupAssignmentRepo
	Enrollment      repos.EnrollmentRepo
	CourseGrade     repos.CourseGradeRepo
	UserEvent       repos.UserEventRepo
	JobRun          repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		CourseContent:   repos.NewCourseContentRepo(db, log),
		BlockState:      repos.NewBlockStateRepo(db, log),
		GroupAssignment: repos.NewGroupAssignmentRepo(db, log),
		Enrollment:      repos.NewEnrollmentRepo(db, log),
		CourseGrade:     repos.NewCourseGradeRepo(db, log),
		UserEvent:       repos.NewUserEventRepo(db, log),
		JobRun:          repos.NewJobRunRepo(db, log),
	}
}
