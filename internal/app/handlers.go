package app

import (
	"github.com/yungbote/courseware-backend/internal/handlers"
	"github.com/yungbote/courseware-backend/internal/logger"
)

type Handlers struct {
	Courseware *handlers.CoursewareHandler
	Course     *handlers.CourseHandler
	Enrollment *handlers.EnrollmentHandler
}

func wireHandlers(log *logger.Logger, services Services, r Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Courseware: handlers.NewCoursewareHandler(log, services.Courseware),
		Course:     handlers.NewCourseHandler(log, services.Content, r.JobRun, services.Tracker),
		Enrollment: handlers.NewEnrollmentHandler(log, services.Enrollment),
	}
}
