package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/courseware-backend/internal/auth"
	"github.com/yungbote/courseware-backend/internal/capa"
	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/courseware"
	"github.com/yungbote/courseware-backend/internal/enrollment"
	"github.com/yungbote/courseware-backend/internal/events"
	"github.com/yungbote/courseware-backend/internal/grades"
	"github.com/yungbote/courseware-backend/internal/jobs"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/partition"
	"github.com/yungbote/courseware-backend/internal/state"
	"github.com/yungbote/courseware-backend/internal/types"
)

type Services struct {
	Auth       auth.Service
	Tracker    events.Tracker
	Content    content.Store
	Partitions partition.Service
	States     state.Store
	Grader     *capa.Grader
	Grades     grades.Service
	Enrollment enrollment.Service
	Courseware courseware.Service
	JobWorker  *jobs.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	authService := auth.NewService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL)
	tracker := events.NewTracker(r.UserEvent, log)
	contentStore := content.NewStore(r.CourseContent, clients.Redis, log)
	partitions := partition.NewService(contentStore, r.GroupAssignment, tracker, []byte(cfg.PartitionSeed), log)
	states := state.NewStore(r.BlockState, cfg.StateWriteRetries, log)
	grader := capa.NewGrader(cfg.GraderCPUMillis, cfg.GraderMemBytes, log)
	gradebook := grades.NewService(r.CourseGrade, log)
	enrollmentService := enrollment.NewService(r.Enrollment, contentStore, tracker, log)

	coursewareService := courseware.NewService(
		contentStore,
		partitions,
		states,
		grader,
		gradebook,
		r.Enrollment,
		tracker,
		cfg.DefaultCourseTimezone,
		log,
	)

	worker := jobs.NewWorker(r.JobRun, log)
	worker.Register(types.JobTypeCourseRegrade, jobs.NewCourseRegradeHandler(r.BlockState, coursewareService, log))

	return Services{
		Auth:       authService,
		Tracker:    tracker,
		Content:    contentStore,
		Partitions: partitions,
		States:     states,
		Grader:     grader,
		Grades:     gradebook,
		Enrollment: enrollmentService,
		Courseware: coursewareService,
		JobWorker:  worker,
	}, nil
}
