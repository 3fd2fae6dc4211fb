package jobs_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/capa"
	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/content/contenttest"
	"github.com/yungbote/courseware-backend/internal/courseware"
	"github.com/yungbote/courseware-backend/internal/db"
	"github.com/yungbote/courseware-backend/internal/events"
	"github.com/yungbote/courseware-backend/internal/grades"
	"github.com/yungbote/courseware-backend/internal/jobs"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/partition"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/state"
	"github.com/yungbote/courseware-backend/internal/types"
)

type regradeFixture struct {
	svc       courseware.Service
	stateRepo repos.BlockStateRepo
	jobRepo   repos.JobRunRepo
	gradebook grades.Service
	log       *logger.Logger
}

func newRegradeFixture(t *testing.T) *regradeFixture {
	t.Helper()
	gdb, err := db.NewTestDB()
	if err != nil {
		t.Fatal(err)
	}
	log, err := logger.New("development")
	if err != nil {
		t.Fatal(err)
	}
	store := content.NewStore(repos.NewCourseContentRepo(gdb, log), nil, log)
	raw, err := json.Marshal(contenttest.Tree(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Publish(context.Background(), raw); err != nil {
		t.Fatal(err)
	}

	stateRepo := repos.NewBlockStateRepo(gdb, log)
	enrollments := repos.NewEnrollmentRepo(gdb, log)
	gradebook := grades.NewService(repos.NewCourseGradeRepo(gdb, log), log)
	svc := courseware.NewService(
		store,
		partition.NewService(store, repos.NewGroupAssignmentRepo(gdb, log), events.Nop(), []byte("test-seed"), log),
		state.NewStore(stateRepo, 3, log),
		capa.NewGrader(100, 1<<20, log),
		gradebook,
		enrollments,
		events.Nop(),
		"UTC",
		log,
	)

	learner := uuid.New()
	if err := enrollments.Upsert(context.Background(), nil, &types.Enrollment{
		LearnerID: learner,
		CourseKey: contenttest.CourseID,
		Mode:      types.ModeAudit,
		Active:    true,
	}); err != nil {
		t.Fatal(err)
	}
	uk, err := keys.ParseUsageKey(contenttest.ProblemMCKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(context.Background(), courseware.Learner{ID: learner}, uk, map[string]string{"q1": "a"}, "s1"); err != nil {
		t.Fatal(err)
	}

	return &regradeFixture{
		svc:       svc,
		stateRepo: stateRepo,
		jobRepo:   repos.NewJobRunRepo(gdb, log),
		gradebook: gradebook,
		log:       log,
	}
}

func TestEnqueueCourseRegrade(t *testing.T) {
	f := newRegradeFixture(t)
	ctx := context.Background()

	if err := jobs.EnqueueCourseRegrade(ctx, f.jobRepo, contenttest.CourseID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func TestCourseRegradeHandlerRecomputesGrades(t *testing.T) {
	f := newRegradeFixture(t)
	ctx := context.Background()

	h := jobs.NewCourseRegradeHandler(f.stateRepo, f.svc, f.log)
	job := &types.JobRun{
		JobType:   types.JobTypeCourseRegrade,
		CourseKey: contenttest.CourseID,
		Status:    types.JobStatusQueued,
	}
	if err := h.Run(ctx, job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	learners, err := f.stateRepo.ListLearnersForCourse(ctx, nil, contenttest.CourseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(learners) != 1 {
		t.Fatalf("got %d learners with state, want 1", len(learners))
	}
	ck, err := keys.ParseCourseKey(contenttest.CourseID)
	if err != nil {
		t.Fatal(err)
	}
	cg, err := f.gradebook.Get(ctx, learners[0], ck)
	if err != nil {
		t.Fatal(err)
	}
	if cg == nil {
		t.Fatal("expected a persisted course grade after regrade")
	}
}

func TestCourseRegradeHandlerRejectsBadCourseKey(t *testing.T) {
	f := newRegradeFixture(t)
	h := jobs.NewCourseRegradeHandler(f.stateRepo, f.svc, f.log)
	job := &types.JobRun{JobType: types.JobTypeCourseRegrade, CourseKey: "not-a-course-key"}
	if err := h.Run(context.Background(), job); err == nil {
		t.Fatal("expected error for invalid course key")
	}
}
