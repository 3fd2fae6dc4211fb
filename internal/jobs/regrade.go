package jobs

import (
	"context"
	"fmt"

	"github.com/yungbote/courseware-backend/internal/courseware"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

// CourseRegradeHandler recomputes the persisted course grade for every
// learner with state in the course. Per-learner failures are logged and the
// job fails only if nothing could be regraded cleanly.
type CourseRegradeHandler struct {
	states     repos.BlockStateRepo
	courseware courseware.Service
	log        *logger.Logger
}

func NewCourseRegradeHandler(states repos.BlockStateRepo, cw courseware.Service, baseLog *logger.Logger) *CourseRegradeHandler {
	return &CourseRegradeHandler{
		states:     states,
		courseware: cw,
		log:        baseLog.With("job", types.JobTypeCourseRegrade),
	}
}

func (h *CourseRegradeHandler) Run(ctx context.Context, job *types.JobRun) error {
	courseKey, err := keys.ParseCourseKey(job.CourseKey)
	if err != nil {
		return fmt.Errorf("job %s carries invalid course key %q: %w", job.ID, job.CourseKey, err)
	}
	learners, err := h.states.ListLearnersForCourse(ctx, nil, courseKey.String())
	if err != nil {
		return fmt.Errorf("list learners for %s: %w", courseKey.String(), err)
	}

	var failed int
	for _, learnerID := range learners {
		if err := h.courseware.Regrade(ctx, learnerID, courseKey); err != nil {
			failed++
			h.log.Warn("regrade failed for learner", "learner_id", learnerID, "course_key", courseKey.String(), "error", err)
		}
	}
	h.log.Info("course regrade finished", "course_key", courseKey.String(), "learners", len(learners), "failed", failed)
	if failed > 0 && failed == len(learners) {
		return fmt.Errorf("regrade failed for all %d learners", failed)
	}
	return nil
}
