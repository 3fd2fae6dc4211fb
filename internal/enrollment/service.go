package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/events"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

var (
	ErrCourseNotFound = errors.New("enrollment: course not found")
	ErrNotEnrolled    = errors.New("enrollment: learner is not enrolled")
	ErrInvalidMode    = errors.New("enrollment: unknown mode")
)

// Service manages a learner's enrollment lifecycle. A learner has at most one
// active enrollment per course; re-enrolling reactivates the existing row.
type Service interface {
	Enroll(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, mode string) (*types.Enrollment, error)
	Unenroll(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) error
	ChangeMode(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, mode string) (*types.Enrollment, error)
	List(ctx context.Context, learnerID uuid.UUID) ([]*types.Enrollment, error)
}

type service struct {
	repo    repos.EnrollmentRepo
	store   content.Store
	tracker events.Tracker
	log     *logger.Logger
}

func NewService(repo repos.EnrollmentRepo, store content.Store, tracker events.Tracker, baseLog *logger.Logger) Service {
	return &service{
		repo:    repo,
		store:   store,
		tracker: tracker,
		log:     baseLog.With("service", "Enrollment"),
	}
}

func validMode(mode string) bool {
	switch mode {
	case types.ModeAudit, types.ModeVerified, types.ModeHonor:
		return true
	}
	return false
}

func (s *service) Enroll(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, mode string) (*types.Enrollment, error) {
	if mode == "" {
		mode = types.ModeAudit
	}
	if !validMode(mode) {
		return nil, fmt.Errorf("%w %q", ErrInvalidMode, mode)
	}
	if _, err := s.store.Tree(ctx, courseKey); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	row := &types.Enrollment{
		LearnerID: learnerID,
		CourseKey: courseKey.String(),
		Mode:      mode,
		Active:    true,
	}
	if err := s.repo.Upsert(ctx, nil, row); err != nil {
		return nil, err
	}

	s.tracker.Emit(ctx, types.EventEnrollmentActivated, &learnerID, courseKey.String(), map[string]interface{}{
		"mode": mode,
	})
	s.log.Info("learner enrolled", "learner_id", learnerID, "course_key", courseKey.String(), "mode", mode)
	return row, nil
}

func (s *service) Unenroll(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) error {
	active, err := s.repo.GetActive(ctx, nil, learnerID, courseKey.String())
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNotEnrolled
	}
	if err := s.repo.Deactivate(ctx, nil, learnerID, courseKey.String()); err != nil {
		return err
	}
	s.tracker.Emit(ctx, types.EventEnrollmentDeactivated, &learnerID, courseKey.String(), nil)
	s.log.Info("learner unenrolled", "learner_id", learnerID, "course_key", courseKey.String())
	return nil
}

// ChangeMode switches the mode of an active enrollment. A mode change does not
// touch existing block state or recorded grades; it only affects access checks
// from this point forward.
func (s *service) ChangeMode(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, mode string) (*types.Enrollment, error) {
	if !validMode(mode) {
		return nil, fmt.Errorf("%w %q", ErrInvalidMode, mode)
	}
	active, err := s.repo.GetActive(ctx, nil, learnerID, courseKey.String())
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNotEnrolled
	}
	if active.Mode == mode {
		return active, nil
	}

	prev := active.Mode
	active.Mode = mode
	if err := s.repo.Upsert(ctx, nil, active); err != nil {
		return nil, err
	}

	s.tracker.Emit(ctx, types.EventEnrollmentModeChanged, &learnerID, courseKey.String(), map[string]interface{}{
		"from": prev,
		"to":   mode,
	})
	s.log.Info("enrollment mode changed", "learner_id", learnerID, "course_key", courseKey.String(), "from", prev, "to", mode)
	return active, nil
}

func (s *service) List(ctx context.Context, learnerID uuid.UUID) ([]*types.Enrollment, error) {
	return s.repo.GetByLearner(ctx, nil, learnerID)
}
