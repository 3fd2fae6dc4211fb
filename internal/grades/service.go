package grades

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

// Service persists course grade rollups.
type Service interface {
	Get(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) (*CourseSummary, error)
	Save(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, summary CourseSummary) error
}

type service struct {
	repo repos.CourseGradeRepo
	log  *logger.Logger
}

func NewService(repo repos.CourseGradeRepo, baseLog *logger.Logger) Service {
	return &service{repo: repo, log: baseLog.With("service", "GradesService")}
}

func (s *service) Get(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey) (*CourseSummary, error) {
	row, err := s.repo.Get(ctx, nil, learnerID, courseKey.String())
	if err != nil {
		return nil, fmt.Errorf("load course grade: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	summary := CourseSummary{Percent: row.Percent, Passed: row.Passed}
	if len(row.Breakdown) > 0 {
		if err := json.Unmarshal(row.Breakdown, &summary.Breakdown); err != nil {
			s.log.Warn("stored grade breakdown is unreadable", "learner_id", learnerID, "course_key", courseKey.String(), "error", err)
		}
	}
	return &summary, nil
}

func (s *service) Save(ctx context.Context, learnerID uuid.UUID, courseKey keys.CourseKey, summary CourseSummary) error {
	breakdown, err := json.Marshal(summary.Breakdown)
	if err != nil {
		return fmt.Errorf("encode grade breakdown: %w", err)
	}
	row := &types.CourseGrade{
		LearnerID: learnerID,
		CourseKey: courseKey.String(),
		Percent:   summary.Percent,
		Passed:    summary.Passed,
		Breakdown: datatypes.JSON(breakdown),
	}
	if err := s.repo.Upsert(ctx, nil, row); err != nil {
		return fmt.Errorf("save course grade: %w", err)
	}
	return nil
}
