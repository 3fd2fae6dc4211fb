package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/types"
)

// Tracker is the internal tracking log. Emission is best-effort: a failed
// append is logged and never fails the request that produced it.
type Tracker interface {
	Emit(ctx context.Context, eventType string, learnerID *uuid.UUID, courseKey string, payload map[string]interface{})
}

type tracker struct {
	repo repos.UserEventRepo
	log  *logger.Logger
}

func NewTracker(repo repos.UserEventRepo, baseLog *logger.Logger) Tracker {
	return &tracker{repo: repo, log: baseLog.With("service", "EventTracker")}
}

func (t *tracker) Emit(ctx context.Context, eventType string, learnerID *uuid.UUID, courseKey string, payload map[string]interface{}) {
	var raw datatypes.JSON
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = datatypes.JSON(b)
		}
	}
	row := &types.UserEvent{
		LearnerID: learnerID,
		CourseKey: courseKey,
		EventType: eventType,
		Payload:   raw,
	}
	if err := t.repo.Append(ctx, nil, row); err != nil {
		t.log.Warn("tracking event dropped", "event_type", eventType, "course_key", courseKey, "error", err)
		return
	}
	t.log.Debug("tracking event", "event_type", eventType, "course_key", courseKey)
}

// Nop returns a tracker that discards everything, for tests.
func Nop() Tracker { return nopTracker{} }

type nopTracker struct{}

func (nopTracker) Emit(context.Context, string, *uuid.UUID, string, map[string]interface{}) {}
