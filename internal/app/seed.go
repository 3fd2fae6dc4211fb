package app

import (
	"context"
	"errors"
	"os"

	"github.com/yungbote/courseware-backend/internal/content"
)

// seedCourse publishes the fixture named by SEED_COURSE_FILE if that course
// has no published version yet. Local-bootstrap convenience; a failed seed
// never blocks startup.
func (a *App) seedCourse(ctx context.Context) {
	path := a.Cfg.SeedCourseFile
	if path == "" {
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		a.Log.Warn("seed course unreadable", "path", path, "error", err)
		return
	}
	t, err := content.DecodeTree(raw, 0)
	if err != nil {
		a.Log.Warn("seed course invalid", "path", path, "error", err)
		return
	}
	if _, err := a.Services.Content.Tree(ctx, t.CourseKey); err == nil {
		a.Log.Debug("seed course already published", "course_key", t.CourseKey.String())
		return
	} else if !errors.Is(err, content.ErrNotFound) {
		a.Log.Warn("seed course lookup failed", "course_key", t.CourseKey.String(), "error", err)
		return
	}
	if _, err := a.Services.Content.Publish(ctx, raw); err != nil {
		a.Log.Warn("seed course publish failed", "course_key", t.CourseKey.String(), "error", err)
		return
	}
	a.Log.Info("seed course published", "course_key", t.CourseKey.String())
}
