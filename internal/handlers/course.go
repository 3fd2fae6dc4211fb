package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/events"
	"github.com/yungbote/courseware-backend/internal/jobs"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/requestdata"
	"github.com/yungbote/courseware-backend/internal/types"
)

const maxCourseUploadBytes = 16 << 20

type CourseHandler struct {
	log          *logger.Logger
	contentStore content.Store
	jobRepo      repos.JobRunRepo
	tracker      events.Tracker
}

func NewCourseHandler(log *logger.Logger, contentStore content.Store, jobRepo repos.JobRunRepo, tracker events.Tracker) *CourseHandler {
	return &CourseHandler{
		log:          log.With("handler", "CourseHandler"),
		contentStore: contentStore,
		jobRepo:      jobRepo,
		tracker:      tracker,
	}
}

// Publish ingests a serialized course tree (JSON or YAML body), makes it the
// live version, and queues a regrade of every learner with state in the
// course. Staff only.
func (h *CourseHandler) Publish(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if !rd.IsStaff {
		RespondError(c, http.StatusForbidden, "staff_only", nil)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCourseUploadBytes))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "read_body_failed", err)
		return
	}
	tree, err := h.contentStore.Publish(c.Request.Context(), raw)
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "publish_failed", err)
		return
	}

	courseKey := tree.CourseKey.String()
	h.tracker.Emit(c.Request.Context(), types.EventCoursePublished, &rd.LearnerID, courseKey, map[string]interface{}{
		"version": tree.Version,
	})
	if err := jobs.EnqueueCourseRegrade(c.Request.Context(), h.jobRepo, courseKey); err != nil {
		h.log.Warn("regrade enqueue failed after publish", "course_key", courseKey, "error", err)
	}

	RespondOK(c, gin.H{
		"course_key": courseKey,
		"version":    tree.Version,
	})
}

// GetCourse returns the published tree down to the requested depth.
func (h *CourseHandler) GetCourse(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	ck, ok := courseKeyParam(c, "course_key")
	if !ok {
		return
	}
	depth := -1
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_depth", errors.New("depth must be a non-negative integer"))
			return
		}
		depth = d
	}
	node, err := h.contentStore.GetCourse(c.Request.Context(), ck, depth)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, node)
}
