package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/courseware"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/requestdata"
)

type CoursewareHandler struct {
	log               *logger.Logger
	coursewareService courseware.Service
}

func NewCoursewareHandler(log *logger.Logger, coursewareService courseware.Service) *CoursewareHandler {
	return &CoursewareHandler{
		log:               log.With("handler", "CoursewareHandler"),
		coursewareService: coursewareService,
	}
}

func requestLearner(c *gin.Context) (courseware.Learner, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return courseware.Learner{}, false
	}
	return courseware.Learner{ID: rd.LearnerID, IsStaff: rd.IsStaff, Country: rd.Country}, true
}

func usageKeyParam(c *gin.Context, name string) (keys.UsageKey, bool) {
	uk, err := keys.ParseUsageKey(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_usage_key", err)
		return keys.UsageKey{}, false
	}
	return uk, true
}

func courseKeyParam(c *gin.Context, name string) (keys.CourseKey, bool) {
	ck, err := keys.ParseCourseKey(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_key", err)
		return keys.CourseKey{}, false
	}
	return ck, true
}

func (h *CoursewareHandler) GetBlock(c *gin.Context) {
	learner, ok := requestLearner(c)
	if !ok {
		return
	}
	uk, ok := usageKeyParam(c, "usage_key")
	if !ok {
		return
	}
	vm, err := h.coursewareService.View(c.Request.Context(), learner, uk)
	if err != nil {
		respondCoursewareError(c, err)
		return
	}
	RespondOK(c, vm)
}

type submitRequest struct {
	Answers   map[string]string `json:"answers"`
	SessionID string            `json:"session_id"`
}

func (h *CoursewareHandler) SubmitBlock(c *gin.Context) {
	learner, ok := requestLearner(c)
	if !ok {
		return
	}
	uk, ok := usageKeyParam(c, "usage_key")
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(req.Answers) == 0 {
		RespondError(c, http.StatusBadRequest, "missing_answers", errors.New("answers are required"))
		return
	}
	result, err := h.coursewareService.Submit(c.Request.Context(), learner, uk, req.Answers, req.SessionID)
	if err != nil {
		if errors.Is(err, courseware.ErrNotGradable) {
			RespondError(c, http.StatusBadRequest, "not_gradable", err)
			return
		}
		respondCoursewareError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *CoursewareHandler) GetSequence(c *gin.Context) {
	learner, ok := requestLearner(c)
	if !ok {
		return
	}
	section, ok := usageKeyParam(c, "section_key")
	if !ok {
		return
	}
	subsection, ok := usageKeyParam(c, "usage_key")
	if !ok {
		return
	}
	seq, err := h.coursewareService.Sequence(c.Request.Context(), learner, section, subsection)
	if err != nil {
		respondCoursewareError(c, err)
		return
	}
	RespondOK(c, seq)
}

func (h *CoursewareHandler) GetOutline(c *gin.Context) {
	learner, ok := requestLearner(c)
	if !ok {
		return
	}
	ck, ok := courseKeyParam(c, "course_key")
	if !ok {
		return
	}
	depth := 0
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_depth", errors.New("depth must be a non-negative integer"))
			return
		}
		depth = d
	}
	outline, err := h.coursewareService.Outline(c.Request.Context(), learner, ck, depth)
	if err != nil {
		respondCoursewareError(c, err)
		return
	}
	RespondOK(c, outline)
}

func (h *CoursewareHandler) GetProgress(c *gin.Context) {
	learner, ok := requestLearner(c)
	if !ok {
		return
	}
	ck, ok := courseKeyParam(c, "course_key")
	if !ok {
		return
	}
	progress, err := h.coursewareService.Progress(c.Request.Context(), learner, ck)
	if err != nil {
		respondCoursewareError(c, err)
		return
	}
	RespondOK(c, progress)
}

type resetRequest struct {
	LearnerID uuid.UUID `json:"learner_id"`
}

func (h *CoursewareHandler) ResetBlock(c *gin.Context) {
	requester, ok := requestLearner(c)
	if !ok {
		return
	}
	uk, ok := usageKeyParam(c, "usage_key")
	if !ok {
		return
	}
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LearnerID == uuid.Nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("learner_id is required"))
		return
	}
	if err := h.coursewareService.ResetProblem(c.Request.Context(), requester, req.LearnerID, uk); err != nil {
		respondCoursewareError(c, err)
		return
	}
	RespondOK(c, gin.H{"reset": true})
}
