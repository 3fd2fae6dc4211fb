package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/enrollment"
	"github.com/yungbote/courseware-backend/internal/keys"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/requestdata"
)

type EnrollmentHandler struct {
	log               *logger.Logger
	enrollmentService enrollment.Service
}

func NewEnrollmentHandler(log *logger.Logger, enrollmentService enrollment.Service) *EnrollmentHandler {
	return &EnrollmentHandler{
		log:               log.With("handler", "EnrollmentHandler"),
		enrollmentService: enrollmentService,
	}
}

type enrollRequest struct {
	CourseKey string `json:"course_key"`
	Mode      string `json:"mode"`
}

func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ck, err := keys.ParseCourseKey(req.CourseKey)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_key", err)
		return
	}
	row, err := h.enrollmentService.Enroll(c.Request.Context(), rd.LearnerID, ck, req.Mode)
	if err != nil {
		respondEnrollmentError(c, err)
		return
	}
	RespondOK(c, row)
}

func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	ck, ok := courseKeyParam(c, "course_key")
	if !ok {
		return
	}
	if err := h.enrollmentService.Unenroll(c.Request.Context(), rd.LearnerID, ck); err != nil {
		respondEnrollmentError(c, err)
		return
	}
	RespondOK(c, gin.H{"active": false})
}

type changeModeRequest struct {
	Mode string `json:"mode"`
}

func (h *EnrollmentHandler) ChangeMode(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	ck, ok := courseKeyParam(c, "course_key")
	if !ok {
		return
	}
	var req changeModeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Mode == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("mode is required"))
		return
	}
	row, err := h.enrollmentService.ChangeMode(c.Request.Context(), rd.LearnerID, ck, req.Mode)
	if err != nil {
		respondEnrollmentError(c, err)
		return
	}
	RespondOK(c, row)
}

func (h *EnrollmentHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	rows, err := h.enrollmentService.List(c.Request.Context(), rd.LearnerID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, gin.H{"enrollments": rows})
}

func respondEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, enrollment.ErrCourseNotFound):
		RespondError(c, http.StatusNotFound, "course_not_found", err)
	case errors.Is(err, enrollment.ErrNotEnrolled):
		RespondError(c, http.StatusNotFound, "not_enrolled", err)
	case errors.Is(err, enrollment.ErrInvalidMode):
		RespondError(c, http.StatusBadRequest, "invalid_mode", err)
	default:
		RespondError(c, http.StatusInternalServerError, "enrollment_failed", err)
	}
}
