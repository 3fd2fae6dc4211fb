package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseware-backend/internal/server"
)

func wireRouter(cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:       cfg.ServiceName,
		AllowOrigins:      cfg.AllowOrigins,
		AuthMiddleware:    middleware.Auth,
		CoursewareHandler: handlers.Courseware,
		CourseHandler:     handlers.Course,
		EnrollmentHandler: handlers.Enrollment,
	})
}
