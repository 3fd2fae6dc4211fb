package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/courseware-backend/internal/handlers"
	"github.com/yungbote/courseware-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName       string
	AllowOrigins      []string
	AuthMiddleware    *middleware.AuthMiddleware
	CoursewareHandler *handlers.CoursewareHandler
	CourseHandler     *handlers.CourseHandler
	EnrollmentHandler *handlers.EnrollmentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Courseware
	api.GET("/blocks/:usage_key", cfg.CoursewareHandler.GetBlock)
	api.POST("/blocks/:usage_key/submit", cfg.CoursewareHandler.SubmitBlock)
	api.POST("/blocks/:usage_key/reset", cfg.CoursewareHandler.ResetBlock)
	api.GET("/sections/:section_key/sequences/:usage_key", cfg.CoursewareHandler.GetSequence)

	// Courses
	api.POST("/courses", cfg.CourseHandler.Publish)
	api.GET("/courses/:course_key", cfg.CourseHandler.GetCourse)
	api.GET("/courses/:course_key/outline", cfg.CoursewareHandler.GetOutline)
	api.GET("/courses/:course_key/progress", cfg.CoursewareHandler.GetProgress)

	// Enrollments
	api.GET("/enrollments", cfg.EnrollmentHandler.List)
	api.POST("/enrollments", cfg.EnrollmentHandler.Enroll)
	api.PATCH("/enrollments/:course_key", cfg.EnrollmentHandler.ChangeMode)
	api.DELETE("/enrollments/:course_key", cfg.EnrollmentHandler.Unenroll)

	return router
}
