package api

import (
	"net/http"

	"zeroplus/course-app/internal/domain"
	"zeroplus/course-app/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires all HTTP endpoints onto the router.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	adminService service.AdminService,
	studentService service.StudentService,
) {
	authHandler := NewAuthHandler(authService)
	adminHandler := NewAdminHandler(adminService)
	studentHandler := NewStudentHandler(studentService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", studentHandler.GetProfile)

		// --- Course Routes (any authenticated, enrollment checked in service) ---
		courseGroup := protected.Group("/courses/:courseId")
		{
			courseGroup.GET("", studentHandler.GetCourse)
			courseGroup.GET("/assignments", studentHandler.ListAssignments)
			courseGroup.GET("/assignments/:assignmentId", studentHandler.GetAssignment)
			courseGroup.POST("/assignments/:assignmentId/uploads", studentHandler.RequestAnswerUploadURL)
			courseGroup.POST("/assignments/:assignmentId/submit", studentHandler.Submit)
			courseGroup.GET("/assignments/:assignmentId/submission", studentHandler.GetMySubmission)
		}

		// --- Admin Routes ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/courses", adminHandler.CreateCourse)
			adminGroup.GET("/courses", adminHandler.ListCourses)
			adminGroup.GET("/users", adminHandler.ListUsers)
			adminGroup.POST("/uploads", adminHandler.RequestGuideUploadURL)

			adminCourseGroup := adminGroup.Group("/courses/:courseId")
			{
				adminCourseGroup.POST("/students", adminHandler.EnrollStudent)
				adminCourseGroup.DELETE("/students/:studentId", adminHandler.RemoveStudent)

				adminCourseGroup.POST("/assignments", adminHandler.CreateAssignment)
				adminCourseGroup.PATCH("/assignments/:assignmentId", adminHandler.UpdateAssignment)
				adminCourseGroup.POST("/assignments/:assignmentId/post", adminHandler.TogglePosted)
				adminCourseGroup.POST("/assignments/:assignmentId/lock", adminHandler.ToggleLocked)
				adminCourseGroup.DELETE("/assignments/:assignmentId", adminHandler.DeleteAssignment)

				adminCourseGroup.GET("/assignments/:assignmentId/submissions", adminHandler.ListSubmissions)
				adminCourseGroup.POST("/assignments/:assignmentId/submissions/:studentId/grade", adminHandler.GradeShortAnswer)
			}
		}
	}
}
