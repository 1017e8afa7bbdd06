package routes

import (
	"taxforms-api/controllers"
	"taxforms-api/middleware"
	"taxforms-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies carries everything the route table wires together.
type Dependencies struct {
	DB               *gorm.DB
	Sessions         middleware.SessionResolver
	RateLimiter      *middleware.RateLimiter
	Auth             *controllers.AuthController
	FormTypes        *controllers.FormTypeController
	Uploads          *controllers.UploadController
	Applications     *controllers.ApplicationController
	Wizard           *controllers.WizardController
	AdminApplication *controllers.AdminApplicationController
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	limit := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		limit = deps.RateLimiter.Handler()
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/auth/signup", limit, deps.Auth.Signup)
			public.POST("/auth/login", limit, deps.Auth.Login)
			public.GET("/health", controllers.HealthCheck(deps.DB))
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.Sessions))
		{
			protected.GET("/profile", deps.Auth.Profile)

			// Form schema
			protected.GET("/form-types", deps.FormTypes.ListActive)
			protected.GET("/form-types/:id/fields", deps.FormTypes.Fields)

			// File intake
			protected.POST("/uploads", limit, deps.Uploads.Upload)

			// Applications owned by the caller
			applications := protected.Group("/applications")
			{
				applications.POST("", limit, deps.Applications.Create)
				applications.GET("", deps.Applications.List)
				applications.GET("/:id", deps.Applications.Get)
				applications.DELETE("/:id", deps.Applications.Delete)
			}
			protected.GET("/dashboard", deps.Applications.Dashboard)

			// Server-held application wizard
			wizard := protected.Group("/wizard")
			{
				wizard.POST("", deps.Wizard.Start)
				wizard.GET("/:id", deps.Wizard.Get)
				wizard.PUT("/:id/form-type", deps.Wizard.SelectFormType)
				wizard.PUT("/:id/fields", deps.Wizard.SetFields)
				wizard.POST("/:id/files", limit, deps.Wizard.UploadFile)
				wizard.DELETE("/:id/files/:field", deps.Wizard.ClearFile)
				wizard.POST("/:id/next", deps.Wizard.Next)
				wizard.POST("/:id/back", deps.Wizard.Back)
				wizard.POST("/:id/submit", limit, deps.Wizard.Submit)
			}

			// Admin only
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/form-types", deps.FormTypes.ListAll)
				admin.POST("/form-types", deps.FormTypes.Create)
				admin.PUT("/form-types/:id", deps.FormTypes.Update)
				admin.POST("/form-types/:id/fields", deps.FormTypes.AddField)
				admin.DELETE("/fields/:field_id", deps.FormTypes.DeleteField)

				admin.GET("/applications", deps.AdminApplication.List)
				admin.GET("/applications/:id", deps.AdminApplication.Get)
				admin.PUT("/applications/:id/status", deps.AdminApplication.UpdateStatus)
				admin.DELETE("/applications/:id", deps.AdminApplication.Delete)
				admin.POST("/applications/bulk-delete", deps.AdminApplication.BulkDelete)

				admin.POST("/files/download", deps.AdminApplication.DownloadFile)
				admin.GET("/dashboard", deps.AdminApplication.Dashboard)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Endpoint not found"})
	})
}
