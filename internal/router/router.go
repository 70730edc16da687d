// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/scriptoria/manuscript-vault/internal/config"
	"github.com/scriptoria/manuscript-vault/internal/handlers"
	"github.com/scriptoria/manuscript-vault/internal/middleware"
	"github.com/scriptoria/manuscript-vault/internal/models"
	"github.com/scriptoria/manuscript-vault/internal/services"
	"github.com/scriptoria/manuscript-vault/internal/utils"
	"github.com/scriptoria/manuscript-vault/internal/vault"
	"github.com/scriptoria/manuscript-vault/internal/watermark"
)

func Initialize(db *gorm.DB, cfg *config.Config, v *vault.Vault, blobs services.BlobStore) *gin.Engine {
	// Initialize services
	accessService := services.NewAccessService(db)
	settingsService := services.NewSettingsService(db)
	manuscriptService := services.NewManuscriptService(db, v, blobs)
	deliveryService := services.NewDeliveryService(db, accessService, settingsService, v, blobs, watermark.NewEngine())

	// Initialize handlers
	accessHandler := handlers.NewAccessHandler(accessService)
	manuscriptHandler := handlers.NewManuscriptHandler(manuscriptService, deliveryService)
	adminHandler := handlers.NewAdminHandler(settingsService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Manuscript routes
		manuscripts := v1.Group("/manuscripts")
		{
			manuscripts.GET("", middleware.OptionalAuth(), manuscriptHandler.ListManuscripts)
			manuscripts.GET("/:id", middleware.OptionalAuth(), manuscriptHandler.GetManuscript)

			// Authenticated routes
			protected := manuscripts.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", manuscriptHandler.CreateManuscript)
				protected.POST("/:id/files", middleware.UploadRateLimit(), manuscriptHandler.UploadFile)
				protected.DELETE("/:id/files/:index", manuscriptHandler.DeleteFile)
				protected.GET("/:id/grants", accessHandler.GetManuscriptGrants)

				// Content delivery
				protected.GET("/:id/files/:index/view", middleware.DeliveryRateLimit(), manuscriptHandler.ViewFile)
				protected.GET("/:id/files/:index/download", middleware.DeliveryRateLimit(), manuscriptHandler.DownloadFile)
			}
		}

		// Access request routes
		requests := v1.Group("/access-requests")
		requests.Use(middleware.AuthRequired())
		{
			requests.POST("", middleware.AccessRequestRateLimit(), accessHandler.FileRequest)
			requests.GET("", accessHandler.GetMyRequests)
			requests.GET("/pending", middleware.RoleRequired(models.UserRoleReviewer, models.UserRoleAdmin), accessHandler.GetPendingRequests)
			requests.PUT("/:id/approve", accessHandler.ApproveRequest)
			requests.PUT("/:id/reject", accessHandler.RejectRequest)
		}

		// Grant routes
		grants := v1.Group("/grants")
		grants.Use(middleware.AuthRequired())
		{
			grants.GET("/mine", accessHandler.GetMyGrants)
			grants.PUT("/:id/revoke", accessHandler.RevokeGrant)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.RoleRequired(models.UserRoleAdmin))
		{
			admin.GET("/watermark-settings", adminHandler.GetWatermarkSettings)
			admin.PUT("/watermark-settings", adminHandler.UpdateWatermarkSettings)
		}
	}

	return r
}
