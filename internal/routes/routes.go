package routes

import (
	"github.com/ldco/PuppetMaster2-sub001/internal/cache"
	"github.com/ldco/PuppetMaster2-sub001/internal/config"
	"github.com/ldco/PuppetMaster2-sub001/internal/handlers"
	"github.com/ldco/PuppetMaster2-sub001/internal/hub"
	"github.com/ldco/PuppetMaster2-sub001/internal/middleware"
	"github.com/ldco/PuppetMaster2-sub001/internal/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(h *hub.Hub, cfg *config.Config) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204) // This depends on the implementation of the frontend
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Realtime hub is running in Health Check Endpoint",
		})
	})

	// WebSocket endpoint; a token identifies the connection, its absence
	// admits it as anonymous
	ginRouter.GET("/ws", handlers.WebSocketHandler(h, cfg))

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		// Login endpoint
		api.POST("/login", handlers.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		// Users endpoint
		protectedRoutes.GET("/users", handlers.GetAllUsers)

		// Hub delivery endpoints consumed by the admin panel
		protectedRoutes.POST("/notify/:userId",
			middleware.RequireRole(models.RoleModerator), handlers.NotifyUser(h))
		protectedRoutes.POST("/announce",
			middleware.RequireRole(models.RoleAdmin), handlers.Announce(h))
		protectedRoutes.GET("/hub/stats",
			middleware.RequireRole(models.RoleAdmin),
			handlers.HubStats(h, cache.New[string, hub.Stats]()))
	}

	return ginRouter
}
