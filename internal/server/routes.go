package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"chat-app/internal/server/handlers"
	"chat-app/internal/server/middleware"
)

// SetupRoutes configures all the routes for the application.
func SetupRoutes(router *gin.Engine, jwtSecret string, authHandler *handlers.AuthHandler, messageHandler *handlers.MessageHandler, wsHandler *handlers.WSHandler) {
	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check route
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Websocket handshake; identity comes from the query string, so the
	// endpoint itself is public and anonymous connections are accepted.
	router.GET("/ws", wsHandler.Serve)

	// Public routes (no authentication required)
	public := router.Group("/api")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
		}
	}

	// Protected routes (require JWT authentication)
	protected := router.Group("/api")
	protected.Use(middleware.JWTAuth(jwtSecret))
	{
		protected.GET("/auth/check", authHandler.Check)
		protected.POST("/auth/update-profile", authHandler.UpdateProfile)

		messages := protected.Group("/messages")
		{
			messages.GET("/users", messageHandler.GetUsers)
			messages.GET("/:id", messageHandler.GetMessages)
			messages.POST("/send/:id", messageHandler.SendMessage)
		}
	}
}
