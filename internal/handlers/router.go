package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"task-tracker/internal/middleware"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDeps is everything the HTTP surface needs. RateLimiter and Monitor
// are optional.
type RouterDeps struct {
	Users          services.UserDirectory
	Tasks          services.TaskRegistry
	Avatars        services.AvatarPipeline
	Authenticator  services.Authenticator
	RateLimiter    *middleware.RateLimiter
	Monitor        *monitoring.Registry
	Logger         *slog.Logger
	AllowedOrigins []string
	MaxAvatarBytes int64
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))
	if deps.Monitor != nil {
		router.Use(deps.Monitor.Middleware())
		router.GET("/health", deps.Monitor.HealthHandler())
		router.GET("/health/live", deps.Monitor.LivenessHandler())
		router.GET("/health/ready", deps.Monitor.ReadinessHandler())
		router.GET("/metrics", deps.Monitor.MetricsHandler())
	}

	throttle := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		throttle = deps.RateLimiter.Middleware()
	}

	userHandler := NewUserHandler(deps.Users, deps.Avatars, deps.MaxAvatarBytes)
	taskHandler := NewTaskHandler(deps.Tasks)

	router.POST("/users", throttle, userHandler.Register)
	router.POST("/users/login", throttle, userHandler.Login)
	router.GET("/users/:id/avatar", userHandler.GetAvatar)

	authed := router.Group("/")
	authed.Use(middleware.Authenticate(deps.Authenticator))
	{
		authed.POST("/users/logout", userHandler.Logout)
		authed.POST("/users/logoutAll", userHandler.LogoutAll)
		authed.GET("/users/me", userHandler.GetMe)
		authed.PATCH("/users/me", userHandler.UpdateMe)
		authed.DELETE("/users/me", userHandler.DeleteMe)
		authed.POST("/users/me/avatar", userHandler.UploadAvatar)
		authed.DELETE("/users/me/avatar", userHandler.DeleteAvatar)

		authed.POST("/tasks", taskHandler.CreateTask)
		authed.GET("/tasks", taskHandler.GetTasks)
		authed.GET("/tasks/:id", taskHandler.GetTaskByID)
		authed.PATCH("/tasks/:id", taskHandler.UpdateTask)
		authed.DELETE("/tasks/:id", taskHandler.DeleteTask)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{SessionTokenHeader},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return config
}
