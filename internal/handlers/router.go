package handlers

import (
	"net/http"
	"time"

	"task-reminder/backend/internal/config"
	"task-reminder/backend/internal/middleware"
	"task-reminder/backend/internal/notify"
	"task-reminder/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	DB       *gorm.DB
	Config   *config.Config
	Auth     services.AuthService
	Tasks    services.TaskService
	Lists    services.TaskListService
	Sync     services.SyncService
	Mailer   notify.Mailer
	Location *time.Location
}

// NewRouter assembles the gin engine: CORS and rate limiting in front,
// auth endpoints open, everything else behind the bearer-token check.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if deps.Config.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(
			deps.Config.RateLimit.RequestsPerMin,
			deps.Config.RateLimit.BurstSize,
		))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := NewAuthHandler(deps.DB, deps.Auth)
	taskHandler := NewTaskHandler(deps.DB, deps.Tasks)
	listHandler := NewTaskListHandler(deps.DB, deps.Lists)
	syncHandler := NewSyncHandler(deps.DB, deps.Sync)
	emailSyncHandler := NewEmailSyncHandler(deps.DB, deps.Mailer, deps.Location)
	subHandler := NewSubscriptionHandler(deps.DB)

	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)

	api := router.Group("/")
	api.Use(middleware.AuthMiddleware(deps.Config.Auth.JWTSecret))
	{
		api.POST("/tasks", taskHandler.CreateTask)
		api.GET("/tasks", taskHandler.GetTasks)
		api.GET("/tasks/changes", taskHandler.GetChangedTasks)
		api.GET("/tasks/:id", taskHandler.GetTaskByID)
		api.PUT("/tasks/:id", taskHandler.UpdateTask)
		api.DELETE("/tasks/:id", taskHandler.DeleteTask)

		api.POST("/task-lists", listHandler.CreateTaskList)
		api.GET("/task-lists", listHandler.GetTaskLists)
		api.PUT("/task-lists/:id", listHandler.UpdateTaskList)
		api.DELETE("/task-lists/:id", listHandler.DeleteTaskList)

		api.POST("/sync", syncHandler.Sync)
		api.POST("/sync-emails", emailSyncHandler.SyncEmails)

		api.POST("/subscriptions", subHandler.Subscribe)
		api.DELETE("/subscriptions/:id", subHandler.Unsubscribe)
	}

	return router
}
