// Package devserver is a local, wire-compatible stand-in for the
// TaskFlow API, backed by SQLite. It exists for development against a
// real HTTP surface and as the integration-test substrate; the
// production API remains a separate deployment.
package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskflow/taskflow-cli/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Server holds the dev server's database and token manager.
type Server struct {
	db     *gorm.DB
	tokens *tokenManager
	logger *zap.Logger
}

// New opens the SQLite database at dbPath, runs migrations and
// returns a server signing tokens with jwtSecret.
func New(dbPath, jwtSecret string, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}, &Task{}, &Comment{}); err != nil {
		return nil, err
	}

	return &Server{
		db:     db,
		tokens: newTokenManager(jwtSecret),
		logger: log,
	}, nil
}

// Router builds the gin engine with the full TaskFlow API surface.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", s.Signup)
			auth.POST("/login", s.Login)
			auth.GET("/me", s.requireAuth(), s.Me)
		}

		tasks := api.Group("/tasks")
		tasks.Use(s.requireAuth())
		{
			tasks.GET("", s.ListTasks)
			tasks.POST("", s.CreateTask)
			tasks.GET("/user", s.ListUserTasks)
			tasks.GET("/cart", s.ListCartTasks)
			tasks.GET("/offered", s.ListOfferedTasks)
			tasks.GET("/:id", s.GetTask)
			tasks.PUT("/:id", s.UpdateTask)
			tasks.DELETE("/:id", s.DeleteTask)
			tasks.PATCH("/:id/status", s.UpdateTaskStatus)
			tasks.PUT("/:id/cart/add", s.AddToCart)
			tasks.PUT("/:id/cart/remove", s.RemoveFromCart)
			tasks.PUT("/:id/offered/add", s.AddToOffered)
			tasks.PUT("/:id/offered/remove", s.RemoveFromOffered)
		}

		comments := api.Group("/comments")
		comments.Use(s.requireAuth())
		{
			comments.POST("", s.CreateComment)
			comments.GET("/task/:taskId", s.ListTaskComments)
			comments.PUT("/:id", s.UpdateComment)
			comments.DELETE("/:id", s.DeleteComment)
		}
	}

	return r
}

// Seed inserts a user with a couple of tasks, for quick manual
// testing against a fresh database.
func (s *Server) Seed(username, email, password string) error {
	user, err := s.createUser(username, email, password)
	if err != nil {
		return err
	}

	tasks := []Task{
		{Title: "Try the TaskFlow CLI", Description: "Run `taskflow list`", Status: models.TaskStatusTodo, UserID: user.ID},
		{Title: "Move a task", Description: "Drag a card between columns", Status: models.TaskStatusInProgress, UserID: user.ID},
	}
	return s.db.Create(&tasks).Error
}
