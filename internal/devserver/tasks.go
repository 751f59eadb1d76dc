package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"github.com/taskflow/taskflow-cli/internal/models"
	"gorm.io/gorm"
)

func parseID(c *gin.Context, param string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil {
		badRequest(c, "Invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) taskScope() *gorm.DB {
	return s.db.Preload("User").Preload("Comments").Preload("Comments.User")
}

func (s *Server) findTask(c *gin.Context, id uint64) (Task, bool) {
	var task Task
	if err := s.taskScope().First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Task not found")
		} else {
			internalError(c, "")
		}
		return Task{}, false
	}
	return task, true
}

// ListTasks returns every task, comments included.
func (s *Server) ListTasks(c *gin.Context) {
	var tasks []Task
	query := s.taskScope()
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("id").Find(&tasks).Error; err != nil {
		internalError(c, "")
		return
	}
	c.JSON(http.StatusOK, toTaskDTOList(tasks))
}

func (s *Server) listByOwnerAndStatus(c *gin.Context, status *models.TaskStatus) {
	user, ok := currentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	query := s.taskScope().Where("user_id = ?", user.ID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var tasks []Task
	if err := query.Order("id").Find(&tasks).Error; err != nil {
		internalError(c, "")
		return
	}
	c.JSON(http.StatusOK, toTaskDTOList(tasks))
}

// ListUserTasks returns the tasks owned by the current user.
func (s *Server) ListUserTasks(c *gin.Context) {
	s.listByOwnerAndStatus(c, nil)
}

// ListCartTasks returns the current user's tasks staged in the cart.
func (s *Server) ListCartTasks(c *gin.Context) {
	status := models.TaskStatusCart
	s.listByOwnerAndStatus(c, &status)
}

// ListOfferedTasks returns the current user's offered tasks.
func (s *Server) ListOfferedTasks(c *gin.Context) {
	status := models.TaskStatusOffered
	s.listByOwnerAndStatus(c, &status)
}

// GetTask returns one task by id.
func (s *Server) GetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, ok := s.findTask(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toTaskDTO(task))
}

// CreateTask stores a new task owned by the current user.
func (s *Server) CreateTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var req dto.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}
	if req.Title == "" {
		badRequest(c, "Title is required")
		return
	}

	status := req.Status
	if status == "" {
		status = models.TaskStatusTodo
	}
	if !status.Valid() {
		badRequest(c, "Invalid status")
		return
	}

	task := Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    req.Priority,
		UserID:      user.ID,
	}
	if req.DueDate != nil && !req.DueDate.IsZero() {
		due := req.DueDate.Time
		task.DueDate = &due
	}

	if err := s.db.Create(&task).Error; err != nil {
		internalError(c, "Failed to create task")
		return
	}

	task.User = user
	task.Comments = []Comment{}
	c.JSON(http.StatusCreated, toTaskDTO(task))
}

// UpdateTask replaces a task's editable fields.
func (s *Server) UpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, ok := s.findTask(c, id)
	if !ok {
		return
	}

	var req dto.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "")
		return
	}
	if req.Title == "" {
		badRequest(c, "Title is required")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		badRequest(c, "Invalid status")
		return
	}

	task.Title = req.Title
	task.Description = req.Description
	if req.Status != "" {
		task.Status = req.Status
	}
	task.Priority = req.Priority
	task.DueDate = nil
	if req.DueDate != nil && !req.DueDate.IsZero() {
		due := req.DueDate.Time
		task.DueDate = &due
	}
	task.UpdatedAt = time.Now()

	if err := s.db.Save(&task).Error; err != nil {
		internalError(c, "Failed to update task")
		return
	}
	c.JSON(http.StatusOK, toTaskDTO(task))
}

// DeleteTask removes a task and its comments.
func (s *Server) DeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.findTask(c, id); !ok {
		return
	}

	if err := s.db.Where("task_id = ?", id).Delete(&Comment{}).Error; err != nil {
		internalError(c, "Failed to delete task")
		return
	}
	if err := s.db.Delete(&Task{}, id).Error; err != nil {
		internalError(c, "Failed to delete task")
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateTaskStatus applies a status-only update.
func (s *Server) UpdateTaskStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		badRequest(c, "Invalid status")
		return
	}

	s.setStatus(c, id, req.Status)
}

// setStatus overwrites the task's status. Cart and offered membership
// share the status field, so moving in or out of those sets discards
// the previous workflow status.
func (s *Server) setStatus(c *gin.Context, id uint64, status models.TaskStatus) {
	task, ok := s.findTask(c, id)
	if !ok {
		return
	}

	task.Status = status
	task.UpdatedAt = time.Now()
	if err := s.db.Save(&task).Error; err != nil {
		internalError(c, "Failed to update task")
		return
	}
	c.JSON(http.StatusOK, toTaskDTO(task))
}

// AddToCart stages the task in the cart.
func (s *Server) AddToCart(c *gin.Context) {
	if id, ok := parseID(c, "id"); ok {
		s.setStatus(c, id, models.TaskStatusCart)
	}
}

// RemoveFromCart takes the task out of the cart, returning it to TODO.
func (s *Server) RemoveFromCart(c *gin.Context) {
	if id, ok := parseID(c, "id"); ok {
		s.setStatus(c, id, models.TaskStatusTodo)
	}
}

// AddToOffered marks the task as offered.
func (s *Server) AddToOffered(c *gin.Context) {
	if id, ok := parseID(c, "id"); ok {
		s.setStatus(c, id, models.TaskStatusOffered)
	}
}

// RemoveFromOffered unmarks the task, returning it to TODO.
func (s *Server) RemoveFromOffered(c *gin.Context) {
	if id, ok := parseID(c, "id"); ok {
		s.setStatus(c, id, models.TaskStatusTodo)
	}
}
