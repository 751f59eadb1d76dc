package dto

import (
	"time"

	"github.com/taskflow/taskflow-cli/internal/models"
)

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse is the payload of login and signup responses. The user
// object may be nested or flattened into the top-level fields
// depending on the server version, and signup responses without a
// token indicate a malformed deployment.
type AuthResponse struct {
	Token   string   `json:"token,omitempty"`
	User    *UserDTO `json:"user,omitempty"`
	Message string   `json:"message,omitempty"`

	// Fallback top-level fields for servers that flatten the user.
	ID       uint64 `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// CommentDTO represents a comment in API responses.
type CommentDTO struct {
	ID        uint64   `json:"id"`
	Content   string   `json:"content"`
	TaskID    uint64   `json:"taskId"`
	UserID    uint64   `json:"userId"`
	Username  string   `json:"username"`
	CreatedAt *APITime `json:"createdAt,omitempty"`
	UpdatedAt *APITime `json:"updatedAt,omitempty"`
}

// TaskDTO represents a task in API responses. InCart and Offered are
// derived from Status by the server and kept only for wire
// compatibility; Status is authoritative.
type TaskDTO struct {
	ID          uint64            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status"`
	DueDate     *APITime          `json:"dueDate"`
	Priority    string            `json:"priority,omitempty"`
	UserID      uint64            `json:"userId"`
	Username    string            `json:"username,omitempty"`
	InCart      bool              `json:"inCart"`
	Offered     bool              `json:"offered"`
	Comments    []CommentDTO      `json:"comments,omitempty"`
	CreatedAt   *APITime          `json:"createdAt,omitempty"`
	UpdatedAt   *APITime          `json:"updatedAt,omitempty"`
}

// LoginRequest carries credentials for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries the new-account profile for POST /auth/signup.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TaskRequest is the create/update payload for tasks.
type TaskRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status"`
	DueDate     *APITime          `json:"dueDate,omitempty"`
	Priority    string            `json:"priority,omitempty"`
}

// StatusRequest is the payload for PATCH /tasks/{id}/status.
type StatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

// CreateCommentRequest is the payload for POST /comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
	TaskID  uint64 `json:"taskId"`
}

// UpdateCommentRequest is the payload for PUT /comments/{id}.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// Conversion functions

// ToUser converts a UserDTO to the domain model.
func ToUser(dto UserDTO) models.User {
	return models.User{
		ID:       dto.ID,
		Username: dto.Username,
		Email:    dto.Email,
	}
}

// ToComment converts a CommentDTO to the domain model.
func ToComment(dto CommentDTO) models.Comment {
	c := models.Comment{
		ID:       dto.ID,
		Content:  dto.Content,
		TaskID:   dto.TaskID,
		UserID:   dto.UserID,
		Username: dto.Username,
	}
	if dto.CreatedAt != nil {
		c.CreatedAt = dto.CreatedAt.Time
	}
	if dto.UpdatedAt != nil {
		c.UpdatedAt = dto.UpdatedAt.Time
	}
	return c
}

// ToTask converts a TaskDTO to the domain model. Missing comment
// lists become empty slices and missing timestamps default to now, so
// downstream code never sees nil or zero values for them.
func ToTask(dto TaskDTO) models.Task {
	task := models.Task{
		ID:          dto.ID,
		Title:       dto.Title,
		Description: dto.Description,
		Status:      dto.Status,
		Priority:    dto.Priority,
		UserID:      dto.UserID,
		Comments:    make([]models.Comment, 0, len(dto.Comments)),
	}
	if dto.DueDate != nil && !dto.DueDate.IsZero() {
		due := dto.DueDate.Time
		task.DueDate = &due
	}
	for _, c := range dto.Comments {
		task.Comments = append(task.Comments, ToComment(c))
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if dto.CreatedAt != nil && !dto.CreatedAt.IsZero() {
		task.CreatedAt = dto.CreatedAt.Time
	}
	if dto.UpdatedAt != nil && !dto.UpdatedAt.IsZero() {
		task.UpdatedAt = dto.UpdatedAt.Time
	}
	return task
}

// ToTaskList converts a slice of TaskDTOs to domain models.
func ToTaskList(dtos []TaskDTO) []models.Task {
	tasks := make([]models.Task, len(dtos))
	for i, d := range dtos {
		tasks[i] = ToTask(d)
	}
	return tasks
}

// UserFromAuthResponse extracts the user from an auth response,
// preferring the nested user object and falling back to the
// flattened top-level fields.
func UserFromAuthResponse(resp AuthResponse) models.User {
	if resp.User != nil {
		return ToUser(*resp.User)
	}
	return models.User{
		ID:       resp.ID,
		Username: resp.Username,
		Email:    resp.Email,
	}
}
