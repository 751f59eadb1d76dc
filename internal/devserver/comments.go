package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"gorm.io/gorm"
)

func (s *Server) findComment(c *gin.Context, id uint64) (Comment, bool) {
	var comment Comment
	if err := s.db.Preload("User").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c, "Comment not found")
		} else {
			internalError(c, "")
		}
		return Comment{}, false
	}
	return comment, true
}

// CreateComment posts a comment on a task, authored by the current
// user.
func (s *Server) CreateComment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" || req.TaskID == 0 {
		badRequest(c, "Content and taskId are required")
		return
	}

	var task Task
	if err := s.db.First(&task, req.TaskID).Error; err != nil {
		notFound(c, "Task not found")
		return
	}

	comment := Comment{
		Content: req.Content,
		TaskID:  req.TaskID,
		UserID:  user.ID,
	}
	if err := s.db.Create(&comment).Error; err != nil {
		internalError(c, "Failed to create comment")
		return
	}

	comment.User = user
	c.JSON(http.StatusCreated, toCommentDTO(comment))
}

// ListTaskComments returns the comments of one task, oldest first.
func (s *Server) ListTaskComments(c *gin.Context) {
	taskID, ok := parseID(c, "taskId")
	if !ok {
		return
	}

	var comments []Comment
	if err := s.db.Preload("User").Where("task_id = ?", taskID).Order("id").Find(&comments).Error; err != nil {
		internalError(c, "")
		return
	}

	out := make([]dto.CommentDTO, len(comments))
	for i, comment := range comments {
		out[i] = toCommentDTO(comment)
	}
	c.JSON(http.StatusOK, out)
}

// UpdateComment replaces a comment's content.
func (s *Server) UpdateComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	comment, ok := s.findComment(c, id)
	if !ok {
		return
	}

	var req dto.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
		badRequest(c, "Content is required")
		return
	}

	comment.Content = req.Content
	comment.UpdatedAt = time.Now()
	if err := s.db.Save(&comment).Error; err != nil {
		internalError(c, "Failed to update comment")
		return
	}
	c.JSON(http.StatusOK, toCommentDTO(comment))
}

// DeleteComment removes a comment.
func (s *Server) DeleteComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.findComment(c, id); !ok {
		return
	}

	if err := s.db.Delete(&Comment{}, id).Error; err != nil {
		internalError(c, "Failed to delete comment")
		return
	}
	c.Status(http.StatusNoContent)
}
