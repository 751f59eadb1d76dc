package devserver

import (
	"github.com/taskflow/taskflow-cli/internal/dto"
	"github.com/taskflow/taskflow-cli/internal/models"
)

func toUserDTO(user User) dto.UserDTO {
	return dto.UserDTO{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
}

func toCommentDTO(comment Comment) dto.CommentDTO {
	return dto.CommentDTO{
		ID:        comment.ID,
		Content:   comment.Content,
		TaskID:    comment.TaskID,
		UserID:    comment.UserID,
		Username:  comment.User.Username,
		CreatedAt: dto.NewAPITime(comment.CreatedAt),
		UpdatedAt: dto.NewAPITime(comment.UpdatedAt),
	}
}

// toTaskDTO builds the wire representation. InCart and Offered are
// derived from the status field, which is authoritative.
func toTaskDTO(task Task) dto.TaskDTO {
	d := dto.TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		UserID:      task.UserID,
		Username:    task.User.Username,
		InCart:      task.Status == models.TaskStatusCart,
		Offered:     task.Status == models.TaskStatusOffered,
		CreatedAt:   dto.NewAPITime(task.CreatedAt),
		UpdatedAt:   dto.NewAPITime(task.UpdatedAt),
		Comments:    make([]dto.CommentDTO, 0, len(task.Comments)),
	}
	if task.DueDate != nil {
		d.DueDate = dto.NewAPITime(*task.DueDate)
	}
	for _, comment := range task.Comments {
		d.Comments = append(d.Comments, toCommentDTO(comment))
	}
	return d
}

func toTaskDTOList(tasks []Task) []dto.TaskDTO {
	out := make([]dto.TaskDTO, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskDTO(t)
	}
	return out
}
