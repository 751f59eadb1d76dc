package devserver

import (
	"time"

	"github.com/taskflow/taskflow-cli/internal/models"
)

// User is a registered account.
type User struct {
	ID           uint64 `gorm:"primarykey"`
	Username     string `gorm:"type:varchar(50);not null"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Relations
	Tasks []Task `gorm:"foreignKey:UserID"`
}

// Task is a stored task. Status carries both workflow state and
// cart/offered membership, matching the production API.
type Task struct {
	ID          uint64            `gorm:"primarykey"`
	Title       string            `gorm:"not null"`
	Description string            `gorm:"type:text"`
	Status      models.TaskStatus `gorm:"type:varchar(20);not null;default:'TODO'"`
	DueDate     *time.Time
	Priority    string `gorm:"type:varchar(20)"`
	UserID      uint64 `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Relations
	User     User      `gorm:"foreignKey:UserID"`
	Comments []Comment `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// Comment is a stored comment, owned by exactly one task.
type Comment struct {
	ID        uint64 `gorm:"primarykey"`
	Content   string `gorm:"type:text;not null"`
	TaskID    uint64 `gorm:"not null;index"`
	UserID    uint64 `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	User User `gorm:"foreignKey:UserID"`
}
