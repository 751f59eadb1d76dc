package models

import "time"

// Comment belongs to exactly one task, referenced by TaskID.
type Comment struct {
	ID        uint64
	Content   string
	TaskID    uint64
	UserID    uint64
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
