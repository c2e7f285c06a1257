package tasksvc

import (
	"context"
	"errors"
)

type Task struct {
	ID    uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	Title string `json:"title" gorm:"type:text;not null"`
}

// TaskRepository owns task records and the identifier sequence. Find,
// Update and Delete return ErrTaskNotFound for an unknown id.
type TaskRepository interface {
	Create(ctx context.Context, title string) (Task, error)
	FindAll(ctx context.Context) ([]Task, error)
	Find(ctx context.Context, taskID uint64) (Task, error)
	Update(ctx context.Context, taskID uint64, title *string) (Task, error)
	Delete(ctx context.Context, taskID uint64) error
}

var (
	ErrMissingTitle     = errors.New("missing title")
	ErrTaskNotFound     = errors.New("task not found")
	ErrMalformedPayload = errors.New("malformed payload")
)
