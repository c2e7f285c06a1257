package taskservice

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/ondemand/tasksvc"
)

type Service interface {
	CreateTask(ctx context.Context, title string) (tasksvc.Task, error)
	Tasks(ctx context.Context) ([]tasksvc.Task, error)
	Task(ctx context.Context, taskID uint64) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, taskID uint64, title *string) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, taskID uint64) error
}

func New(t tasksvc.TaskRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
}

func NewBasicService(t tasksvc.TaskRepository) Service {
	return basicService{tasks: t}
}

func (s basicService) CreateTask(ctx context.Context, title string) (tasksvc.Task, error) {
	if title == "" {
		return tasksvc.Task{}, tasksvc.ErrMissingTitle
	}
	return s.tasks.Create(ctx, title)
}

func (s basicService) Tasks(ctx context.Context) ([]tasksvc.Task, error) {
	return s.tasks.FindAll(ctx)
}

func (s basicService) Task(ctx context.Context, taskID uint64) (tasksvc.Task, error) {
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return s.tasks.Find(ctx, taskID)
}

// UpdateTask replaces the title only when one is supplied.
func (s basicService) UpdateTask(ctx context.Context, taskID uint64, title *string) (tasksvc.Task, error) {
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return s.tasks.Update(ctx, taskID, title)
}

func (s basicService) DeleteTask(ctx context.Context, taskID uint64) error {
	if taskID == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return s.tasks.Delete(ctx, taskID)
}
