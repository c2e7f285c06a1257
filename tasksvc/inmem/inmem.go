package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/ichigozero/ondemand/tasksvc"
)

type taskRepository struct {
	mtx    sync.RWMutex
	lastID uint64
	tasks  map[uint64]tasksvc.Task
}

func NewTaskRepository() tasksvc.TaskRepository {
	return &taskRepository{tasks: make(map[uint64]tasksvc.Task)}
}

func (r *taskRepository) Create(_ context.Context, title string) (tasksvc.Task, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.lastID++
	task := tasksvc.Task{ID: r.lastID, Title: title}
	r.tasks[task.ID] = task

	return task, nil
}

func (r *taskRepository) FindAll(_ context.Context) ([]tasksvc.Task, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	tasks := make([]tasksvc.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return tasks, nil
}

func (r *taskRepository) Find(_ context.Context, taskID uint64) (tasksvc.Task, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return task, nil
}

func (r *taskRepository) Update(_ context.Context, taskID uint64, title *string) (tasksvc.Task, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if title != nil {
		task.Title = *title
		r.tasks[taskID] = task
	}
	return task, nil
}

func (r *taskRepository) Delete(_ context.Context, taskID uint64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.tasks[taskID]; !ok {
		return tasksvc.ErrTaskNotFound
	}
	delete(r.tasks, taskID)

	return nil
}
