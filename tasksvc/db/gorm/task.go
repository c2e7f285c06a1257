package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ichigozero/ondemand/tasksvc"
	stdgorm "gorm.io/gorm"
)

type TaskRepository struct {
	db *stdgorm.DB
}

func NewTaskRepository(db *stdgorm.DB) *TaskRepository {
	return &TaskRepository{db}
}

// sqlite hands out max(rowid)+1 unless the key is declared AUTOINCREMENT,
// which AutoMigrate never emits.
const sqliteTasksTable = `CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL
)`

// Migrate creates or updates the tasks table. It is meant to be invoked
// once by the host before the repository serves requests.
func (t *TaskRepository) Migrate(ctx context.Context) error {
	db := t.db.WithContext(ctx)
	if db.Dialector.Name() == "sqlite" {
		if err := db.Exec(sqliteTasksTable).Error; err != nil {
			return fmt.Errorf("migrate tasks: %w", err)
		}
		return nil
	}

	if err := db.AutoMigrate(&tasksvc.Task{}); err != nil {
		return fmt.Errorf("migrate tasks: %w", err)
	}
	return nil
}

func (t *TaskRepository) Create(ctx context.Context, title string) (tasksvc.Task, error) {
	task := tasksvc.Task{Title: title}
	if err := t.db.WithContext(ctx).Create(&task).Error; err != nil {
		return tasksvc.Task{}, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

func (t *TaskRepository) FindAll(ctx context.Context) ([]tasksvc.Task, error) {
	tasks := []tasksvc.Task{}
	if err := t.db.WithContext(ctx).Order("id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}

	return tasks, nil
}

func (t *TaskRepository) Find(ctx context.Context, taskID uint64) (tasksvc.Task, error) {
	return find(t.db.WithContext(ctx), taskID)
}

func (t *TaskRepository) Update(ctx context.Context, taskID uint64, title *string) (tasksvc.Task, error) {
	var task tasksvc.Task
	err := t.db.WithContext(ctx).Transaction(func(tx *stdgorm.DB) error {
		var err error
		task, err = find(tx, taskID)
		if err != nil {
			return err
		}
		if title == nil {
			return nil
		}

		if err := tx.Model(&task).Update("title", *title).Error; err != nil {
			return fmt.Errorf("update task %d: %w", taskID, err)
		}
		return nil
	})
	if err != nil {
		return tasksvc.Task{}, err
	}

	return task, nil
}

func (t *TaskRepository) Delete(ctx context.Context, taskID uint64) error {
	result := t.db.WithContext(ctx).Delete(&tasksvc.Task{}, taskID)
	if result.Error != nil {
		return fmt.Errorf("delete task %d: %w", taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}

func find(db *stdgorm.DB, taskID uint64) (tasksvc.Task, error) {
	var task tasksvc.Task
	err := db.First(&task, taskID).Error
	if errors.Is(err, stdgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if err != nil {
		return tasksvc.Task{}, fmt.Errorf("find task %d: %w", taskID, err)
	}

	return task, nil
}

var _ tasksvc.TaskRepository = (*TaskRepository)(nil)
