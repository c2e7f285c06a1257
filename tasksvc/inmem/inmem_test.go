package inmem

import (
	"context"
	"sync"
	"testing"

	"github.com/ichigozero/ondemand/tasksvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConcurrentlyYieldsUniqueIDs(t *testing.T) {
	repo := NewTaskRepository()
	ctx := context.Background()

	const n = 200
	ids := make(chan uint64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := repo.Create(ctx, "task")
			if err == nil {
				ids <- task.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	tasks, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, n)
}

func TestIDsAreNotReused(t *testing.T) {
	repo := NewTaskRepository()
	ctx := context.Background()

	first, err := repo.Create(ctx, "a")
	require.NoError(t, err)
	second, err := repo.Create(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, second.ID))

	third, err := repo.Create(ctx, "c")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(3), third.ID)
}

func TestFindAllIsOrderedByID(t *testing.T) {
	repo := NewTaskRepository()
	ctx := context.Background()

	tasks, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, tasks)

	for _, title := range []string{"x", "y", "z"} {
		_, err := repo.Create(ctx, title)
		require.NoError(t, err)
	}

	tasks, err = repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []tasksvc.Task{{ID: 1, Title: "x"}, {ID: 2, Title: "y"}, {ID: 3, Title: "z"}}, tasks)
}

func TestUpdate(t *testing.T) {
	repo := NewTaskRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, "Task 0")
	require.NoError(t, err)

	unchanged, err := repo.Update(ctx, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, created, unchanged)

	title := "Updated Task"
	updated, err := repo.Update(ctx, created.ID, &title)
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	found, err := repo.Find(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, found)
}

func TestMissingTask(t *testing.T) {
	repo := NewTaskRepository()
	ctx := context.Background()

	_, err := repo.Find(ctx, 1)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	title := "x"
	_, err = repo.Update(ctx, 1, &title)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, 1), tasksvc.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 1), tasksvc.ErrTaskNotFound)

	tasks, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
