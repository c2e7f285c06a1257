package gorm

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ichigozero/ondemand/tasksvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepository(t *testing.T) *TaskRepository {
	t.Helper()

	db, err := Open(sqliteScheme + filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	repo := NewTaskRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))

	return repo
}

func TestOpenUnsupportedURL(t *testing.T) {
	_, err := Open("mysql://localhost/tasks")
	assert.Error(t, err)
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)

	repo := NewTaskRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))

	created, err := repo.Create(context.Background(), "Task 0")
	require.NoError(t, err)

	found, err := repo.Find(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, found)
}

func TestDeletedIDsAreNotReused(t *testing.T) {
	ctx := context.Background()

	inMemory, err := Open("")
	require.NoError(t, err)
	memRepo := NewTaskRepository(inMemory)
	require.NoError(t, memRepo.Migrate(ctx))

	for name, repo := range map[string]*TaskRepository{
		"memory": memRepo,
		"file":   setupRepository(t),
	} {
		t.Run(name, func(t *testing.T) {
			a, err := repo.Create(ctx, "a")
			require.NoError(t, err)
			b, err := repo.Create(ctx, "b")
			require.NoError(t, err)
			require.NoError(t, repo.Delete(ctx, b.ID))

			c, err := repo.Create(ctx, "c")
			require.NoError(t, err)
			assert.Greater(t, c.ID, b.ID)
			assert.Greater(t, b.ID, a.ID)
		})
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	repo := setupRepository(t)
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, "Task 0")
	require.NoError(t, err)
	second, err := repo.Create(ctx, "Task 1")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, "Task 1", second.Title)
}

func TestFindAll(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	empty, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, title := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, title)
		require.NoError(t, err)
	}

	tasks, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "a", tasks[0].Title)
	assert.Equal(t, "c", tasks[2].Title)
	assert.Less(t, tasks[0].ID, tasks[1].ID)
}

func TestFindMissing(t *testing.T) {
	repo := setupRepository(t)

	_, err := repo.Find(context.Background(), 42)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}

func TestLongAndSpecialTitles(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	titles := []string{
		strings.Repeat("T", 5000),
		"!@#$%^&*()_+{}|<>?",
		"' OR '1'='1",
		"<script>alert('xss')</script>",
	}
	for _, title := range titles {
		created, err := repo.Create(ctx, title)
		require.NoError(t, err)

		found, err := repo.Find(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, title, found.Title)
	}
}

func TestUpdate(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "Task 0")
	require.NoError(t, err)

	title := "Updated Task"
	updated, err := repo.Update(ctx, created.ID, &title)
	require.NoError(t, err)
	assert.Equal(t, tasksvc.Task{ID: created.ID, Title: title}, updated)

	unchanged, err := repo.Update(ctx, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, title, unchanged.Title)

	found, err := repo.Find(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, title, found.Title)
}

func TestUpdateMissing(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	title := "nope"
	_, err := repo.Update(ctx, 7, &title)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	tasks, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDelete(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "Task 0")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.Find(ctx, created.ID)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, created.ID), tasksvc.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), tasksvc.ErrTaskNotFound)
}
