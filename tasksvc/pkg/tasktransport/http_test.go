package tasktransport

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/ondemand/authsvc"
	"github.com/ichigozero/ondemand/tasksvc"
	"github.com/ichigozero/ondemand/tasksvc/inmem"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) taskservice.Service {
	t.Helper()

	logger := log.NewNopLogger()
	authenticator, err := authsvc.NewAuthenticator("secret")
	require.NoError(t, err)

	handler := NewHTTPHandler(
		taskendpoint.New(taskservice.New(inmem.NewTaskRepository(), logger), logger),
		authenticator,
		logger,
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(srv.URL, logger)
	require.NoError(t, err)

	return client
}

func withToken(token string) context.Context {
	return context.WithValue(context.Background(), authsvc.TokenContextKey, token)
}

func TestClientRoundTrip(t *testing.T) {
	client := newClient(t)
	ctx := withToken("secret")

	tasks, err := client.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	created, err := client.CreateTask(ctx, "Task 0")
	require.NoError(t, err)
	assert.Equal(t, tasksvc.Task{ID: 1, Title: "Task 0"}, created)

	title := "Updated Task"
	updated, err := client.UpdateTask(ctx, created.ID, &title)
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	unchanged, err := client.UpdateTask(ctx, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, title, unchanged.Title)

	found, err := client.Task(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, found)

	tasks, err = client.Tasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []tasksvc.Task{updated}, tasks)

	require.NoError(t, client.DeleteTask(ctx, created.ID))
	assert.ErrorIs(t, client.DeleteTask(ctx, created.ID), tasksvc.ErrTaskNotFound)

	_, err = client.Task(ctx, created.ID)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}

func TestClientErrors(t *testing.T) {
	client := newClient(t)

	_, err := client.Tasks(context.Background())
	assert.ErrorIs(t, err, authsvc.ErrUnauthenticated)

	_, err = client.Tasks(withToken("secretx"))
	assert.ErrorIs(t, err, authsvc.ErrForbidden)

	_, err = client.CreateTask(withToken("secret"), "")
	assert.ErrorIs(t, err, tasksvc.ErrMissingTitle)

	_, err = client.UpdateTask(withToken("secret"), 5, nil)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}
