package tasktransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/ondemand/authsvc/pkg/authtransport"
	"github.com/ichigozero/ondemand/tasksvc"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskservice"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// NewHTTPHandler mounts the task routes. Every route checks the bearer token
// with a before the path or body is decoded.
func NewHTTPHandler(endpoints taskendpoint.Set, a authtransport.Authenticator, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	createTaskHandler := httptransport.NewServer(
		endpoints.CreateTaskEndpoint,
		authtransport.AuthenticateRequest(a, decodeHTTPCreateTaskRequest),
		encodeHTTPGenericResponse,
		options...,
	)

	tasksHandler := httptransport.NewServer(
		endpoints.TasksEndpoint,
		authtransport.AuthenticateRequest(a, decodeHTTPTasksRequest),
		encodeHTTPTasksResponse,
		options...,
	)

	taskHandler := httptransport.NewServer(
		endpoints.TaskEndpoint,
		authtransport.AuthenticateRequest(a, decodeHTTPTaskRequest),
		encodeHTTPGenericResponse,
		options...,
	)

	updateTaskHandler := httptransport.NewServer(
		endpoints.UpdateTaskEndpoint,
		authtransport.AuthenticateRequest(a, decodeHTTPUpdateTaskRequest),
		encodeHTTPGenericResponse,
		options...,
	)

	deleteTaskHandler := httptransport.NewServer(
		endpoints.DeleteTaskEndpoint,
		authtransport.AuthenticateRequest(a, decodeHTTPDeleteTaskRequest),
		encodeHTTPGenericResponse,
		options...,
	)

	r := mux.NewRouter()
	r.NotFoundHandler = authtransport.NotFoundHandler()
	r.MethodNotAllowedHandler = authtransport.MethodNotAllowedHandler()

	r.Methods("POST").Path("/tasks").Handler(createTaskHandler)
	r.Methods("GET").Path("/tasks").Handler(tasksHandler)
	r.Methods("GET").Path("/tasks/{task_id:[0-9]+}").Handler(taskHandler)
	r.Methods("PUT").Path("/tasks/{task_id:[0-9]+}").Handler(updateTaskHandler)
	r.Methods("DELETE").Path("/tasks/{task_id:[0-9]+}").Handler(deleteTaskHandler)

	return r
}

// NewHTTPClient returns a Service backed by a remote HTTP server. Requests
// carry the bearer token found under authsvc.TokenContextKey.
func NewHTTPClient(instance string, logger log.Logger) (taskservice.Service, error) {
	// Quickly sanitize the instance string.
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(time.Second), 100))

	options := []httptransport.ClientOption{
		httptransport.ClientBefore(authtransport.ContextToHTTP()),
	}

	breaker := func(name string) endpoint.Middleware {
		return circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
		}))
	}

	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/tasks"),
			encodeHTTPGenericRequest,
			decodeHTTPCreateTaskResponse,
			options...,
		).Endpoint()
		createTaskEndpoint = limiter(createTaskEndpoint)
		createTaskEndpoint = breaker("CreateTask")(createTaskEndpoint)
	}

	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/tasks"),
			encodeHTTPEmptyRequest,
			decodeHTTPTasksResponse,
			options...,
		).Endpoint()
		tasksEndpoint = limiter(tasksEndpoint)
		tasksEndpoint = breaker("Tasks")(tasksEndpoint)
	}

	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/tasks"),
			encodeHTTPTaskPathRequest,
			decodeHTTPTaskResponse,
			options...,
		).Endpoint()
		taskEndpoint = limiter(taskEndpoint)
		taskEndpoint = breaker("Task")(taskEndpoint)
	}

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = httptransport.NewClient(
			"PUT",
			copyURL(u, "/tasks"),
			encodeHTTPUpdateTaskRequest,
			decodeHTTPUpdateTaskResponse,
			options...,
		).Endpoint()
		updateTaskEndpoint = limiter(updateTaskEndpoint)
		updateTaskEndpoint = breaker("UpdateTask")(updateTaskEndpoint)
	}

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = httptransport.NewClient(
			"DELETE",
			copyURL(u, "/tasks"),
			encodeHTTPTaskPathRequest,
			decodeHTTPDeleteTaskResponse,
			options...,
		).Endpoint()
		deleteTaskEndpoint = limiter(deleteTaskEndpoint)
		deleteTaskEndpoint = breaker("DeleteTask")(deleteTaskEndpoint)
	}

	return taskendpoint.Set{
		CreateTaskEndpoint: createTaskEndpoint,
		TasksEndpoint:      tasksEndpoint,
		TaskEndpoint:       taskEndpoint,
		UpdateTaskEndpoint: updateTaskEndpoint,
		DeleteTaskEndpoint: deleteTaskEndpoint,
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = strings.TrimSuffix(base.Path, "/") + path
	return &next
}

func errorEncoder(ctx context.Context, err error, w http.ResponseWriter) {
	switch {
	case errors.Is(err, tasksvc.ErrMissingTitle):
		authtransport.WriteError(w, http.StatusBadRequest, "Missing title")
	case errors.Is(err, tasksvc.ErrMalformedPayload):
		authtransport.WriteError(w, http.StatusBadRequest, "Malformed payload")
	case errors.Is(err, tasksvc.ErrTaskNotFound):
		authtransport.WriteError(w, http.StatusNotFound, "Task not found")
	default:
		authtransport.ErrorEncoder(ctx, err, w)
	}
}

func responseError(r *http.Response) error {
	var e authtransport.ErrorWrapper
	json.NewDecoder(r.Body).Decode(&e)

	switch {
	case r.StatusCode == http.StatusBadRequest && e.Error == "Missing title":
		return tasksvc.ErrMissingTitle
	case r.StatusCode == http.StatusBadRequest && e.Error == "Malformed payload":
		return tasksvc.ErrMalformedPayload
	case r.StatusCode == http.StatusNotFound && e.Error == "Task not found":
		return tasksvc.ErrTaskNotFound
	}
	return authtransport.StatusError(r.StatusCode, e.Error)
}

func decodeHTTPCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req taskendpoint.CreateTaskRequest
	if err := authtransport.DecodeJSONBody(r, &req); err != nil {
		return nil, tasksvc.ErrMalformedPayload
	}
	return req, nil
}

func decodeHTTPTasksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return taskendpoint.TasksRequest{}, nil
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDFromPath(r)
	if err != nil {
		return nil, err
	}

	return taskendpoint.TaskRequest{
		TaskID: taskID,
	}, nil
}

func decodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDFromPath(r)
	if err != nil {
		return nil, err
	}

	var req taskendpoint.UpdateTaskRequest
	if err := authtransport.DecodeJSONBody(r, &req); err != nil {
		return nil, tasksvc.ErrMalformedPayload
	}

	req.TaskID = taskID

	return req, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDFromPath(r)
	if err != nil {
		return nil, err
	}

	return taskendpoint.DeleteTaskRequest{
		TaskID: taskID,
	}, nil
}

// taskIDFromPath reads the task_id route variable. Ids that do not fit a
// uint64 cannot name a stored task.
func taskIDFromPath(r *http.Request) (uint64, error) {
	vars := mux.Vars(r)
	id, ok := vars["task_id"]
	if !ok {
		return 0, ErrBadRouting
	}

	taskID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, tasksvc.ErrTaskNotFound
	}
	return taskID, nil
}

// ErrBadRouting is returned when an expected path variable is missing.
// It always indicates programmer error.
var ErrBadRouting = errors.New("inconsistent mapping between route and handler (programmer error)")

func decodeHTTPCreateTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusCreated {
		return taskendpoint.CreateTaskResponse{Err: responseError(r)}, nil
	}
	var resp taskendpoint.CreateTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

func decodeHTTPTasksResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return taskendpoint.TasksResponse{Err: responseError(r)}, nil
	}
	var resp taskendpoint.TasksResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Tasks)
	return resp, err
}

func decodeHTTPTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return taskendpoint.TaskResponse{Err: responseError(r)}, nil
	}
	var resp taskendpoint.TaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

func decodeHTTPUpdateTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return taskendpoint.UpdateTaskResponse{Err: responseError(r)}, nil
	}
	var resp taskendpoint.UpdateTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

func decodeHTTPDeleteTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return taskendpoint.DeleteTaskResponse{Err: responseError(r)}, nil
	}
	var resp taskendpoint.DeleteTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

// encodeHTTPGenericRequest is a transport/http.EncodeRequestFunc that
// JSON-encodes any request to the request body. Primarily useful in a client.
func encodeHTTPGenericRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Body = ioutil.NopCloser(&buf)
	return nil
}

func encodeHTTPEmptyRequest(_ context.Context, _ *http.Request, _ interface{}) error {
	return nil
}

func encodeHTTPTaskPathRequest(_ context.Context, r *http.Request, request interface{}) error {
	var taskID uint64
	switch req := request.(type) {
	case taskendpoint.TaskRequest:
		taskID = req.TaskID
	case taskendpoint.DeleteTaskRequest:
		taskID = req.TaskID
	default:
		return fmt.Errorf("unexpected request type %T", request)
	}

	r.URL.Path = fmt.Sprintf("%s/%d", r.URL.Path, taskID)
	return nil
}

func encodeHTTPUpdateTaskRequest(ctx context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.UpdateTaskRequest)
	r.URL.Path = fmt.Sprintf("%s/%d", r.URL.Path, req.TaskID)
	return encodeHTTPGenericRequest(ctx, r, req)
}

// encodeHTTPGenericResponse is a transport/http.EncodeResponseFunc that encodes
// the response as JSON to the response writer. Primarily useful in a server.
func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		errorEncoder(ctx, f.Failed(), w)
		return nil
	}
	return httptransport.EncodeJSONResponse(ctx, w, response)
}

// encodeHTTPTasksResponse writes the task list as a bare JSON array.
func encodeHTTPTasksResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(taskendpoint.TasksResponse)
	if resp.Err != nil {
		errorEncoder(ctx, resp.Err, w)
		return nil
	}

	tasks := resp.Tasks
	if tasks == nil {
		tasks = []tasksvc.Task{}
	}
	return httptransport.EncodeJSONResponse(ctx, w, tasks)
}
