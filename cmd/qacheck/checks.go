package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/ondemand/authsvc"
	"github.com/ichigozero/ondemand/authsvc/pkg/authservice"
	"github.com/ichigozero/ondemand/authsvc/pkg/authtransport"
	"github.com/ichigozero/ondemand/tasksvc"
	"github.com/ichigozero/ondemand/tasksvc/pkg/taskservice"
	"github.com/ichigozero/ondemand/tasksvc/pkg/tasktransport"
)

// Harness runs black-box checks against a deployed instance.
type Harness struct {
	baseURL  string
	username string
	password string
	maxList  time.Duration

	auth   authservice.Service
	tasks  taskservice.Service
	client *http.Client
	logger log.Logger

	token string
}

type check struct {
	name string
	run  func(*Harness, context.Context) error
}

var checks = []check{
	{"smoke", (*Harness).smoke},
	{"login", (*Harness).login},
	{"crud", (*Harness).crud},
	{"edge", (*Harness).edge},
	{"security", (*Harness).security},
	{"performance", (*Harness).performance},
	{"negative", (*Harness).negative},
}

// NewHarness talks to baseURL directly. Login and task calls go through
// auth and tasks when they are non-nil.
func NewHarness(baseURL, username, password string, auth authservice.Service, tasks taskservice.Service, logger log.Logger) (*Harness, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	var err error
	if auth == nil {
		if auth, err = authtransport.NewHTTPClient(baseURL, logger); err != nil {
			return nil, err
		}
	}
	if tasks == nil {
		if tasks, err = tasktransport.NewHTTPClient(baseURL, logger); err != nil {
			return nil, err
		}
	}

	return &Harness{
		baseURL:  baseURL,
		username: username,
		password: password,
		maxList:  5 * time.Second,
		auth:     auth,
		tasks:    tasks,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}, nil
}

// Run executes every check in order and stops at the first failure.
func (h *Harness) Run(ctx context.Context) error {
	for _, c := range checks {
		begin := time.Now()
		if err := c.run(h, ctx); err != nil {
			h.logger.Log("check", c.name, "result", "failed", "err", err)
			return fmt.Errorf("%s: %w", c.name, err)
		}
		h.logger.Log("check", c.name, "result", "passed", "took", time.Since(begin))
	}
	return nil
}

func (h *Harness) authorized(ctx context.Context) context.Context {
	return withToken(ctx, h.token)
}

func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authsvc.TokenContextKey, token)
}

func (h *Harness) smoke(ctx context.Context) error {
	code, err := h.do(ctx, "GET", "/", nil)
	if err != nil {
		return err
	}
	return expectStatus(code, http.StatusOK)
}

func (h *Harness) login(ctx context.Context) error {
	token, err := h.auth.Login(ctx, h.username, h.password)
	if err != nil {
		return fmt.Errorf("valid login: %w", err)
	}
	if token == "" {
		return errors.New("valid login: empty token")
	}
	h.token = token

	for _, creds := range [][2]string{{"", ""}, {h.username, "wrong"}} {
		_, err := h.auth.Login(ctx, creds[0], creds[1])
		if !errors.Is(err, authsvc.ErrInvalidCredentials) {
			return fmt.Errorf("login as %q: want invalid credentials, got %v", creds[0], err)
		}
	}
	return nil
}

func (h *Harness) crud(ctx context.Context) error {
	ctx = h.authorized(ctx)

	for i := 0; i < 5; i++ {
		if _, err := h.tasks.CreateTask(ctx, fmt.Sprintf("Task %d", i)); err != nil {
			return fmt.Errorf("create task %d: %w", i, err)
		}
	}

	tasks, err := h.tasks.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) < 5 {
		return fmt.Errorf("list tasks: want at least 5, got %d", len(tasks))
	}

	title := "Updated Task"
	if _, err := h.tasks.UpdateTask(ctx, tasks[0].ID, &title); err != nil && !errors.Is(err, tasksvc.ErrTaskNotFound) {
		return fmt.Errorf("update task %d: %w", tasks[0].ID, err)
	}
	if err := h.tasks.DeleteTask(ctx, tasks[1].ID); err != nil && !errors.Is(err, tasksvc.ErrTaskNotFound) {
		return fmt.Errorf("delete task %d: %w", tasks[1].ID, err)
	}
	return nil
}

func (h *Harness) edge(ctx context.Context) error {
	for _, title := range []string{strings.Repeat("T", 5000), "!@#$%^&*()_+{}|<>?"} {
		if _, err := h.tasks.CreateTask(h.authorized(ctx), title); err != nil {
			return fmt.Errorf("create task with %d byte title: %w", len(title), err)
		}
	}

	_, err := h.tasks.CreateTask(ctx, "No Auth")
	return expectRejected(err)
}

func (h *Harness) security(ctx context.Context) error {
	for _, title := range []string{"' OR '1'='1", "<script>alert('xss')</script>"} {
		if _, err := h.tasks.CreateTask(h.authorized(ctx), title); err != nil {
			return fmt.Errorf("create task %q: %w", title, err)
		}
	}

	_, err := h.tasks.Tasks(withToken(ctx, h.token+"123"))
	return expectRejected(err)
}

func (h *Harness) performance(ctx context.Context) error {
	ctx = h.authorized(ctx)

	begin := time.Now()
	for i := 0; i < 20; i++ {
		if _, err := h.tasks.Tasks(ctx); err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
	}
	if took := time.Since(begin); took >= h.maxList {
		return fmt.Errorf("20 list requests took %s", took)
	}
	return nil
}

func (h *Harness) negative(ctx context.Context) error {
	code, err := h.do(ctx, "POST", "/tasks", strings.NewReader("notjson"))
	if err != nil {
		return err
	}
	if code != http.StatusBadRequest && code != http.StatusUnsupportedMediaType {
		return fmt.Errorf("non-JSON create: want 400 or 415, got %d", code)
	}

	code, err = h.do(ctx, "GET", "/invalid-endpoint", nil)
	if err != nil {
		return err
	}
	return expectStatus(code, http.StatusNotFound)
}

// do sends a raw request carrying the session token when one is known.
func (h *Harness) do(ctx context.Context, method, path string, body io.Reader) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(ioutil.Discard, resp.Body)

	return resp.StatusCode, nil
}

func expectStatus(got, want int) error {
	if got != want {
		return fmt.Errorf("want status %d, got %d", want, got)
	}
	return nil
}

func expectRejected(err error) error {
	if errors.Is(err, authsvc.ErrUnauthenticated) || errors.Is(err, authsvc.ErrForbidden) {
		return nil
	}
	return fmt.Errorf("want unauthorized or forbidden, got %v", err)
}
