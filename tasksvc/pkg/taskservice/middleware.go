package taskservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/ondemand/tasksvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) CreateTask(ctx context.Context, title string) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"title_len", len(title),
			"task_id", t.ID,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, title)
}

func (mw loggingMiddleware) Tasks(ctx context.Context) (t []tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"count", len(t),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx)
}

func (mw loggingMiddleware) Task(ctx context.Context, taskID uint64) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Task",
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.Task(ctx, taskID)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, taskID uint64, title *string) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UpdateTask",
			"task_id", taskID,
			"title_supplied", title != nil,
			"err", err,
		)
	}()
	return mw.next.UpdateTask(ctx, taskID, title)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, taskID uint64) (err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, taskID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time, err error) {
	lvs := []string{"method", method, "error", boolLabel(err != nil)}
	mw.requestCount.With(lvs...).Add(1)
	mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, title string) (t tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("create_task", begin, err) }(time.Now())
	return mw.next.CreateTask(ctx, title)
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context) (t []tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("tasks", begin, err) }(time.Now())
	return mw.next.Tasks(ctx)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, taskID uint64) (t tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("task", begin, err) }(time.Now())
	return mw.next.Task(ctx, taskID)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, taskID uint64, title *string) (t tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("update_task", begin, err) }(time.Now())
	return mw.next.UpdateTask(ctx, taskID, title)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, taskID uint64) (err error) {
	defer func(begin time.Time) { mw.observe("delete_task", begin, err) }(time.Now())
	return mw.next.DeleteTask(ctx, taskID)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
