package apigateway

import (
	"io"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/ichigozero/ondemand/authsvc/pkg/authtransport"
)

const Greeting = "Hello, On-Demand Test Environment!"

// NewHTTPHandler routes /login to auth and /tasks* to tasks. metrics is
// mounted at /metrics when non-nil. Every request is access logged.
func NewHTTPHandler(auth, tasks, metrics http.Handler, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = authtransport.NotFoundHandler()
	r.MethodNotAllowedHandler = authtransport.MethodNotAllowedHandler()

	r.Methods("GET").Path("/").HandlerFunc(index)
	r.Path("/login").Handler(auth)
	r.Path("/tasks").Handler(tasks)
	r.Path("/tasks/{task_id:[0-9]+}").Handler(tasks)
	if metrics != nil {
		r.Methods("GET").Path("/metrics").Handler(metrics)
	}

	return accessLog(r, logger)
}

func index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, Greeting)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func(begin time.Time) {
			logger.Log(
				"transport", "HTTP",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"remote", r.RemoteAddr,
				"took", time.Since(begin),
			)
		}(time.Now())
		next.ServeHTTP(rec, r)
	})
}
