package authtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/ondemand/authsvc"
	"github.com/ichigozero/ondemand/authsvc/pkg/authendpoint"
	"github.com/ichigozero/ondemand/authsvc/pkg/authservice"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

func NewHTTPHandler(endpoints authendpoint.Set, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(ErrorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	loginHandler := httptransport.NewServer(
		endpoints.LoginEndpoint,
		decodeHTTPLoginRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	r := mux.NewRouter()
	r.NotFoundHandler = NotFoundHandler()
	r.MethodNotAllowedHandler = MethodNotAllowedHandler()

	r.Methods("POST").Path("/login").Handler(loginHandler)

	return r
}

func NewHTTPClient(instance string, logger log.Logger) (authservice.Service, error) {
	// Quickly sanitize the instance string.
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(time.Second), 100))

	var options []httptransport.ClientOption

	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/login"),
			encodeHTTPGenericRequest,
			decodeHTTPLoginResponse,
			options...,
		).Endpoint()
		loginEndpoint = limiter(loginEndpoint)
		loginEndpoint = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "Login",
			Timeout: 30 * time.Second,
		}))(loginEndpoint)
	}

	return authendpoint.Set{
		LoginEndpoint: loginEndpoint,
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = strings.TrimSuffix(base.Path, "/") + path
	return &next
}

// ErrorEncoder writes err as a JSON error object with the matching status
// code. Unknown errors are reported as internal errors without detail.
func ErrorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	code, msg := err2response(err)
	WriteError(w, code, msg)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorWrapper{Error: msg})
}

func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
}

func MethodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

type ErrorWrapper struct {
	Error string `json:"error"`
}

func err2response(err error) (int, string) {
	switch {
	case errors.Is(err, authsvc.ErrMissingCredentials):
		return http.StatusBadRequest, "Missing credentials"
	case errors.Is(err, authsvc.ErrMalformedPayload):
		return http.StatusBadRequest, "Malformed payload"
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, authsvc.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, authsvc.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// ResponseError maps an error response produced by ErrorEncoder back to
// the authsvc error it was encoded from.
func ResponseError(r *http.Response) error {
	var e ErrorWrapper
	json.NewDecoder(r.Body).Decode(&e)
	return StatusError(r.StatusCode, e.Error)
}

// StatusError maps a status code and error message to an authsvc error,
// falling back to a *ResponseStatusError.
func StatusError(code int, msg string) error {
	switch {
	case code == http.StatusForbidden:
		return authsvc.ErrForbidden
	case code == http.StatusUnauthorized && msg == "Invalid credentials":
		return authsvc.ErrInvalidCredentials
	case code == http.StatusUnauthorized:
		return authsvc.ErrUnauthenticated
	case code == http.StatusBadRequest && msg == "Missing credentials":
		return authsvc.ErrMissingCredentials
	case code == http.StatusBadRequest && msg == "Malformed payload":
		return authsvc.ErrMalformedPayload
	}
	return &ResponseStatusError{Code: code, Message: msg}
}

// ResponseStatusError is an error response not produced by a known
// authsvc error.
type ResponseStatusError struct {
	Code    int
	Message string
}

func (e *ResponseStatusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return http.StatusText(e.Code) + ": " + e.Message
}

// DecodeJSONBody decodes r's body into v. An empty body leaves v untouched.
// Anything but whitespace after the first value is an error.
func DecodeJSONBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON value")

func decodeHTTPLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req authendpoint.LoginRequest
	if err := DecodeJSONBody(r, &req); err != nil {
		return nil, authsvc.ErrMalformedPayload
	}
	return req, nil
}

func decodeHTTPLoginResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return authendpoint.LoginResponse{Err: ResponseError(r)}, nil
	}
	var resp authendpoint.LoginResponse
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

// encodeHTTPGenericResponse is a transport/http.EncodeResponseFunc that encodes
// the response as JSON to the response writer. Primarily useful in a server.
func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		ErrorEncoder(ctx, f.Failed(), w)
		return nil
	}
	return httptransport.EncodeJSONResponse(ctx, w, response)
}
