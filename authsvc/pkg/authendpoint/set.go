package authendpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/ichigozero/ondemand/authsvc"
	"github.com/ichigozero/ondemand/authsvc/pkg/authservice"
)

type Set struct {
	LoginEndpoint endpoint.Endpoint
}

func New(svc authservice.Service, logger log.Logger) Set {
	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = MakeLoginEndpoint(svc)
		loginEndpoint = LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	return Set{
		LoginEndpoint: loginEndpoint,
	}
}

func (s Set) Login(ctx context.Context, username, password string) (string, error) {
	response, err := s.LoginEndpoint(ctx, LoginRequest{Username: &username, Password: &password})
	if err != nil {
		return "", err
	}

	resp := response.(LoginResponse)
	return resp.Token, resp.Err
}

func MakeLoginEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(LoginRequest)
		if req.Username == nil || req.Password == nil {
			return LoginResponse{Err: authsvc.ErrMissingCredentials}, nil
		}

		t, err := s.Login(ctx, *req.Username, *req.Password)
		return LoginResponse{Token: t, Err: err}, nil
	}
}

// LoggingMiddleware returns an endpoint middleware that logs the
// duration of each invocation, and the resulting error, if any.
func LoggingMiddleware(logger log.Logger) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			defer func(begin time.Time) {
				logger.Log("transport_error", err, "took", time.Since(begin))
			}(time.Now())
			return next(ctx, request)
		}
	}
}

var _ endpoint.Failer = LoginResponse{}

// LoginRequest fields are nil when absent from the payload.
type LoginRequest struct {
	Username *string `json:"user"`
	Password *string `json:"pass"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Err   error  `json:"-"`
}

func (r LoginResponse) Failed() error { return r.Err }
