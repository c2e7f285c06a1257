package authservice

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/ondemand/authsvc"
)

type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// CredentialMatcher reports whether a username and password pair is known.
type CredentialMatcher interface {
	Match(username, password string) bool
}

func New(c CredentialMatcher, token string, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(c, token)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	credentials CredentialMatcher
	token       string
}

func NewBasicService(c CredentialMatcher, token string) Service {
	return &basicService{credentials: c, token: token}
}

func (s *basicService) Login(_ context.Context, username, password string) (string, error) {
	if !s.credentials.Match(username, password) {
		return "", authsvc.ErrInvalidCredentials
	}
	return s.token, nil
}
