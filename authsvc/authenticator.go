package authsvc

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Authenticator checks the Authorization header against the configured
// static token. It keeps no state between calls.
type Authenticator struct {
	token []byte
}

func NewAuthenticator(token string) (*Authenticator, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	return &Authenticator{token: []byte(token)}, nil
}

// Authenticate returns ErrUnauthenticated when no bearer credentials are
// presented and ErrForbidden when the presented token is wrong.
func (a *Authenticator) Authenticate(h http.Header) error {
	v := h.Get("Authorization")
	if !strings.HasPrefix(v, bearerPrefix) {
		return ErrUnauthenticated
	}

	token := strings.TrimPrefix(v, bearerPrefix)
	if subtle.ConstantTimeCompare([]byte(token), a.token) != 1 {
		return ErrForbidden
	}
	return nil
}
