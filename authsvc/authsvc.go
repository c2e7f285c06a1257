package authsvc

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultUsers = "qa:123"
	DefaultToken = "abc123"
)

// Config holds the static credential mapping and the bearer token issued
// on every successful login.
type Config struct {
	Users map[string]string
	Token string
}

// ParseUsers reads a comma separated list of user:password pairs.
func ParseUsers(s string) (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		i := strings.Index(pair, ":")
		if i <= 0 {
			return nil, fmt.Errorf("invalid user entry %q: want user:password", pair)
		}
		users[pair[:i]] = pair[i+1:]
	}

	if len(users) == 0 {
		return nil, ErrNoUsers
	}
	return users, nil
}

type contextKey string

// TokenContextKey holds the bearer token an outgoing client request should
// present.
const TokenContextKey contextKey = "Token"

var (
	ErrNoUsers            = errors.New("no users configured")
	ErrEmptyToken         = errors.New("empty token configured")
	ErrPasswordTooLong    = errors.New("password longer than 72 bytes")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrMalformedPayload   = errors.New("malformed payload")
)
