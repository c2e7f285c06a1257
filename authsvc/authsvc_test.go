package authsvc

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseUsers(t *testing.T) {
	users, err := ParseUsers(" qa:123, admin:p:w ,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"qa": "123", "admin": "p:w"}, users)

	_, err = ParseUsers("")
	assert.ErrorIs(t, err, ErrNoUsers)

	_, err = ParseUsers("nopassword")
	assert.Error(t, err)

	_, err = ParseUsers(":123")
	assert.Error(t, err)
}

func TestCredentialStoreMatch(t *testing.T) {
	store, err := NewCredentialStore(map[string]string{"qa": "123"}, bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"valid pair", "qa", "123", true},
		{"wrong password", "qa", "wrong", false},
		{"unknown user", "admin", "123", false},
		{"empty strings", "", "", false},
		{"empty password", "qa", "", false},
		{"password prefix", "qa", "12", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.Match(tt.username, tt.password))
		})
	}
}

func TestCredentialStorePasswordLength(t *testing.T) {
	longest := strings.Repeat("p", 72)

	_, err := NewCredentialStore(map[string]string{"qa": longest + "A"}, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	store, err := NewCredentialStore(map[string]string{"qa": longest}, bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, store.Match("qa", longest))
	assert.False(t, store.Match("qa", longest+"B"))
	assert.False(t, store.Match("qa", longest[:71]))
}

func TestNewAuthenticatorRejectsEmptyToken(t *testing.T) {
	_, err := NewAuthenticator("")
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestAuthenticate(t *testing.T) {
	a, err := NewAuthenticator(DefaultToken)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"valid token", "Bearer abc123", nil},
		{"no header", "", ErrUnauthenticated},
		{"basic scheme", "Basic abc123", ErrUnauthenticated},
		{"lowercase scheme", "bearer abc123", ErrUnauthenticated},
		{"scheme without token", "Bearer", ErrUnauthenticated},
		{"empty token", "Bearer ", ErrForbidden},
		{"tampered token", "Bearer abc123x", ErrForbidden},
		{"tampered token digits", "Bearer abc123123", ErrForbidden},
		{"truncated token", "Bearer abc", ErrForbidden},
		{"trailing data", "Bearer abc123 extra", ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}

			err := a.Authenticate(h)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthenticateIsRepeatable(t *testing.T) {
	a, err := NewAuthenticator("tok")
	require.NoError(t, err)

	h := http.Header{"Authorization": []string{"Bearer tok"}}
	for i := 0; i < 3; i++ {
		assert.NoError(t, a.Authenticate(h))
	}
}
