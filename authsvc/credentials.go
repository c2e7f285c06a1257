package authsvc

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything past the first 72 bytes of a password.
const maxPasswordLen = 72

// CredentialStore is a read-only username to password mapping. Passwords
// are kept only as bcrypt hashes.
type CredentialStore struct {
	hashes map[string][]byte
}

func NewCredentialStore(users map[string]string, cost int) (*CredentialStore, error) {
	hashes := make(map[string][]byte, len(users))
	for name, password := range users {
		if len(password) > maxPasswordLen {
			return nil, fmt.Errorf("password for %q: %w", name, ErrPasswordTooLong)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %q: %w", name, err)
		}
		hashes[name] = h
	}

	return &CredentialStore{hashes: hashes}, nil
}

func (s *CredentialStore) Match(username, password string) bool {
	h, ok := s.hashes[username]
	if !ok || len(password) > maxPasswordLen {
		return false
	}
	return bcrypt.CompareHashAndPassword(h, []byte(password)) == nil
}
