package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// APIKey is a configured service credential. Hash is the bcrypt hash of the
// key value; the plaintext never appears in configuration.
type APIKey struct {
	Name   string
	Hash   string
	UserID string
	Role   string
}

// APIKeyAuthenticator authenticates service callers by bcrypt-hashed keys.
type APIKeyAuthenticator struct {
	keys []APIKey
}

// NewAPIKeyAuthenticator creates an authenticator over the configured keys.
func NewAPIKeyAuthenticator(keys []APIKey) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: keys}
}

// Authenticate compares the presented key against every configured hash.
func (a *APIKeyAuthenticator) Authenticate(token string) (*UserContext, error) {
	for i := range a.keys {
		key := &a.keys[i]
		if bcrypt.CompareHashAndPassword([]byte(key.Hash), []byte(token)) == nil {
			userID := key.UserID
			if userID == "" {
				userID = "apikey:" + key.Name
			}
			role := key.Role
			if role == "" {
				role = RoleStandard
			}
			return &UserContext{
				UserID:   userID,
				Username: key.Name,
				Role:     role,
				AuthType: "apikey",
			}, nil
		}
	}
	return nil, fmt.Errorf("invalid API key")
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
