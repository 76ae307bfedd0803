package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ScopeAdmin marks keys allowed to call admin endpoints.
const ScopeAdmin = "admin"

// ErrKeyNotFound is returned when no active key matches the presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
// Every key belongs to a customer; admin keys additionally carry ScopeAdmin.
type APIKeyInfo struct {
	ID         string
	KeyHash    string
	CustomerID string
	Name       string
	Scopes     []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of active API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
