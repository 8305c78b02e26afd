// Package identity resolves a bearer token to the owner of the diary data.
//
// Client identity is delegated to an external identity provider. The token
// is a JWT issued by that provider; the stable user ID lives in its "sub"
// claim, and the profile (email, name, avatar) is fetched from the
// provider's management API when a secret key is configured.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when a request carries no token or a token
// that cannot be resolved to a user.
var ErrUnauthenticated = errors.New("identity: invalid or missing credentials")

// User is the resolved caller. ID partitions all stored data; the profile
// fields are best-effort and may be empty when the provider lookup fails.
type User struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Verifier resolves a raw bearer token to a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}
