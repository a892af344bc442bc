// Package auth carries the caller's identity through request contexts and
// decides what each role may do.
package auth

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

// Identity is the authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID primitive.ObjectID
	Email  string
	Role   models.Role
}

func (id Identity) Authenticated() bool {
	return !id.UserID.IsZero()
}

type contextKey struct{}

type tokenKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// WithToken records the bearer token the request came with, so it can be
// revoked on logout.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// FromContext returns the caller, or the anonymous identity.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(contextKey{}).(Identity)
	return id
}

// Require returns the caller or ErrNotAuthenticated.
func Require(ctx context.Context) (Identity, error) {
	id := FromContext(ctx)
	if !id.Authenticated() {
		return Identity{}, fmt.Errorf("%w: please log in", models.ErrNotAuthenticated)
	}
	return id, nil
}

// Authorize returns the caller if their role grants every listed capability.
func Authorize(ctx context.Context, caps ...Capability) (Identity, error) {
	id, err := Require(ctx)
	if err != nil {
		return Identity{}, err
	}
	for _, c := range caps {
		if !Can(id.Role, c) {
			return Identity{}, fmt.Errorf("%w: %s role cannot %s", models.ErrForbidden, id.Role, c)
		}
	}
	return id, nil
}
